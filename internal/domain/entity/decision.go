package entity

import "github.com/shopspring/decimal"

// ActionType tipo de acción propuesta (y tipo de alerta persistida).
type ActionType string

const (
	ActionRestockNow            ActionType = "RESTOCK_NOW"
	ActionShortageWarning       ActionType = "SHORTAGE_WARNING"
	ActionSubstituteRecommended ActionType = "SUBSTITUTE_RECOMMENDED"
	ActionScheduleChange        ActionType = "SCHEDULE_CHANGE"
	ActionSupplyChainRisk       ActionType = "SUPPLY_CHAIN_RISK"

	// ActionAutoOrderPlaced solo lo emite el gestor de órdenes, nunca el sintetizador.
	ActionAutoOrderPlaced ActionType = "AUTO_ORDER_PLACED"
)

// DecisionAction indica si el tipo es uno de los que puede proponer el sintetizador.
func (a ActionType) DecisionAction() bool {
	switch a {
	case ActionRestockNow, ActionShortageWarning, ActionSubstituteRecommended,
		ActionScheduleChange, ActionSupplyChainRisk:
		return true
	}
	return false
}

// Severity severidad ordenada INFO < WARNING < URGENT < CRITICAL.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityUrgent   Severity = "URGENT"
	SeverityCritical Severity = "CRITICAL"
)

// Rank posición en el orden de severidad; 0 si no es válida.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityUrgent:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// SourceType tipo de fuente de una evidencia.
type SourceType string

const (
	SourceInventory       SourceType = "INVENTORY"
	SourceFDA             SourceType = "FDA"
	SourceNews            SourceType = "NEWS"
	SourceSurgerySchedule SourceType = "SURGERY_SCHEDULE"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceInventory, SourceFDA, SourceNews, SourceSurgerySchedule:
		return true
	}
	return false
}

// Evidence cita literal de datos que respalda una decisión.
type Evidence struct {
	SourceType  SourceType `json:"source_type"`
	Description string     `json:"description"`
	URL         string     `json:"url,omitempty"`
	DataValue   string     `json:"data_value"`
}

// Urgency urgencia de una orden downstream.
type Urgency string

const (
	UrgencyRoutine   Urgency = "ROUTINE"
	UrgencyExpedited Urgency = "EXPEDITED"
	UrgencyEmergency Urgency = "EMERGENCY"
)

func (u Urgency) Valid() bool {
	return u == UrgencyRoutine || u == UrgencyExpedited || u == UrgencyEmergency
}

// OrderRequest solicitud downstream de compra. Quantity nil = a decidir por el gestor.
type OrderRequest struct {
	DrugName string           `json:"drug_name"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Urgency  Urgency          `json:"urgency"`
}

// ScheduleAdjustment sugerencia de cambio en la agenda de cirugías.
type ScheduleAdjustment struct {
	SurgeryID      string `json:"surgery_id,omitempty"`
	DrugName       string `json:"drug_name"`
	Recommendation string `json:"recommendation"`
}

// Decision acción propuesta por el sintetizador antes de persistirse como alerta.
type Decision struct {
	ActionType      ActionType `json:"action_type"`
	Severity        Severity   `json:"severity"`
	DrugName        string     `json:"drug_name"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Evidence        []Evidence `json:"evidence"`
	NeedsSubstitute bool       `json:"needs_substitute,omitempty"`
	NeedsOrder      bool       `json:"needs_order,omitempty"`
}

// HasInventoryEvidence indica si la decisión cita al menos una evidencia de inventario.
func (d Decision) HasInventoryEvidence() bool {
	for _, e := range d.Evidence {
		if e.SourceType == SourceInventory {
			return true
		}
	}
	return false
}

// SynthesisResult salida del sintetizador; siempre bien formada aunque esté vacía.
type SynthesisResult struct {
	Decisions               []Decision           `json:"decisions"`
	DrugsNeedingSubstitutes []string             `json:"drugs_needing_substitutes"`
	DrugsNeedingOrders      []OrderRequest       `json:"drugs_needing_orders"`
	ScheduleAdjustments     []ScheduleAdjustment `json:"schedule_adjustments"`
	Summary                 string               `json:"summary"`
	Fallback                bool                 `json:"fallback"`
}
