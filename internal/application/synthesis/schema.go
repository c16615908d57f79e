package synthesis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/inventory"
)

const synthesisShape = `{
  "decisions": [{
    "action_type": "RESTOCK_NOW | SHORTAGE_WARNING | SUBSTITUTE_RECOMMENDED | SCHEDULE_CHANGE | SUPPLY_CHAIN_RISK",
    "severity": "INFO | WARNING | URGENT | CRITICAL",
    "drug_name": "string (del inventario)",
    "title": "string",
    "description": "string",
    "evidence": [{"source_type": "INVENTORY | FDA | NEWS | SURGERY_SCHEDULE", "description": "string", "url": "string", "data_value": "string"}],
    "requires_substitute": false,
    "requires_order": false
  }],
  "drugs_needing_substitutes": ["string"],
  "drugs_needing_orders": [{"drug_name": "string", "quantity": 0, "urgency": "EMERGENCY | EXPEDITED | ROUTINE"}],
  "schedule_adjustments": [{"surgery_id": "string", "drug_name": "string", "recommendation": "string"}],
  "summary": "string",
  "tool_calls": [{"name": "string"}]
}`

// rawSynthesis forma esperada de la respuesta del servicio de razonamiento, antes de validar.
type rawSynthesis struct {
	Decisions               []rawDecision               `json:"decisions"`
	DrugsNeedingSubstitutes []string                    `json:"drugs_needing_substitutes"`
	DrugsNeedingOrders      []rawOrder                  `json:"drugs_needing_orders"`
	ScheduleAdjustments     []entity.ScheduleAdjustment `json:"schedule_adjustments"`
	Summary                 string                      `json:"summary"`
}

type rawDecision struct {
	ActionType         string        `json:"action_type"`
	Severity           string        `json:"severity"`
	DrugName           string        `json:"drug_name"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Evidence           []rawEvidence `json:"evidence"`
	RequiresSubstitute bool          `json:"requires_substitute"`
	RequiresOrder      bool          `json:"requires_order"`
}

type rawEvidence struct {
	SourceType  string `json:"source_type"`
	Description string `json:"description"`
	URL         string `json:"url"`
	DataValue   string `json:"data_value"`
}

type rawOrder struct {
	DrugName string           `json:"drug_name"`
	Quantity *decimal.Decimal `json:"quantity"`
	Urgency  string           `json:"urgency"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedReasoning, fmt.Sprintf(format, args...))
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// validate convierte la respuesta en un SynthesisResult o la rechaza entera.
// Rechaza: decisions ausente, enums inválidos, título vacío, medicamento fuera del inventario.
// Coerciona: nombres al canónico del inventario, evidencia de inventario faltante,
// listas de trabajo sin duplicados ni medicamentos desconocidos.
func validate(raw *rawSynthesis, snap *Snapshot) (*entity.SynthesisResult, error) {
	if raw.Decisions == nil {
		return nil, malformed("decisions ausente")
	}

	res := &entity.SynthesisResult{
		Decisions:               make([]entity.Decision, 0, len(raw.Decisions)),
		DrugsNeedingSubstitutes: []string{},
		DrugsNeedingOrders:      []entity.OrderRequest{},
		ScheduleAdjustments:     []entity.ScheduleAdjustment{},
		Summary:                 strings.TrimSpace(raw.Summary),
	}

	substitutes := make(map[string]bool)
	addSubstitute := func(name string) {
		if !substitutes[name] {
			substitutes[name] = true
			res.DrugsNeedingSubstitutes = append(res.DrugsNeedingSubstitutes, name)
		}
	}

	for i, rd := range raw.Decisions {
		action := entity.ActionType(upper(rd.ActionType))
		if !action.DecisionAction() {
			return nil, malformed("decisión %d: action_type %q", i, rd.ActionType)
		}
		severity := entity.Severity(upper(rd.Severity))
		if !severity.Valid() {
			return nil, malformed("decisión %d: severity %q", i, rd.Severity)
		}
		title := strings.TrimSpace(rd.Title)
		if title == "" {
			return nil, malformed("decisión %d: title vacío", i)
		}
		drug := snap.Drug(rd.DrugName)
		if drug == nil {
			return nil, malformed("decisión %d: medicamento %q fuera del inventario", i, rd.DrugName)
		}

		evidence := make([]entity.Evidence, 0, len(rd.Evidence)+1)
		for j, re := range rd.Evidence {
			st := entity.SourceType(upper(re.SourceType))
			if !st.Valid() {
				return nil, malformed("decisión %d, evidencia %d: source_type %q", i, j, re.SourceType)
			}
			evidence = append(evidence, entity.Evidence{
				SourceType:  st,
				Description: re.Description,
				URL:         strings.TrimSpace(re.URL),
				DataValue:   re.DataValue,
			})
		}
		d := entity.Decision{
			ActionType:      action,
			Severity:        severity,
			DrugName:        drug.Name,
			Title:           title,
			Description:     rd.Description,
			Evidence:        evidence,
			NeedsSubstitute: rd.RequiresSubstitute,
			NeedsOrder:      rd.RequiresOrder,
		}
		if !d.HasInventoryEvidence() {
			b := inventory.Effective(drug)
			d.Evidence = append([]entity.Evidence{inventoryEvidence(drug, b, dailyUsage(drug))}, d.Evidence...)
		}
		res.Decisions = append(res.Decisions, d)
		if d.NeedsSubstitute {
			addSubstitute(drug.Name)
		}
	}

	for _, name := range raw.DrugsNeedingSubstitutes {
		if drug := snap.Drug(name); drug != nil {
			addSubstitute(drug.Name)
		}
	}

	ordered := make(map[string]bool)
	for i, ro := range raw.DrugsNeedingOrders {
		drug := snap.Drug(ro.DrugName)
		if drug == nil || ordered[drug.Name] {
			continue
		}
		urgency := entity.Urgency(upper(ro.Urgency))
		if !urgency.Valid() {
			return nil, malformed("orden %d: urgency %q", i, ro.Urgency)
		}
		q := ro.Quantity
		if q != nil && !q.IsPositive() {
			q = nil
		}
		ordered[drug.Name] = true
		res.DrugsNeedingOrders = append(res.DrugsNeedingOrders, entity.OrderRequest{
			DrugName: drug.Name,
			Quantity: q,
			Urgency:  urgency,
		})
	}

	for _, adj := range raw.ScheduleAdjustments {
		if strings.TrimSpace(adj.Recommendation) == "" {
			continue
		}
		res.ScheduleAdjustments = append(res.ScheduleAdjustments, adj)
	}

	if res.Summary == "" {
		res.Summary = fmt.Sprintf("%d decisiones, %d órdenes necesarias.", len(res.Decisions), len(res.DrugsNeedingOrders))
	}
	return res, nil
}
