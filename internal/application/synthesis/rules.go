package synthesis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/inventory"
)

// orderSupplyDays días de consumo que cubre una orden del motor de reglas.
const orderSupplyDays = 30

// Thresholds umbrales del motor de reglas, en días de cobertura.
type Thresholds struct {
	Critical       int64 // b < Critical => RESTOCK_NOW CRITICAL
	Immediate      int64 // b < Immediate => RESTOCK_NOW URGENT
	Warning        int64 // b < Warning => SHORTAGE_WARNING
	Planning       int64 // b < Planning con desabastecimiento => SUPPLY_CHAIN_RISK
	SubstituteRank int   // rank <= SubstituteRank habilita sustituto y eleva SUPPLY_CHAIN_RISK
}

// DefaultThresholds 3 / 7 / 14 / 30 días, rank 5.
var DefaultThresholds = Thresholds{Critical: 3, Immediate: 7, Warning: 14, Planning: 30, SubstituteRank: 5}

// Rules motor determinista que reemplaza al servicio de razonamiento cuando este no responde.
type Rules struct {
	Thresholds Thresholds
	// RecencyWindow antigüedad máxima de un desabastecimiento para citarlo como evidencia.
	RecencyWindow time.Duration
}

// NewRules con umbrales por defecto.
func NewRules(recency time.Duration) Rules {
	return Rules{Thresholds: DefaultThresholds, RecencyWindow: recency}
}

// Evaluate aplica las reglas a cada medicamento del snapshot con burn rate conocido.
func (r Rules) Evaluate(snap *Snapshot, now time.Time) *entity.SynthesisResult {
	res := &entity.SynthesisResult{
		Decisions:               []entity.Decision{},
		DrugsNeedingSubstitutes: []string{},
		DrugsNeedingOrders:      []entity.OrderRequest{},
		ScheduleAdjustments:     []entity.ScheduleAdjustment{},
		Fallback:                true,
	}
	if snap.Empty() {
		res.Summary = "Sin servicio de razonamiento ni datos de inventario: no se generaron decisiones."
		return res
	}

	t := r.Thresholds
	for _, d := range snap.Drugs {
		b := inventory.Effective(d)
		if !b.Known {
			continue
		}
		shortages := snap.ShortagesFor(d.Name)
		hasShortage := len(shortages) > 0
		usage := dailyUsage(d)
		invEvidence := inventoryEvidence(d, b, usage)

		switch {
		case b.Below(t.Immediate):
			severity, urgency := entity.SeverityUrgent, entity.UrgencyExpedited
			if b.Below(t.Critical) {
				severity, urgency = entity.SeverityCritical, entity.UrgencyEmergency
			}
			needsSubstitute := d.CriticalityRank <= t.SubstituteRank && hasShortage
			res.Decisions = append(res.Decisions, entity.Decision{
				ActionType: entity.ActionRestockNow,
				Severity:   severity,
				DrugName:   d.Name,
				Title:      fmt.Sprintf("URGENTE: stock crítico de %s", d.Name),
				Description: fmt.Sprintf("%s tiene solo %s días de stock (consumo %s %s/día). Reponer de inmediato.",
					d.Name, b, usage.StringFixed(1), d.Unit),
				Evidence:        []entity.Evidence{invEvidence},
				NeedsSubstitute: needsSubstitute,
				NeedsOrder:      true,
			})
			res.DrugsNeedingOrders = append(res.DrugsNeedingOrders, orderFor(d.Name, usage, urgency))

			if needsSubstitute {
				res.DrugsNeedingSubstitutes = append(res.DrugsNeedingSubstitutes, d.Name)
				res.Decisions = append(res.Decisions, entity.Decision{
					ActionType:      entity.ActionSubstituteRecommended,
					Severity:        entity.SeverityUrgent,
					DrugName:        d.Name,
					Title:           fmt.Sprintf("Buscar sustituto para %s", d.Name),
					Description:     fmt.Sprintf("%s está en nivel crítico y con desabastecimiento activo. Se recomiendan sustitutos clínicos.", d.Name),
					Evidence:        r.withShortageEvidence(invEvidence, shortages, now),
					NeedsSubstitute: true,
				})
			}

		case b.Below(t.Warning):
			severity, urgency := entity.SeverityWarning, entity.UrgencyRoutine
			evidence := []entity.Evidence{invEvidence}
			note := ""
			if hasShortage {
				severity, urgency = entity.SeverityUrgent, entity.UrgencyExpedited
				evidence = r.withShortageEvidence(invEvidence, shortages, now)
				note = "Desabastecimiento activo reportado. "
			}
			res.Decisions = append(res.Decisions, entity.Decision{
				ActionType:  entity.ActionShortageWarning,
				Severity:    severity,
				DrugName:    d.Name,
				Title:       fmt.Sprintf("%s entra en zona de alerta de desabastecimiento", d.Name),
				Description: fmt.Sprintf("%s tiene %s días de stock. %sReponer dentro de la semana.", d.Name, b, note),
				Evidence:    evidence,
				NeedsOrder:  true,
			})
			res.DrugsNeedingOrders = append(res.DrugsNeedingOrders, orderFor(d.Name, usage, urgency))

		case b.Below(t.Planning) && hasShortage:
			severity := entity.SeverityInfo
			if d.CriticalityRank <= t.SubstituteRank {
				severity = entity.SeverityWarning
			}
			res.Decisions = append(res.Decisions, entity.Decision{
				ActionType:  entity.ActionSupplyChainRisk,
				Severity:    severity,
				DrugName:    d.Name,
				Title:       fmt.Sprintf("Riesgo en la cadena de suministro de %s", d.Name),
				Description: fmt.Sprintf("%s tiene %s días de stock con desabastecimiento activo. Vigilar y considerar orden anticipada.", d.Name, b),
				Evidence:    r.withShortageEvidence(invEvidence, shortages, now),
			})
		}
	}

	res.Summary = fmt.Sprintf("Decisiones de respaldo: %d alertas, %d órdenes necesarias.",
		len(res.Decisions), len(res.DrugsNeedingOrders))
	return res
}

// withShortageEvidence agrega la evidencia del primer desabastecimiento con URL y fecha reciente.
func (r Rules) withShortageEvidence(inv entity.Evidence, shortages []*entity.Shortage, now time.Time) []entity.Evidence {
	out := []entity.Evidence{inv}
	for _, s := range shortages {
		if s.SourceURL == "" || !s.RecentWithin(now, r.RecencyWindow) {
			continue
		}
		kind := entity.SourceNews
		if s.FromRegistry() {
			kind = entity.SourceFDA
		}
		out = append(out, entity.Evidence{
			SourceType:  kind,
			Description: s.Description,
			URL:         s.SourceURL,
			DataValue:   fmt.Sprintf("impact_severity=%s; reported_date=%s", s.ImpactSeverity, s.ReportedDate.Format("2006-01-02")),
		})
		break
	}
	return out
}

// dailyUsage uso con el que se calculó el burn rate: el proyectado si es positivo.
func dailyUsage(d *entity.Drug) decimal.Decimal {
	if d.PredictedUsageRate != nil && d.PredictedUsageRate.IsPositive() {
		return *d.PredictedUsageRate
	}
	return d.UsageRateDaily
}

func inventoryEvidence(d *entity.Drug, b inventory.BurnRate, usage decimal.Decimal) entity.Evidence {
	return entity.Evidence{
		SourceType:  entity.SourceInventory,
		Description: fmt.Sprintf("Cobertura de stock de %s", d.Name),
		DataValue: fmt.Sprintf("burn_rate_days=%s; stock_quantity=%s; usage_rate_daily=%s",
			b, d.StockQuantity.String(), usage.String()),
	}
}

// orderFor cantidad = parte entera de uso × 30 días.
func orderFor(drug string, usage decimal.Decimal, urgency entity.Urgency) entity.OrderRequest {
	q := usage.Mul(decimal.NewFromInt(orderSupplyDays)).Truncate(0)
	return entity.OrderRequest{DrugName: drug, Quantity: &q, Urgency: urgency}
}
