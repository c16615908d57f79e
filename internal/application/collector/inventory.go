package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/inventory"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// Niveles de riesgo del análisis de inventario.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
	RiskUnknown  = "UNKNOWN"
)

// DrugAnalysis análisis normalizado de un medicamento. Los burn rates nil son desconocidos.
type DrugAnalysis struct {
	DrugName                string           `json:"drug_name"`
	CurrentStock            decimal.Decimal  `json:"current_stock"`
	DailyUsageRate          decimal.Decimal  `json:"daily_usage_rate"`
	PredictedDailyUsageRate *decimal.Decimal `json:"predicted_daily_usage_rate"`
	BurnRateDays            *decimal.Decimal `json:"burn_rate_days"`
	PredictedBurnRateDays   *decimal.Decimal `json:"predicted_burn_rate_days"`
	Trend                   string           `json:"trend,omitempty"`
	RiskLevel               string           `json:"risk_level"`
	Notes                   string           `json:"notes,omitempty"`
}

// ScheduleImpact cirugía afectada por bajo stock.
type ScheduleImpact struct {
	SurgeryID      string   `json:"surgery_id,omitempty"`
	SurgeryDate    string   `json:"surgery_date"`
	SurgeryType    string   `json:"surgery_type"`
	DrugsAtRisk    []string `json:"drugs_at_risk"`
	Recommendation string   `json:"recommendation"`
}

// InventoryPayload payload del finding de inventario.
type InventoryPayload struct {
	Mode           entity.RunMode   `json:"mode"`
	DrugAnalysis   []DrugAnalysis   `json:"drug_analysis"`
	ScheduleImpact []ScheduleImpact `json:"schedule_impact"`
	Summary        string           `json:"summary"`
	Fallback       bool             `json:"fallback"`
}

const inventoryShape = `{
  "drug_analysis": [{"drug_name": "string", "predicted_daily_usage_rate": 0, "trend": "INCREASING | STABLE | DECREASING", "risk_level": "LOW | MEDIUM | HIGH | CRITICAL", "notes": "string"}],
  "schedule_impact": [{"surgery_id": "string", "surgery_date": "YYYY-MM-DD", "surgery_type": "string", "drugs_at_risk": ["drug_name"], "recommendation": "string"}],
  "summary": "string"
}`

// InventoryCollector analiza inventario y agenda quirúrgica y recalcula burn rates.
type InventoryCollector struct {
	drugs     repository.DrugRepository
	surgeries repository.SurgeryRepository
	findings  repository.FindingRepository
	reasoner  *reasoning.Client
	catalog   *config.Catalog
	horizon   time.Duration
	tracker   ports.SelfWriteTracker
	log       *logger.Logger
	now       func() time.Time
}

// NewInventoryCollector construye el colector. horizon es la ventana de agenda quirúrgica.
func NewInventoryCollector(
	drugs repository.DrugRepository,
	surgeries repository.SurgeryRepository,
	findings repository.FindingRepository,
	reasoner *reasoning.Client,
	catalog *config.Catalog,
	horizon time.Duration,
	log *logger.Logger,
) *InventoryCollector {
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}
	return &InventoryCollector{
		drugs:     drugs,
		surgeries: surgeries,
		findings:  findings,
		reasoner:  reasoner,
		catalog:   catalog,
		horizon:   horizon,
		log:       log.Named(entity.ProducerInventory),
		now:       time.Now,
	}
}

func (c *InventoryCollector) Name() string { return entity.ProducerInventory }

// TrackSelfWrites registra quién debe enterarse de las escrituras en drugs antes de que ocurran.
// Se llama antes de la primera corrida.
func (c *InventoryCollector) TrackSelfWrites(t ports.SelfWriteTracker) { c.tracker = t }

// Collect corrida completa: pide predicción al servicio de razonamiento, normaliza los burn
// rates de forma determinista y los persiste. DrugWrites del finding cuenta esas escrituras.
func (c *InventoryCollector) Collect(ctx context.Context, runToken string) (*entity.Finding, error) {
	drugs, err := c.drugs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar inventario: %w", err)
	}
	now := c.now()
	schedule, err := c.surgeries.ListScheduled(ctx, now, now.Add(c.horizon))
	if err != nil {
		return nil, fmt.Errorf("listar agenda quirúrgica: %w", err)
	}
	c.log.Info().Str("run_token", runToken).Int("drugs", len(drugs)).Int("surgeries", len(schedule)).
		Msg("inventario y agenda cargados")

	payload, err := c.askPrediction(ctx, drugs, schedule)
	if err != nil {
		if !reasoning.IsFallback(err) {
			return nil, err
		}
		c.log.Warn().Err(err).Str("run_token", runToken).Msg("razonamiento no disponible, análisis determinista")
		payload = c.fallbackAnalysis(drugs, schedule, now)
	}
	payload.Mode = entity.RunModeFull
	updates := normalizeAnalysis(payload, drugs)

	expected := len(updates)
	if c.tracker != nil && expected > 0 {
		c.tracker.ExpectSelfWrites(expected)
	}
	writes, err := c.drugs.UpdateBurnRates(ctx, updates)
	if err != nil {
		// El batch es una sola transacción implícita: sin commit no hay notificaciones.
		c.settleSelfWrites(expected, 0)
		return nil, fmt.Errorf("actualizar burn rates: %w", err)
	}
	c.settleSelfWrites(expected, writes)
	c.log.Info().Str("run_token", runToken).Int("writes", writes).Msg("burn rates actualizados")

	return record(ctx, c.findings, c.Name(), runToken, payload, payload.Summary, writes)
}

func (c *InventoryCollector) settleSelfWrites(expected, actual int) {
	if c.tracker != nil && expected > 0 {
		c.tracker.SettleSelfWrites(expected, actual)
	}
}

// CollectQuick variante de la corrida rápida: lee el burn rate ya recalculado por quien editó
// el inventario. No llama al servicio de razonamiento ni escribe en drugs.
func (c *InventoryCollector) CollectQuick(ctx context.Context, runToken string) (*entity.Finding, error) {
	drugs, err := c.drugs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar inventario: %w", err)
	}
	payload := &InventoryPayload{Mode: entity.RunModeQuick}
	for _, d := range drugs {
		b := inventory.Effective(d)
		payload.DrugAnalysis = append(payload.DrugAnalysis, DrugAnalysis{
			DrugName:                d.Name,
			CurrentStock:            d.StockQuantity,
			DailyUsageRate:          d.UsageRateDaily,
			PredictedDailyUsageRate: d.PredictedUsageRate,
			BurnRateDays:            d.BurnRateDays,
			PredictedBurnRateDays:   d.PredictedBurnRateDays,
			RiskLevel:               riskLevel(b),
		})
	}
	payload.Summary = fmt.Sprintf("Corrida rápida: %d medicamentos leídos con su burn rate almacenado.", len(drugs))
	return record(ctx, c.findings, c.Name(), runToken, payload, payload.Summary, 0)
}

func (c *InventoryCollector) askPrediction(ctx context.Context, drugs []*entity.Drug, schedule []*entity.Surgery) (*InventoryPayload, error) {
	var out InventoryPayload
	_, err := c.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          c.Name(),
		System:        c.systemPrompt(),
		Input:         map[string]any{"current_inventory": drugs, "surgery_schedule": schedule},
		ExpectedShape: inventoryShape,
		Temperature:   0.2,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.DrugAnalysis == nil {
		return nil, fmt.Errorf("%w: drug_analysis ausente", domain.ErrMalformedReasoning)
	}
	return &out, nil
}

func (c *InventoryCollector) systemPrompt() string {
	var b strings.Builder
	b.WriteString("Eres un analista experto de inventario de farmacia hospitalaria.\n")
	b.WriteString("Medicamentos vigilados (1 = más crítico):\n")
	for _, d := range c.catalog.Drugs {
		fmt.Fprintf(&b, "- Rank %d: %s (%s)\n", d.Rank, d.Name, d.Type)
	}
	b.WriteString(`Recibirás el inventario actual y la agenda quirúrgica.
- Estima el uso diario proyectado considerando las cirugías.
- Marca el riesgo (CRITICAL si cobertura < 7 días, HIGH si < 14).
- Identifica cirugías afectadas por bajo stock.
- drug_name debe coincidir exactamente con un nombre del inventario.`)
	return b.String()
}

// fallbackAnalysis uso proyectado = uso observado + demanda de cirugías repartida en el horizonte.
func (c *InventoryCollector) fallbackAnalysis(drugs []*entity.Drug, schedule []*entity.Surgery, now time.Time) *InventoryPayload {
	horizonDays := decimal.NewFromFloat(c.horizon.Hours() / 24)
	demand := make(map[string]decimal.Decimal)
	for _, s := range schedule {
		for _, need := range s.DrugsNeeded {
			key := strings.ToLower(need.DrugName)
			demand[key] = demand[key].Add(need.Quantity)
		}
	}

	payload := &InventoryPayload{Fallback: true}
	for _, d := range drugs {
		predicted := d.UsageRateDaily
		if extra, ok := demand[strings.ToLower(d.Name)]; ok && horizonDays.IsPositive() {
			predicted = predicted.Add(extra.Div(horizonDays))
		}
		payload.DrugAnalysis = append(payload.DrugAnalysis, DrugAnalysis{
			DrugName:                d.Name,
			PredictedDailyUsageRate: &predicted,
			Trend:                   "STABLE",
		})
	}

	byName := make(map[string]*entity.Drug, len(drugs))
	for _, d := range drugs {
		byName[strings.ToLower(d.Name)] = d
	}
	for _, s := range schedule {
		var atRisk []string
		for _, need := range s.DrugsNeeded {
			d, ok := byName[strings.ToLower(need.DrugName)]
			if !ok {
				continue
			}
			b := inventory.Compute(d.StockQuantity, d.UsageRateDaily)
			daysUntil := int64(s.ScheduledAt.Sub(now).Hours()/24) + 1
			if d.StockQuantity.LessThan(need.Quantity) || b.Below(daysUntil) {
				atRisk = append(atRisk, d.Name)
			}
		}
		if len(atRisk) > 0 {
			payload.ScheduleImpact = append(payload.ScheduleImpact, ScheduleImpact{
				SurgeryID:      s.ID,
				SurgeryDate:    s.ScheduledAt.Format("2006-01-02"),
				SurgeryType:    s.Procedure,
				DrugsAtRisk:    atRisk,
				Recommendation: "Verificar stock antes de la cirugía o reprogramar.",
			})
		}
	}
	payload.Summary = fmt.Sprintf("Análisis determinista: %d medicamentos, %d cirugías en riesgo.",
		len(drugs), len(payload.ScheduleImpact))
	return payload
}

// normalizeAnalysis fija stock, uso y burn rates desde el inventario (ignora los números del modelo),
// descarta medicamentos que no están en inventario y agrega los que el modelo omitió.
// Devuelve las actualizaciones a persistir, una por medicamento del inventario.
func normalizeAnalysis(p *InventoryPayload, drugs []*entity.Drug) []entity.BurnRateUpdate {
	byName := make(map[string]DrugAnalysis, len(p.DrugAnalysis))
	for _, item := range p.DrugAnalysis {
		byName[item.DrugName] = item
	}

	out := make([]DrugAnalysis, 0, len(drugs))
	updates := make([]entity.BurnRateUpdate, 0, len(drugs))
	for _, d := range drugs {
		item := byName[d.Name]
		item.DrugName = d.Name
		item.CurrentStock = d.StockQuantity
		item.DailyUsageRate = d.UsageRateDaily
		if item.PredictedDailyUsageRate == nil || item.PredictedDailyUsageRate.IsNegative() {
			u := d.UsageRateDaily
			item.PredictedDailyUsageRate = &u
		}

		probe := *d
		probe.PredictedUsageRate = item.PredictedDailyUsageRate
		upd := inventory.Normalize(&probe)
		item.BurnRateDays = upd.BurnRateDays
		item.PredictedBurnRateDays = upd.PredictedBurnRateDays
		if item.RiskLevel == "" || p.Fallback {
			probe.BurnRateDays = upd.BurnRateDays
			probe.PredictedBurnRateDays = upd.PredictedBurnRateDays
			item.RiskLevel = riskLevel(inventory.Effective(&probe))
		}

		out = append(out, item)
		updates = append(updates, upd)
	}
	p.DrugAnalysis = out
	return updates
}

func riskLevel(b inventory.BurnRate) string {
	switch {
	case !b.Known:
		return RiskUnknown
	case b.Below(7):
		return RiskCritical
	case b.Below(14):
		return RiskHigh
	case b.Below(30):
		return RiskMedium
	default:
		return RiskLow
	}
}
