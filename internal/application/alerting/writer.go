// Package alerting proyecta decisiones a alertas y las persiste sin duplicados dentro de una corrida.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// StockSource marcador de origen cuando la única evidencia es el inventario.
const StockSource = "Stock"

// ActionRequired tabla fija por tipo de acción; no depende de la evidencia.
func ActionRequired(t entity.ActionType) bool {
	switch t {
	case entity.ActionRestockNow, entity.ActionScheduleChange, entity.ActionSupplyChainRisk,
		entity.ActionAutoOrderPlaced:
		return true
	default:
		return false
	}
}

// Source URL de la primera evidencia con un enlace externo bien formado; si no hay,
// "Stock" cuando existe evidencia de inventario; si no, vacío.
func Source(evidence []entity.Evidence) string {
	for _, e := range evidence {
		if isExternalLink(e.URL) {
			return e.URL
		}
	}
	for _, e := range evidence {
		if e.SourceType == entity.SourceInventory {
			return StockSource
		}
	}
	return ""
}

func isExternalLink(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ActionPayload contenido de alerts.action_payload.
type ActionPayload struct {
	Evidence []entity.Evidence    `json:"evidence,omitempty"`
	Order    *entity.OrderRequest `json:"order,omitempty"`
	Details  any                  `json:"details,omitempty"`
}

// FromDecision proyecta una decisión a alerta de la corrida. drugID vacío si el
// medicamento no está en inventario; order se adjunta cuando la decisión pide compra.
func FromDecision(runToken string, d entity.Decision, drugID string, order *entity.OrderRequest) (*entity.Alert, error) {
	payload, err := json.Marshal(ActionPayload{Evidence: d.Evidence, Order: order})
	if err != nil {
		return nil, fmt.Errorf("serializar action_payload: %w", err)
	}
	return &entity.Alert{
		RunToken:       runToken,
		Type:           d.ActionType,
		Severity:       d.Severity,
		DrugName:       d.DrugName,
		DrugID:         drugID,
		Title:          d.Title,
		Description:    d.Description,
		ActionPayload:  payload,
		ActionRequired: ActionRequired(d.ActionType),
		Source:         Source(d.Evidence),
	}, nil
}

// Result conteo de una escritura.
type Result struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Writer persiste alertas con deduplicación por (tipo, medicamento, título) dentro de la corrida.
// La lectura previa no es transaccional: el índice único del storage es el respaldo.
type Writer struct {
	alerts repository.AlertRepository
	log    *logger.Logger
}

func NewWriter(alerts repository.AlertRepository, log *logger.Logger) *Writer {
	return &Writer{alerts: alerts, log: log.Named("alert_writer")}
}

// Write inserta las alertas que no existan aún para runToken. Las alertas deben pertenecer a runToken.
func (w *Writer) Write(ctx context.Context, runToken string, alerts []*entity.Alert) (Result, error) {
	var res Result
	if len(alerts) == 0 {
		return res, nil
	}

	existing, err := w.alerts.ListByRun(ctx, runToken)
	if err != nil {
		return res, fmt.Errorf("leer alertas de la corrida: %w", err)
	}
	seen := make(map[entity.AlertKey]bool, len(existing)+len(alerts))
	for _, a := range existing {
		seen[a.Key()] = true
	}

	for _, a := range alerts {
		a.RunToken = runToken
		k := a.Key()
		if seen[k] {
			res.Skipped++
			continue
		}
		seen[k] = true

		inserted, err := w.alerts.Insert(ctx, a)
		if err != nil {
			return res, fmt.Errorf("insertar alerta %s/%s: %w", a.Type, a.DrugName, err)
		}
		if !inserted {
			// Otra corrida concurrente ganó la carrera con la misma clave.
			w.log.Debug().Str("run_token", runToken).Str("drug", a.DrugName).Str("title", a.Title).Msg("alerta ya existente")
			res.Skipped++
			continue
		}
		res.Inserted++
	}

	w.log.Info().Str("run_token", runToken).Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("alertas escritas")
	return res, nil
}

// WriteDecisions proyecta y persiste las decisiones. drugIDs mapea nombre → id de inventario;
// orders aporta la solicitud de compra de las decisiones que la piden.
func (w *Writer) WriteDecisions(
	ctx context.Context,
	runToken string,
	decisions []entity.Decision,
	drugIDs map[string]string,
	orders []entity.OrderRequest,
) (Result, error) {
	orderByDrug := make(map[string]*entity.OrderRequest, len(orders))
	for i := range orders {
		orderByDrug[orders[i].DrugName] = &orders[i]
	}

	alerts := make([]*entity.Alert, 0, len(decisions))
	for _, d := range decisions {
		var order *entity.OrderRequest
		if d.NeedsOrder {
			order = orderByDrug[d.DrugName]
		}
		a, err := FromDecision(runToken, d, drugIDs[d.DrugName], order)
		if err != nil {
			return Result{}, err
		}
		alerts = append(alerts, a)
	}
	return w.Write(ctx, runToken, alerts)
}
