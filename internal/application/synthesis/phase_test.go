package synthesis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/alerting"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/synthesis"
	"github.com/jhoicas/pharma-sentinel/internal/application/tools"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/memtest"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

type phaseDeps struct {
	drugs     *memtest.DrugRepo
	shortages *memtest.ShortageRepo
	findings  *memtest.FindingRepo
	alerts    *memtest.AlertRepo
}

func newPhase(gw ports.ReasoningGateway, drugs ...*entity.Drug) (*synthesis.Phase, phaseDeps) {
	deps := phaseDeps{
		drugs:     memtest.NewDrugRepo(drugs...),
		shortages: memtest.NewShortageRepo(),
		findings:  memtest.NewFindingRepo(),
		alerts:    memtest.NewAlertRepo(),
	}
	registry := tools.NewDefaultRegistry(deps.alerts, logger.Nop())
	synth := newSynthesizer(gw, time.Second)
	p := synthesis.NewPhase(synth, deps.drugs, deps.shortages, deps.findings,
		alerting.NewWriter(deps.alerts, logger.Nop()), registry, 0, logger.Nop())
	return p, deps
}

func TestPhase_EscribeAlertasYFinding(t *testing.T) {
	ctx := context.Background()
	p, deps := newPhase(nil, drug("Propofol", 4, "50", "10"), drug("Oxygen", 2, "200", "0"))

	out, err := p.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, out.Result.Fallback)
	assert.Equal(t, 1, out.Alerts.Inserted)

	alerts, err := deps.alerts.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, entity.ActionRestockNow, a.Type)
	assert.Equal(t, "id-Propofol", a.DrugID)
	assert.Equal(t, alerting.StockSource, a.Source)
	assert.True(t, a.ActionRequired)

	var payload alerting.ActionPayload
	require.NoError(t, json.Unmarshal(a.ActionPayload, &payload))
	require.NotNil(t, payload.Order, "la alerta de reposición lleva la orden")
	assert.Equal(t, entity.UrgencyExpedited, payload.Order.Urgency)

	findings, err := deps.findings.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, entity.ProducerSynthesizer, findings[0].ProducerID)
}

func TestPhase_HeparinaEnDosCorridas(t *testing.T) {
	ctx := context.Background()
	p, deps := newPhase(nil, drug("Heparin", 7, "20", "10"))

	_, err := p.Run(ctx, "run-a")
	require.NoError(t, err)
	_, err = p.Run(ctx, "run-b")
	require.NoError(t, err)
	// Re-ejecutar la misma corrida no duplica.
	out, err := p.Run(ctx, "run-a")
	require.NoError(t, err)
	assert.Zero(t, out.Alerts.Inserted)

	all := deps.alerts.All()
	require.Len(t, all, 2)
	assert.Equal(t, all[0].Title, all[1].Title)
	assert.NotEqual(t, all[0].RunToken, all[1].RunToken)
}

func TestPhase_EjecutaCapacidadesPedidas(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{
		content:   `{"decisions": [{"action_type": "RESTOCK_NOW", "severity": "URGENT", "drug_name": "Propofol", "title": "Reponer"}], "summary": "ok"}`,
		toolCalls: []ports.ToolCall{{Name: tools.ClearStaleAlerts}, {Name: "desconocida"}},
	}
	p, deps := newPhase(gw, drug("Propofol", 4, "50", "10"))
	_, err := deps.alerts.Insert(ctx, &entity.Alert{RunToken: "old", Type: entity.ActionRestockNow, DrugName: "Propofol", Title: "Reponer"})
	require.NoError(t, err)

	out, err := p.Run(ctx, "run-2")
	require.NoError(t, err, "una capacidad fallida no aborta la síntesis")
	require.Len(t, out.ToolResults, 2)
	assert.Contains(t, out.ToolResults[1], "ERROR")

	all := deps.alerts.All()
	require.Len(t, all, 1)
	assert.Equal(t, "run-2", all[0].RunToken)
}

func TestPhase_FallaDeStorageEsFatal(t *testing.T) {
	p, deps := newPhase(nil, drug("Propofol", 4, "50", "10"))
	deps.findings.ListErr = errors.New("tabla bloqueada")

	_, err := p.Run(context.Background(), "run-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSynthesisFailed)
}

func TestPhase_FallaAlEscribirAlertasEsFatal(t *testing.T) {
	p, deps := newPhase(nil, drug("Propofol", 4, "50", "10"))
	deps.alerts.InsertErr = errors.New("disco lleno")

	_, err := p.Run(context.Background(), "run-4")
	assert.ErrorIs(t, err, domain.ErrSynthesisFailed)
}
