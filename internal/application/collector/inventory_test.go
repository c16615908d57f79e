package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/collector"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/memtest"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

func newInventoryCollector(drugs *memtest.DrugRepo, findings *memtest.FindingRepo, gw *scriptedGateway, surgeries ...*entity.Surgery) *collector.InventoryCollector {
	var client *reasoning.Client
	if gw != nil {
		client = reasoning.NewClient(gw, time.Second)
	} else {
		client = reasoning.NewClient(nil, 0)
	}
	return collector.NewInventoryCollector(drugs, memtest.NewSurgeryRepo(surgeries...), findings, client,
		config.DefaultCatalog(), 30*24*time.Hour, logger.Nop())
}

func decodeInventory(t *testing.T, f *entity.Finding) collector.InventoryPayload {
	t.Helper()
	var p collector.InventoryPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

// ──────────────────────────────────────────────────────────────────────────────
// Corrida completa
// ──────────────────────────────────────────────────────────────────────────────

func TestInventory_SinRazonamientoCalculaYPersiste(t *testing.T) {
	drugs := memtest.NewDrugRepo(
		drug("Propofol", 4, "50", "10"),
		drug("Oxygen", 2, "200", "0"),
	)
	findings := memtest.NewFindingRepo()
	c := newInventoryCollector(drugs, findings, nil)

	f, err := c.Collect(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, entity.ProducerInventory, f.ProducerID)
	assert.Equal(t, 2, f.DrugWrites, "una escritura por medicamento del inventario")

	p := decodeInventory(t, f)
	assert.True(t, p.Fallback)
	assert.Equal(t, entity.RunModeFull, p.Mode)

	propofol, _ := drugs.GetByName(context.Background(), "Propofol")
	require.NotNil(t, propofol.BurnRateDays)
	assert.Equal(t, "5", propofol.BurnRateDays.String())

	oxygen, _ := drugs.GetByName(context.Background(), "Oxygen")
	assert.Nil(t, oxygen.BurnRateDays, "uso cero => burn rate desconocido, nunca 0")

	stored, err := findings.ListByRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestInventory_PrediccionDelModeloNormalizada(t *testing.T) {
	drugs := memtest.NewDrugRepo(drug("Propofol", 4, "60", "2"))
	gw := newGateway(map[string]string{
		entity.ProducerInventory: `{
			"drug_analysis": [
				{"drug_name": "Propofol", "predicted_daily_usage_rate": 20, "burn_rate_days": 999, "risk_level": "CRITICAL"},
				{"drug_name": "Unobtanium", "predicted_daily_usage_rate": 5}
			],
			"schedule_impact": [],
			"summary": "ok"
		}`,
	})
	c := newInventoryCollector(drugs, memtest.NewFindingRepo(), gw)

	f, err := c.Collect(context.Background(), "run-2")
	require.NoError(t, err)

	p := decodeInventory(t, f)
	assert.False(t, p.Fallback)
	require.Len(t, p.DrugAnalysis, 1, "medicamentos fuera del inventario se ignoran")
	a := p.DrugAnalysis[0]
	assert.Equal(t, "30", a.BurnRateDays.String(), "el burn rate sale de stock/uso, no del modelo")
	assert.Equal(t, "3", a.PredictedBurnRateDays.String())

	stored, _ := drugs.GetByName(context.Background(), "Propofol")
	assert.Equal(t, "3", stored.PredictedBurnRateDays.String())
}

func TestInventory_RespuestaMalformadaUsaFallback(t *testing.T) {
	drugs := memtest.NewDrugRepo(drug("Heparin", 7, "100", "10"))
	gw := newGateway(map[string]string{entity.ProducerInventory: `{"summary": "sin análisis"}`})
	c := newInventoryCollector(drugs, memtest.NewFindingRepo(), gw)

	f, err := c.Collect(context.Background(), "run-3")
	require.NoError(t, err)
	assert.True(t, decodeInventory(t, f).Fallback)
}

func TestInventory_CirugiaEnRiesgo(t *testing.T) {
	drugs := memtest.NewDrugRepo(drug("Propofol", 4, "5", "1"))
	surgery := &entity.Surgery{
		ID:          "s-1",
		Procedure:   "Apendicectomía",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Status:      "SCHEDULED",
		DrugsNeeded: []entity.SurgeryDrug{{DrugName: "Propofol", Quantity: dec("10")}},
	}
	c := newInventoryCollector(drugs, memtest.NewFindingRepo(), nil, surgery)

	f, err := c.Collect(context.Background(), "run-4")
	require.NoError(t, err)

	p := decodeInventory(t, f)
	require.Len(t, p.ScheduleImpact, 1)
	assert.Equal(t, []string{"Propofol"}, p.ScheduleImpact[0].DrugsAtRisk)
}

func TestInventory_FallaDeStorageEsError(t *testing.T) {
	drugs := memtest.NewDrugRepo(drug("Propofol", 4, "50", "10"))
	drugs.UpdateErr = errors.New("disco lleno")
	c := newInventoryCollector(drugs, memtest.NewFindingRepo(), nil)

	_, err := c.Collect(context.Background(), "run-5")
	assert.Error(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Corrida rápida
// ──────────────────────────────────────────────────────────────────────────────

func TestInventory_QuickNoLlamaRazonamientoNiEscribe(t *testing.T) {
	stored := drug("Propofol", 4, "50", "10")
	b := dec("2.5")
	stored.BurnRateDays = &b
	drugs := memtest.NewDrugRepo(stored)
	gw := newGateway(nil)
	c := newInventoryCollector(drugs, memtest.NewFindingRepo(), gw)

	f, err := c.CollectQuick(context.Background(), "run-q")
	require.NoError(t, err)

	assert.Empty(t, gw.Calls(), "la corrida rápida no consulta el servicio de razonamiento")
	assert.Zero(t, f.DrugWrites)

	p := decodeInventory(t, f)
	assert.Equal(t, entity.RunModeQuick, p.Mode)
	require.Len(t, p.DrugAnalysis, 1)
	assert.Equal(t, "2.5", p.DrugAnalysis[0].BurnRateDays.String(), "usa el burn rate almacenado")
	assert.Equal(t, collector.RiskCritical, p.DrugAnalysis[0].RiskLevel)
}
