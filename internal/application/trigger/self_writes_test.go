package trigger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/collector"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/application/trigger"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/memtest"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

type quickCounter struct {
	mu    sync.Mutex
	calls int
}

func (q *quickCounter) ExecuteQuickRun(context.Context) *entity.RunReport {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	return &entity.RunReport{RunToken: "quick", Mode: entity.RunModeQuick}
}

func (q *quickCounter) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// feedDrugRepo entrega al gate una notificación por fila escrita antes de devolver,
// como el trigger pg_notify mientras la corrida completa sigue en curso.
type feedDrugRepo struct {
	*memtest.DrugRepo
	gate     *trigger.Gate
	rows     int // filas que la base reporta; <0 = todas
	fail     bool
	verdicts []trigger.Verdict
}

func (r *feedDrugRepo) UpdateBurnRates(ctx context.Context, updates []entity.BurnRateUpdate) (int, error) {
	if r.fail {
		return 0, errors.New("batch revertido")
	}
	n, err := r.DrugRepo.UpdateBurnRates(ctx, updates)
	if err != nil {
		return n, err
	}
	if r.rows >= 0 && r.rows < n {
		n = r.rows
	}
	for i := 0; i < n; i++ {
		r.verdicts = append(r.verdicts, r.gate.Handle(ctx, entity.ChangeEvent{Table: "drugs", EventType: entity.EventUpdate}))
	}
	return n, nil
}

func stocked(name string, stock, usage int64) *entity.Drug {
	return &entity.Drug{
		Name:                 name,
		CriticalityRank:      3,
		StockQuantity:        decimal.NewFromInt(stock),
		UsageRateDaily:       decimal.NewFromInt(usage),
		ReorderThresholdDays: 14,
	}
}

func newFeedSetup(t *testing.T, rows int) (*feedDrugRepo, *trigger.Gate, *quickCounter, *collector.InventoryCollector) {
	t.Helper()
	runner := &quickCounter{}
	gate := trigger.NewGate(runner, trigger.Options{Table: "drugs", MinInterval: 0, SelfWrites: -1}, logger.Nop())
	repo := &feedDrugRepo{
		DrugRepo: memtest.NewDrugRepo(stocked("Propofol", 50, 10), stocked("Heparin", 300, 20), stocked("Oxygen", 200, 0)),
		gate:     gate,
		rows:     rows,
	}
	inv := collector.NewInventoryCollector(repo, memtest.NewSurgeryRepo(), memtest.NewFindingRepo(),
		reasoning.NewClient(nil, 0), config.DefaultCatalog(), 30*24*time.Hour, logger.Nop())
	inv.TrackSelfWrites(gate)
	return repo, gate, runner, inv
}

// ──────────────────────────────────────────────────────────────────────────────
// Escrituras propias durante la corrida completa
// ──────────────────────────────────────────────────────────────────────────────

func TestSelfWrites_NotificacionesDuranteLaCorridaSeSuprimen(t *testing.T) {
	repo, gate, runner, inv := newFeedSetup(t, -1)
	ctx := context.Background()

	f, err := inv.Collect(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 3, f.DrugWrites)

	assert.Equal(t, []trigger.Verdict{trigger.VerdictSelfWrite, trigger.VerdictSelfWrite, trigger.VerdictSelfWrite}, repo.verdicts,
		"las escrituras del colector no lanzan corridas rápidas")
	assert.Zero(t, gate.Stats().Pending)

	assert.Equal(t, trigger.VerdictLaunched, gate.Handle(ctx, entity.ChangeEvent{Table: "drugs", EventType: entity.EventUpdate}),
		"la primera edición externa después de la corrida dispara")
	gate.Wait()
	assert.Equal(t, 1, runner.Calls())
}

func TestSelfWrites_FilasSinMatchNoQuedanPendientes(t *testing.T) {
	repo, gate, _, inv := newFeedSetup(t, 1)

	_, err := inv.Collect(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, []trigger.Verdict{trigger.VerdictSelfWrite}, repo.verdicts)
	assert.Zero(t, gate.Stats().Pending, "solo se esperan las filas que la base reportó")
}

func TestSelfWrites_BatchFallidoDesarmaElContador(t *testing.T) {
	repo, gate, _, inv := newFeedSetup(t, -1)
	repo.fail = true

	_, err := inv.Collect(context.Background(), "run-1")
	require.Error(t, err)
	assert.Zero(t, gate.Stats().Pending)
	assert.Equal(t, trigger.VerdictLaunched, gate.Handle(context.Background(), entity.ChangeEvent{Table: "drugs", EventType: entity.EventUpdate}))
	gate.Wait()
}
