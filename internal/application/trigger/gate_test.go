package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

func (r *countingRunner) ExecuteQuickRun(context.Context) *entity.RunReport {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &entity.RunReport{RunToken: "quick", Mode: entity.RunModeQuick, Status: entity.RunStatusSuccess}
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// clock reloj manual para el debounce.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func update(table string) entity.ChangeEvent {
	return entity.ChangeEvent{Table: table, EventType: entity.EventUpdate}
}

func newGate(runner QuickRunner, opts Options) (*Gate, *clock) {
	c := &clock{t: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	g := NewGate(runner, opts, logger.Nop())
	g.now = c.now
	return g, c
}

// ──────────────────────────────────────────────────────────────────────────────
// Filtros
// ──────────────────────────────────────────────────────────────────────────────

func TestGate_IgnoraOtrasTablasYTipos(t *testing.T) {
	runner := &countingRunner{}
	g, _ := newGate(runner, Options{Table: "drugs", MinInterval: time.Second})
	ctx := context.Background()

	assert.Equal(t, VerdictIgnored, g.Handle(ctx, update("alerts")))
	assert.Equal(t, VerdictIgnored, g.Handle(ctx, entity.ChangeEvent{Table: "drugs", EventType: "TRUNCATE"}))
	g.Wait()
	assert.Zero(t, runner.Calls())
	assert.Equal(t, int64(2), g.Stats().Ignored)
}

func TestGate_DebounceDesdeElUltimoDisparo(t *testing.T) {
	runner := &countingRunner{}
	g, clk := newGate(runner, Options{Table: "drugs", MinInterval: 10 * time.Second})
	ctx := context.Background()

	assert.Equal(t, VerdictLaunched, g.Handle(ctx, update("drugs")))
	clk.advance(9 * time.Second)
	assert.Equal(t, VerdictDebounced, g.Handle(ctx, update("drugs")))
	clk.advance(time.Second)
	assert.Equal(t, VerdictLaunched, g.Handle(ctx, update("drugs")), "cumplido el intervalo vuelve a disparar")

	g.Wait()
	assert.Equal(t, 2, runner.Calls())
}

func TestGate_ContadorDeSaltosArmadoAntesDeEscribir(t *testing.T) {
	runner := &countingRunner{}
	g, clk := newGate(runner, Options{Table: "drugs", MinInterval: time.Second, SelfWrites: -1})
	ctx := context.Background()

	g.ExpectSelfWrites(3)
	assert.Equal(t, int64(3), g.Stats().Pending)

	for i := 0; i < 3; i++ {
		clk.advance(time.Hour)
		assert.Equal(t, VerdictSelfWrite, g.Handle(ctx, update("drugs")), "los saltos aplican sin importar el tiempo")
	}
	assert.Equal(t, VerdictIgnored, g.Handle(ctx, update("otra")), "otras tablas no consumen saltos")
	assert.Equal(t, VerdictLaunched, g.Handle(ctx, update("drugs")))

	g.Wait()
	assert.Equal(t, 1, runner.Calls())
	assert.Zero(t, g.Stats().Pending)
}

func TestGate_SettleDescuentaEscriturasQueNoOcurrieron(t *testing.T) {
	g, _ := newGate(&countingRunner{}, Options{Table: "drugs", SelfWrites: -1})

	g.ExpectSelfWrites(3)
	g.SettleSelfWrites(3, 1)
	assert.Equal(t, int64(1), g.Stats().Pending)

	g.SettleSelfWrites(5, 0)
	assert.Zero(t, g.Stats().Pending, "nunca queda negativo")

	g.SettleSelfWrites(2, 2)
	assert.Zero(t, g.Stats().Pending)
}

func TestGate_CorridasSolapadasSuman(t *testing.T) {
	g, _ := newGate(&countingRunner{}, Options{Table: "drugs", SelfWrites: -1})
	g.ExpectSelfWrites(2)
	g.ExpectSelfWrites(3)
	assert.Equal(t, int64(5), g.Stats().Pending)
}

func TestGate_SelfWritesConfigurado(t *testing.T) {
	g, _ := newGate(&countingRunner{}, Options{Table: "drugs", SelfWrites: 10})
	g.ExpectSelfWrites(2)
	assert.Equal(t, int64(10), g.Stats().Pending, "el valor fijo reemplaza al anunciado")

	g.SettleSelfWrites(2, 0)
	assert.Equal(t, int64(10), g.Stats().Pending, "con valor fijo no se ajusta")
}

func TestGate_SelfWritesCeroNoArma(t *testing.T) {
	g, _ := newGate(&countingRunner{}, Options{Table: "drugs", SelfWrites: 0})
	g.ExpectSelfWrites(4)
	assert.Zero(t, g.Stats().Pending)
}

// ──────────────────────────────────────────────────────────────────────────────
// Loop de escucha
// ──────────────────────────────────────────────────────────────────────────────

func TestGate_ListenNoSeBloqueaConLaCorrida(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{})}
	g, _ := newGate(runner, Options{Table: "drugs", MinInterval: 0})
	events := make(chan entity.ChangeEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- g.Listen(ctx, events) }()

	for i := 0; i < 3; i++ {
		select {
		case events <- update("drugs"):
		case <-time.After(time.Second):
			t.Fatal("el loop quedó bloqueado por una corrida en curso")
		}
	}
	require.Eventually(t, g.Listening, time.Second, 5*time.Millisecond)

	close(runner.block)
	close(events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen no terminó al cerrar el canal")
	}
	g.Wait()
	assert.Equal(t, 3, runner.Calls())
	assert.False(t, g.Listening())
}
