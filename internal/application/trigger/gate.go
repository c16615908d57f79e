// Package trigger decide cuándo una edición externa del inventario dispara una corrida rápida.
// Es un corta-bucles heurístico: ignora los eventos que la propia corrida completa provoca
// al recalcular burn rates (contador de saltos, armado antes de escribir) y agrupa ráfagas (debounce).
package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// QuickRunner lanza la corrida rápida.
type QuickRunner interface {
	ExecuteQuickRun(ctx context.Context) *entity.RunReport
}

// Verdict resultado de evaluar un evento.
type Verdict string

const (
	VerdictLaunched  Verdict = "launched"
	VerdictIgnored   Verdict = "ignored"    // otra tabla u otro tipo de evento
	VerdictSelfWrite Verdict = "self_write" // consumido por el contador de saltos
	VerdictDebounced Verdict = "debounced"
)

// Options parámetros del gate.
// SelfWrites < 0 arma el contador con las filas que la corrida anuncia antes de escribir;
// >= 0 suma ese valor fijo por cada escritura anunciada.
type Options struct {
	Table       string
	MinInterval time.Duration
	SelfWrites  int
}

// Stats contadores del gate.
type Stats struct {
	Launched   int64 `json:"launched"`
	Ignored    int64 `json:"ignored"`
	SelfWrites int64 `json:"self_writes"`
	Debounced  int64 `json:"debounced"`
	Pending    int64 `json:"pending_skips"`
}

var _ ports.SelfWriteTracker = (*Gate)(nil)

// Gate único consumidor del change feed. El loop de escucha nunca espera a una corrida.
type Gate struct {
	runner QuickRunner
	opts   Options
	log    *logger.Logger
	now    func() time.Time

	skip         atomic.Int64
	lastAccepted atomic.Int64 // unix nanos; 0 = nunca
	listening    atomic.Bool

	launched   atomic.Int64
	ignored    atomic.Int64
	selfWrites atomic.Int64
	debounced  atomic.Int64

	wg sync.WaitGroup
}

func NewGate(runner QuickRunner, opts Options, log *logger.Logger) *Gate {
	if opts.Table == "" {
		opts.Table = "drugs"
	}
	return &Gate{
		runner: runner,
		opts:   opts,
		log:    log.Named("trigger"),
		now:    time.Now,
	}
}

// Handle evalúa un evento: primero tabla y tipo, después el contador de saltos
// (sin importar el tiempo), después el debounce. Si pasa, lanza la corrida rápida en otra goroutine.
func (g *Gate) Handle(ctx context.Context, ev entity.ChangeEvent) Verdict {
	if ev.Table != g.opts.Table || !relevant(ev.EventType) {
		g.ignored.Inc()
		return VerdictIgnored
	}

	if g.consumeSkip() {
		g.selfWrites.Inc()
		g.log.Debug().Str("event", ev.EventType).Int64("pending", g.skip.Load()).Msg("evento propio ignorado")
		return VerdictSelfWrite
	}

	now := g.now().UnixNano()
	last := g.lastAccepted.Load()
	if last != 0 && time.Duration(now-last) < g.opts.MinInterval {
		g.debounced.Inc()
		return VerdictDebounced
	}
	if !g.lastAccepted.CompareAndSwap(last, now) {
		// Otro evento concurrente ganó el disparo.
		g.debounced.Inc()
		return VerdictDebounced
	}

	g.launched.Inc()
	g.log.Info().Str("table", ev.Table).Str("event", ev.EventType).Msg("cambio externo: lanzando corrida rápida")
	runCtx := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		rep := g.runner.ExecuteQuickRun(runCtx)
		if rep != nil {
			g.log.Info().Str("run_token", rep.RunToken).Str("status", string(rep.Status)).Msg("corrida rápida terminada")
		}
	}()
	return VerdictLaunched
}

// consumeSkip decrementa el contador si es positivo.
func (g *Gate) consumeSkip() bool {
	for {
		cur := g.skip.Load()
		if cur <= 0 {
			return false
		}
		if g.skip.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Listen consume eventos hasta que ctx termine o el canal se cierre.
func (g *Gate) Listen(ctx context.Context, events <-chan entity.ChangeEvent) error {
	g.listening.Store(true)
	defer g.listening.Store(false)
	g.log.Info().Str("table", g.opts.Table).Dur("min_interval", g.opts.MinInterval).Msg("escuchando cambios")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			g.Handle(ctx, ev)
		}
	}
}

// Wait espera a las corridas rápidas lanzadas.
func (g *Gate) Wait() { g.wg.Wait() }

// Listening indica si hay un loop de escucha activo.
func (g *Gate) Listening() bool { return g.listening.Load() }

func (g *Gate) Stats() Stats {
	return Stats{
		Launched:   g.launched.Load(),
		Ignored:    g.ignored.Load(),
		SelfWrites: g.selfWrites.Load(),
		Debounced:  g.debounced.Load(),
		Pending:    g.skip.Load(),
	}
}

// ExpectSelfWrites arma el contador antes de que la corrida escriba en drugs: las notificaciones
// de esas escrituras llegan mientras la corrida sigue en curso. Suma, porque dos corridas
// completas pueden solaparse.
func (g *Gate) ExpectSelfWrites(n int) {
	if g.opts.SelfWrites >= 0 {
		n = g.opts.SelfWrites
	}
	if n <= 0 {
		return
	}
	pending := g.skip.Add(int64(n))
	g.log.Info().Int("expected", n).Int64("pending", pending).Msg("contador de escrituras propias armado")
}

// SettleSelfWrites descuenta las escrituras anunciadas que no llegaron a la base
// (filas sin match o batch revertido). Con SelfWrites fijo no ajusta nada.
func (g *Gate) SettleSelfWrites(expected, actual int) {
	if g.opts.SelfWrites >= 0 {
		return
	}
	missing := int64(expected - actual)
	if missing <= 0 {
		return
	}
	for {
		cur := g.skip.Load()
		next := cur - missing
		if next < 0 {
			next = 0
		}
		if g.skip.CompareAndSwap(cur, next) {
			return
		}
	}
}

func relevant(eventType string) bool {
	switch eventType {
	case entity.EventInsert, entity.EventUpdate, entity.EventDelete:
		return true
	}
	return false
}
