// Package pipeline orquesta la corrida completa y la rápida:
//
//	fase 1 (colectores en paralelo) → fase 2 (síntesis) → fase 3 (sustitutos) → fase 4 (órdenes)
//
// Las fases 3 y 4 son condicionales y sus fallas no abortan la corrida. Una falla de la
// fase 2 deja la corrida en failed y no ejecuta las condicionales. No hay reintentos.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/pharma-sentinel/internal/application/collector"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/synthesis"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// DefaultCollectorLimit colectores simultáneos en la fase 1.
const DefaultCollectorLimit = 3

// Nombres de fase en el RunReport.
const (
	PhaseCollection  = "phase1_collection"
	PhaseSynthesis   = "phase2_synthesis"
	PhaseSubstitutes = "phase3_substitutes"
	PhaseOrders      = "phase4_orders"
)

// SynthesisPhase fase 2.
type SynthesisPhase interface {
	Run(ctx context.Context, runToken string) (*synthesis.Outcome, error)
}

// SubstituteFinder fase 3.
type SubstituteFinder interface {
	Find(ctx context.Context, runToken string, names []string) (*entity.Finding, error)
}

// OrderPlacer fase 4.
type OrderPlacer interface {
	Place(ctx context.Context, runToken string, requests []entity.OrderRequest) (*entity.Finding, error)
}

// QuickCollector colector de la corrida rápida.
type QuickCollector interface {
	CollectQuick(ctx context.Context, runToken string) (*entity.Finding, error)
}

// Units unidades que coordina el orquestador. Quick, Substitutes y Orders pueden ser nil.
type Units struct {
	Collectors  []collector.Collector
	Quick       QuickCollector
	Synthesis   SynthesisPhase
	Substitutes SubstituteFinder
	Orders      OrderPlacer
}

// Orchestrator ejecuta corridas. Varias corridas pueden estar en vuelo a la vez.
type Orchestrator struct {
	units    Units
	findings repository.FindingRepository
	limit    int
	log      *logger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	observers []ports.RunObserver
	last      *entity.RunReport
}

// NewOrchestrator construye el orquestador. limit <= 0 usa DefaultCollectorLimit.
func NewOrchestrator(units Units, findings repository.FindingRepository, limit int, log *logger.Logger) *Orchestrator {
	if limit <= 0 {
		limit = DefaultCollectorLimit
	}
	return &Orchestrator{
		units:    units,
		findings: findings,
		limit:    limit,
		log:      log.Named("pipeline"),
		now:      time.Now,
	}
}

// AddObserver registra un observador de inicio y fin de corrida.
func (o *Orchestrator) AddObserver(obs ports.RunObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// LastReport devuelve una copia del último reporte terminado, o nil.
func (o *Orchestrator) LastReport() *entity.RunReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	c := *o.last
	return &c
}

// NewRunToken genera el identificador de una corrida.
func NewRunToken() string { return uuid.NewString() }

func (o *Orchestrator) ExecuteFullRun(ctx context.Context) *entity.RunReport {
	return o.ExecuteFullRunWithToken(ctx, NewRunToken())
}

func (o *Orchestrator) ExecuteQuickRun(ctx context.Context) *entity.RunReport {
	return o.ExecuteQuickRunWithToken(ctx, NewRunToken())
}

// ExecuteFullRunWithToken corrida completa con un token ya asignado (disparo manual).
func (o *Orchestrator) ExecuteFullRunWithToken(ctx context.Context, runToken string) *entity.RunReport {
	r := o.begin(ctx, runToken, entity.RunModeFull)
	log := o.log.WithRun(runToken)

	// ═══════════════════════════════════════════════════════════════════════
	// Fase 1: colectores en paralelo, aislados entre sí
	// ═══════════════════════════════════════════════════════════════════════
	r.enter(entity.StatePhase1)
	start := o.now()
	failures := o.collect(ctx, runToken, r)
	r.phase(PhaseCollection, start, o.now(), failures)
	log.Info().Int("failures", len(failures)).Int("drug_writes", r.report.DrugWrites).Msg("fase 1 terminada")

	outcome, ok := o.synthesize(ctx, runToken, r)
	if !ok {
		return o.finish(ctx, r)
	}

	// ═══════════════════════════════════════════════════════════════════════
	// Fases 3 y 4: condicionales, no fatales
	// ═══════════════════════════════════════════════════════════════════════
	res := outcome.Result
	if len(res.DrugsNeedingSubstitutes) > 0 && o.units.Substitutes != nil {
		r.enter(entity.StatePhase3)
		start = o.now()
		_, err := o.units.Substitutes.Find(ctx, runToken, res.DrugsNeedingSubstitutes)
		r.phase(PhaseSubstitutes, start, o.now(), o.downstreamFailure(ctx, runToken, entity.ProducerSubstitutes, err))
	} else {
		r.enter(entity.StatePhase3Skipped)
		r.skip(PhaseSubstitutes)
		log.Info().Msg("fase 3 omitida: ningún medicamento requiere sustituto")
	}

	if len(res.DrugsNeedingOrders) > 0 && o.units.Orders != nil {
		r.enter(entity.StatePhase4)
		start = o.now()
		_, err := o.units.Orders.Place(ctx, runToken, res.DrugsNeedingOrders)
		r.phase(PhaseOrders, start, o.now(), o.downstreamFailure(ctx, runToken, entity.ProducerOrders, err))
	} else {
		r.enter(entity.StatePhase4Skipped)
		r.skip(PhaseOrders)
		log.Info().Msg("fase 4 omitida: no se requieren órdenes")
	}

	return o.finish(ctx, r)
}

// ExecuteQuickRunWithToken corrida rápida: inventario en modo quick y síntesis; sin fases condicionales.
func (o *Orchestrator) ExecuteQuickRunWithToken(ctx context.Context, runToken string) *entity.RunReport {
	r := o.begin(ctx, runToken, entity.RunModeQuick)

	r.enter(entity.StatePhase1)
	start := o.now()
	var failures []string
	if o.units.Quick != nil {
		f, err := o.guard(ctx, entity.ProducerInventory, func() (*entity.Finding, error) {
			return o.units.Quick.CollectQuick(ctx, runToken)
		})
		if err != nil {
			failures = append(failures, o.recordFailure(ctx, runToken, domain.PhaseCollection, entity.ProducerInventory, err))
		} else if f != nil {
			r.report.DrugWrites += f.DrugWrites
		}
	}
	r.phase(PhaseCollection, start, o.now(), failures)

	if _, ok := o.synthesize(ctx, runToken, r); !ok {
		return o.finish(ctx, r)
	}
	r.enter(entity.StatePhase3Skipped)
	r.skip(PhaseSubstitutes)
	r.enter(entity.StatePhase4Skipped)
	r.skip(PhaseOrders)
	return o.finish(ctx, r)
}

// RunContinuously ejecuta corridas completas cada interval hasta que ctx termine.
// Una corrida fallida no detiene el ciclo.
func (o *Orchestrator) RunContinuously(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	for n := 1; ; n++ {
		o.log.Info().Int("execution", n).Msg("iniciando ejecución programada")
		rep := o.ExecuteFullRun(ctx)
		var ev *zerolog.Event
		if rep.Status == entity.RunStatusSuccess {
			ev = o.log.Info()
		} else {
			ev = o.log.Warn().Strs("errors", rep.Errors)
		}
		ev.Int("execution", n).Str("run_token", rep.RunToken).Str("status", string(rep.Status)).
			Dur("duration", rep.Duration()).Time("next_run", o.now().Add(interval)).Msg("ejecución terminada")

		select {
		case <-ctx.Done():
			o.log.Info().Int("executions", n).Msg("ciclo detenido")
			return
		case <-time.After(interval):
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Fases
// ──────────────────────────────────────────────────────────────────────────────

// collect corre los colectores con paralelismo acotado. Nunca cancela a los demás:
// cada falla (error o panic) queda como finding de error y como texto en el reporte.
func (o *Orchestrator) collect(ctx context.Context, runToken string, r *run) []string {
	type result struct {
		finding *entity.Finding
		err     error
	}
	results := make([]result, len(o.units.Collectors))

	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, c := range o.units.Collectors {
		g.Go(func() error {
			f, err := o.guard(ctx, c.Name(), func() (*entity.Finding, error) {
				return c.Collect(ctx, runToken)
			})
			results[i] = result{finding: f, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failures []string
	for i, res := range results {
		if res.err != nil {
			failures = append(failures, o.recordFailure(ctx, runToken, domain.PhaseCollection, o.units.Collectors[i].Name(), res.err))
			continue
		}
		if res.finding != nil {
			r.report.DrugWrites += res.finding.DrugWrites
		}
	}
	return failures
}

// synthesize fase 2. Devuelve false si la corrida debe terminar en failed.
func (o *Orchestrator) synthesize(ctx context.Context, runToken string, r *run) (*synthesis.Outcome, bool) {
	r.enter(entity.StatePhase2)
	start := o.now()

	var outcome *synthesis.Outcome
	_, err := o.guard(ctx, entity.ProducerSynthesizer, func() (*entity.Finding, error) {
		if o.units.Synthesis == nil {
			return nil, fmt.Errorf("%w: sintetizador no configurado", domain.ErrSynthesisFailed)
		}
		var err error
		outcome, err = o.units.Synthesis.Run(ctx, runToken)
		return nil, err
	})
	if err == nil && (outcome == nil || outcome.Result == nil) {
		err = fmt.Errorf("%w: resultado vacío", domain.ErrSynthesisFailed)
	}
	if err != nil {
		msg := o.recordFailure(ctx, runToken, domain.PhaseSynthesis, entity.ProducerSynthesizer, err)
		r.phase(PhaseSynthesis, start, o.now(), []string{msg})
		r.fatal = true
		return nil, false
	}

	r.report.Decisions = len(outcome.Result.Decisions)
	r.report.AlertsWritten = outcome.Alerts.Inserted
	r.report.Summary = outcome.Result.Summary
	r.phase(PhaseSynthesis, start, o.now(), nil)
	o.log.Info().Str("run_token", runToken).Int("decisions", r.report.Decisions).
		Int("alerts", r.report.AlertsWritten).Bool("fallback", outcome.Result.Fallback).Msg("fase 2 terminada")
	return outcome, true
}

func (o *Orchestrator) downstreamFailure(ctx context.Context, runToken, unit string, err error) []string {
	if err == nil {
		return nil
	}
	return []string{o.recordFailure(ctx, runToken, domain.PhaseDownstream, unit, err)}
}

// guard ejecuta fn convirtiendo un panic en error con la traza.
func (o *Orchestrator) guard(ctx context.Context, unit string, fn func() (*entity.Finding, error)) (f *entity.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: string(debug.Stack())}
			o.log.Error().Str("unit", unit).Interface("panic", rec).Msg("panic en unidad")
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn()
}

// recordFailure persiste el finding de error de la unidad y devuelve el texto para el reporte.
func (o *Orchestrator) recordFailure(ctx context.Context, runToken, phase, unit string, err error) string {
	perr := domain.NewPhaseError(phase, unit, err)
	trace := ""
	var pe *panicError
	if errors.As(err, &pe) {
		trace = pe.stack
	}
	o.log.Error().Err(err).Str("run_token", runToken).Str("unit", unit).Str("phase", phase).Msg("unidad fallida")

	if o.findings != nil {
		// ctx puede estar cancelado; el finding de error se registra igual.
		if aerr := o.findings.Append(context.WithoutCancel(ctx), entity.NewErrorFinding(unit, runToken, err, trace)); aerr != nil {
			o.log.Error().Err(aerr).Str("run_token", runToken).Str("unit", unit).Msg("no se pudo registrar el finding de error")
		}
	}
	return perr.Error()
}

type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// ──────────────────────────────────────────────────────────────────────────────
// Reporte
// ──────────────────────────────────────────────────────────────────────────────

// run estado mutable de una corrida; solo lo toca la goroutine de la corrida.
type run struct {
	report *entity.RunReport
	fatal  bool
}

func (r *run) enter(s entity.RunState) {
	r.report.Transitions = append(r.report.Transitions, s)
}

func (r *run) phase(name string, start, end time.Time, failures []string) {
	status := entity.PhaseOK
	if len(failures) > 0 {
		r.report.Errors = append(r.report.Errors, failures...)
		status = entity.PhaseFailed
	}
	r.report.Phases = append(r.report.Phases, entity.PhaseResult{
		Name:     name,
		Status:   status,
		Duration: end.Sub(start),
		Errors:   failures,
	})
}

func (r *run) skip(name string) {
	r.report.Phases = append(r.report.Phases, entity.PhaseResult{Name: name, Status: entity.PhaseSkipped})
}

func (o *Orchestrator) begin(ctx context.Context, runToken string, mode entity.RunMode) *run {
	rep := &entity.RunReport{
		RunToken:    runToken,
		Mode:        mode,
		Status:      entity.RunStatusRunning,
		StartedAt:   o.now(),
		Transitions: []entity.RunState{entity.StateStarted},
		Errors:      []string{},
	}
	o.log.Info().Str("run_token", runToken).Str("mode", string(mode)).Msg("corrida iniciada")
	for _, obs := range o.snapshotObservers() {
		obs.RunStarted(ctx, rep)
	}
	return &run{report: rep}
}

func (o *Orchestrator) finish(ctx context.Context, r *run) *entity.RunReport {
	rep := r.report
	rep.Transitions = append(rep.Transitions, entity.StateTerminal)
	rep.FinishedAt = o.now()
	switch {
	case r.fatal:
		rep.Status = entity.RunStatusFailed
	case len(rep.Errors) > 0:
		rep.Status = entity.RunStatusCompletedWithErrors
	default:
		rep.Status = entity.RunStatusSuccess
	}
	if rep.Summary == "" && r.fatal {
		rep.Summary = "Corrida abortada por falla de síntesis."
	}

	o.mu.Lock()
	c := *rep
	o.last = &c
	o.mu.Unlock()

	o.log.Info().Str("run_token", rep.RunToken).Str("mode", string(rep.Mode)).Str("status", string(rep.Status)).
		Dur("duration", rep.Duration()).Int("errors", len(rep.Errors)).Msg("corrida terminada")
	for _, obs := range o.snapshotObservers() {
		obs.RunCompleted(ctx, rep)
	}
	return rep
}

func (o *Orchestrator) snapshotObservers() []ports.RunObserver {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]ports.RunObserver(nil), o.observers...)
}
