package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/alerting"
	"github.com/jhoicas/pharma-sentinel/internal/application/tools"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// Outcome resultado de la fase 2.
type Outcome struct {
	Result      *entity.SynthesisResult
	Alerts      alerting.Result
	ToolResults []string
}

// Payload finding del sintetizador.
type Payload struct {
	*entity.SynthesisResult
	AlertsInserted int      `json:"alerts_inserted"`
	AlertsSkipped  int      `json:"alerts_skipped"`
	ToolResults    []string `json:"tool_results,omitempty"`
}

// Phase fase 2 completa: lee findings y snapshot, sintetiza, ejecuta capacidades pedidas,
// escribe alertas y registra su finding. Cualquier error es ErrSynthesisFailed.
type Phase struct {
	synth     *Synthesizer
	drugs     repository.DrugRepository
	shortages repository.ShortageRepository
	findings  repository.FindingRepository
	writer    *alerting.Writer
	registry  *tools.Registry
	lookback  time.Duration
	log       *logger.Logger
}

func NewPhase(
	synth *Synthesizer,
	drugs repository.DrugRepository,
	shortages repository.ShortageRepository,
	findings repository.FindingRepository,
	writer *alerting.Writer,
	registry *tools.Registry,
	lookback time.Duration,
	log *logger.Logger,
) *Phase {
	return &Phase{
		synth:     synth,
		drugs:     drugs,
		shortages: shortages,
		findings:  findings,
		writer:    writer,
		registry:  registry,
		lookback:  lookback,
		log:       log.Named(entity.ProducerSynthesizer),
	}
}

func (p *Phase) Run(ctx context.Context, runToken string) (*Outcome, error) {
	found, err := p.findings.ListByRun(ctx, runToken)
	if err != nil {
		return nil, fmt.Errorf("%w: leer findings: %w", domain.ErrSynthesisFailed, err)
	}
	snap, err := LoadSnapshot(ctx, p.drugs, p.shortages, p.lookback, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}
	p.log.Info().Str("run_token", runToken).Int("findings", len(found)).
		Int("drugs", len(snap.Drugs)).Int("shortages", len(snap.Shortages)).Msg("estado cargado")

	res, calls := p.synth.Synthesize(ctx, found, snap)
	out := &Outcome{Result: res}

	// Las capacidades corren antes de escribir: limpian alertas de corridas anteriores.
	for _, call := range calls {
		if p.registry == nil {
			break
		}
		msg, err := p.registry.Invoke(ctx, runToken, call)
		if err != nil {
			p.log.Warn().Err(err).Str("run_token", runToken).Msg("capacidad fallida")
			msg = "ERROR: " + err.Error()
		}
		out.ToolResults = append(out.ToolResults, msg)
	}

	written, err := p.writer.WriteDecisions(ctx, runToken, res.Decisions, snap.DrugIDs(), res.DrugsNeedingOrders)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}
	out.Alerts = written

	raw, err := json.Marshal(Payload{
		SynthesisResult: res,
		AlertsInserted:  written.Inserted,
		AlertsSkipped:   written.Skipped,
		ToolResults:     out.ToolResults,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: serializar payload: %w", domain.ErrSynthesisFailed, err)
	}
	if err := p.findings.Append(ctx, &entity.Finding{
		ProducerID: entity.ProducerSynthesizer,
		RunToken:   runToken,
		Payload:    raw,
		Summary:    res.Summary,
	}); err != nil {
		return nil, fmt.Errorf("%w: registrar finding: %w", domain.ErrSynthesisFailed, err)
	}

	p.log.Info().Str("run_token", runToken).Int("decisions", len(res.Decisions)).
		Int("substitutes", len(res.DrugsNeedingSubstitutes)).Int("orders", len(res.DrugsNeedingOrders)).
		Bool("fallback", res.Fallback).Msg("síntesis completada")
	return out, nil
}
