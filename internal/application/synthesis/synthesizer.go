// Package synthesis implementa la fase 2: combina los findings de la corrida con el estado
// vivo del inventario y produce decisiones con evidencia, más las listas de trabajo de las
// fases downstream. Si el servicio de razonamiento falla, aplica el motor de reglas.
package synthesis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

const synthesisSystem = `Eres el sintetizador de decisiones de la farmacia hospitalaria.
Recibes los análisis de inventario, del registro de desabastecimiento y de noticias, más el
inventario actual y los desabastecimientos no resueltos.

Marco de decisión (días de cobertura = burn rate):
- < 7 días: RESTOCK_NOW (CRITICAL si < 3, si no URGENT). Si rank <= 5 y hay desabastecimiento
  activo, además SUBSTITUTE_RECOMMENDED.
- 7 a 14 días: SHORTAGE_WARNING (WARNING, URGENT con desabastecimiento).
- 14 a 30 días con desabastecimiento: SUPPLY_CHAIN_RISK.
- Cirugías en riesgo: SCHEDULE_CHANGE con el ajuste propuesto.
Toda decisión cita al menos una evidencia INVENTORY con los valores literales.
drug_name siempre es un nombre del inventario. Si conviene limpiar alertas obsoletas de
corridas anteriores, pide la herramienta en tool_calls.`

// Synthesizer produce el SynthesisResult de una corrida. Nunca devuelve error:
// sin servicio de razonamiento o con respuesta inválida usa el motor de reglas.
type Synthesizer struct {
	reasoner *reasoning.Client
	rules    Rules
	tools    []ports.ToolSpec
	log      *logger.Logger
	now      func() time.Time
}

// NewSynthesizer construye el sintetizador. tools son las capacidades anunciadas al servicio.
func NewSynthesizer(reasoner *reasoning.Client, rules Rules, tools []ports.ToolSpec, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		reasoner: reasoner,
		rules:    rules,
		tools:    tools,
		log:      log.Named(entity.ProducerSynthesizer),
		now:      time.Now,
	}
}

// Synthesize devuelve el resultado y las capacidades que pidió el servicio de razonamiento (si las hay).
func (s *Synthesizer) Synthesize(ctx context.Context, findings []*entity.Finding, snap *Snapshot) (*entity.SynthesisResult, []ports.ToolCall) {
	now := s.now()
	if snap == nil {
		snap = &Snapshot{TakenAt: now}
	}

	if !s.reasoner.Available() {
		s.log.Warn().Msg("sin servicio de razonamiento, motor de reglas")
		return s.rules.Evaluate(snap, now), nil
	}

	var raw rawSynthesis
	reply, err := s.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          entity.ProducerSynthesizer,
		System:        synthesisSystem,
		Input:         map[string]any{"findings": findingsInput(findings), "current_state": snap},
		ExpectedShape: synthesisShape,
		Temperature:   0.2,
		MaxTokens:     4096,
		Tools:         s.tools,
	}, &raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("razonamiento no disponible, motor de reglas")
		return s.rules.Evaluate(snap, now), nil
	}

	res, err := validate(&raw, snap)
	if err != nil {
		s.log.Warn().Err(err).Msg("respuesta inválida, motor de reglas")
		return s.rules.Evaluate(snap, now), nil
	}
	return res, reply.ToolCalls
}

// findingsInput payload por productor; excluye los del propio sintetizador.
func findingsInput(findings []*entity.Finding) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(findings))
	for _, f := range findings {
		if f == nil || f.ProducerID == entity.ProducerSynthesizer {
			continue
		}
		out[f.ProducerID] = f.Payload
	}
	return out
}
