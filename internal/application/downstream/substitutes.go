// Package downstream contiene las unidades condicionales de las fases 3 y 4: búsqueda de
// sustitutos y gestión de órdenes. Sus fallas se reportan pero no abortan la corrida.
package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// SubstituteOption sustituto propuesto para un medicamento.
type SubstituteOption struct {
	Name              string `json:"name"`
	PreferenceRank    int    `json:"preference_rank"`
	EquivalenceNotes  string `json:"equivalence_notes"`
	DosingConversion  string `json:"dosing_conversion,omitempty"`
	Contraindications string `json:"contraindications,omitempty"`
	InStock           bool   `json:"in_stock"`
}

// Substitution sustitutos de un medicamento.
type Substitution struct {
	OriginalDrug          string             `json:"original_drug"`
	Substitutes           []SubstituteOption `json:"substitutes"`
	NoSubstituteAvailable bool               `json:"no_substitute_available"`
	ClinicalNotes         string             `json:"clinical_notes,omitempty"`
}

// SubstitutePayload finding de la fase 3.
type SubstitutePayload struct {
	Substitutions []Substitution `json:"substitutions"`
	Upserted      int            `json:"upserted"`
	Summary       string         `json:"summary"`
	Fallback      bool           `json:"fallback"`
}

const substituteShape = `{
  "substitutions": [{"original_drug": "string", "substitutes": [{"name": "string", "preference_rank": 1, "equivalence_notes": "string", "dosing_conversion": "string", "contraindications": "string", "in_stock": true}], "no_substitute_available": false, "clinical_notes": "string"}],
  "summary": "string"
}`

const substituteSystem = `Eres un farmacéutico clínico experto.
Recibes los medicamentos que necesitan sustituto y el inventario actual.
Recomienda sustitutos clínicamente apropiados, ordenados por preferencia (1 = mejor), con notas de
equivalencia, conversión de dosis y contraindicaciones. Marca in_stock según el inventario.
Si no hay sustituto viable, no_substitute_available = true.`

// SubstituteFinder fase 3. Solo persiste sustitutos presentes en el inventario.
type SubstituteFinder struct {
	drugs       repository.DrugRepository
	substitutes repository.SubstituteRepository
	findings    repository.FindingRepository
	reasoner    *reasoning.Client
	log         *logger.Logger
}

func NewSubstituteFinder(
	drugs repository.DrugRepository,
	substitutes repository.SubstituteRepository,
	findings repository.FindingRepository,
	reasoner *reasoning.Client,
	log *logger.Logger,
) *SubstituteFinder {
	return &SubstituteFinder{
		drugs:       drugs,
		substitutes: substitutes,
		findings:    findings,
		reasoner:    reasoner,
		log:         log.Named(entity.ProducerSubstitutes),
	}
}

// Find busca sustitutos para names. Sin razonamiento no escribe y reporta los sustitutos ya registrados.
func (f *SubstituteFinder) Find(ctx context.Context, runToken string, names []string) (*entity.Finding, error) {
	if len(names) == 0 {
		return record(ctx, f.findings, entity.ProducerSubstitutes, runToken,
			&SubstitutePayload{Substitutions: []Substitution{}, Summary: "Ningún medicamento requiere sustituto."})
	}

	inv, err := f.drugs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar inventario: %w", err)
	}
	byName := indexDrugs(inv)

	var payload *SubstitutePayload
	var out SubstitutePayload
	_, err = f.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          entity.ProducerSubstitutes,
		System:        substituteSystem,
		Input:         map[string]any{"drugs_needing_substitutes": names, "inventory": inv},
		ExpectedShape: substituteShape,
		Temperature:   0.2,
	}, &out)
	switch {
	case err == nil && out.Substitutions != nil:
		payload = &out
		if err := f.upsert(ctx, payload, byName); err != nil {
			return nil, err
		}
	case err == nil || reasoning.IsFallback(err):
		f.log.Warn().Err(err).Str("run_token", runToken).Msg("razonamiento no disponible, sin actualizar sustitutos")
		payload, err = f.fallback(ctx, names, byName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	f.log.Info().Str("run_token", runToken).Int("drugs", len(names)).Int("upserted", payload.Upserted).Msg("sustitutos procesados")
	return record(ctx, f.findings, entity.ProducerSubstitutes, runToken, payload)
}

// upsert persiste solo pares (original, sustituto) donde ambos están en el inventario.
func (f *SubstituteFinder) upsert(ctx context.Context, p *SubstitutePayload, inv map[string]*entity.Drug) error {
	for i := range p.Substitutions {
		s := &p.Substitutions[i]
		orig, ok := inv[strings.ToLower(strings.TrimSpace(s.OriginalDrug))]
		if !ok {
			f.log.Debug().Str("drug", s.OriginalDrug).Msg("medicamento fuera del inventario, se omite")
			continue
		}
		s.OriginalDrug = orig.Name
		for j := range s.Substitutes {
			opt := &s.Substitutes[j]
			sub, ok := inv[strings.ToLower(strings.TrimSpace(opt.Name))]
			if !ok || sub.Name == orig.Name {
				f.log.Debug().Str("substitute", opt.Name).Msg("sustituto fuera del inventario, se omite")
				continue
			}
			opt.Name = sub.Name
			opt.InStock = sub.StockQuantity.IsPositive()
			rank := opt.PreferenceRank
			if rank <= 0 {
				rank = j + 1
			}
			if err := f.substitutes.Upsert(ctx, &entity.Substitute{
				DrugName:         orig.Name,
				SubstituteName:   sub.Name,
				EquivalenceNotes: opt.EquivalenceNotes,
				PreferenceRank:   rank,
			}); err != nil {
				return fmt.Errorf("guardar sustituto %s → %s: %w", orig.Name, sub.Name, err)
			}
			p.Upserted++
		}
	}
	if p.Summary == "" {
		p.Summary = fmt.Sprintf("%d sustitutos registrados.", p.Upserted)
	}
	return nil
}

// fallback reporta los sustitutos ya registrados para cada medicamento, sin escribir.
func (f *SubstituteFinder) fallback(ctx context.Context, names []string, inv map[string]*entity.Drug) (*SubstitutePayload, error) {
	p := &SubstitutePayload{Substitutions: make([]Substitution, 0, len(names)), Fallback: true}
	known := 0
	for _, name := range names {
		existing, err := f.substitutes.ListByDrug(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("listar sustitutos de %s: %w", name, err)
		}
		s := Substitution{OriginalDrug: name, Substitutes: []SubstituteOption{}, NoSubstituteAvailable: len(existing) == 0}
		for _, e := range existing {
			opt := SubstituteOption{Name: e.SubstituteName, PreferenceRank: e.PreferenceRank, EquivalenceNotes: e.EquivalenceNotes}
			if d, ok := inv[strings.ToLower(e.SubstituteName)]; ok {
				opt.InStock = d.StockQuantity.IsPositive()
			}
			s.Substitutes = append(s.Substitutes, opt)
		}
		known += len(existing)
		p.Substitutions = append(p.Substitutions, s)
	}
	p.Summary = fmt.Sprintf("Razonamiento no disponible: sin actualizaciones de sustitutos; %d sustitutos ya registrados.", known)
	return p, nil
}

func indexDrugs(drugs []*entity.Drug) map[string]*entity.Drug {
	out := make(map[string]*entity.Drug, len(drugs))
	for _, d := range drugs {
		out[strings.ToLower(d.Name)] = d
	}
	return out
}

// record serializa el payload y lo agrega a la bitácora con el summary que trae.
func record(ctx context.Context, findings repository.FindingRepository, producer, runToken string, payload interface{ summary() string }) (*entity.Finding, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: serializar payload: %w", producer, err)
	}
	f := &entity.Finding{ProducerID: producer, RunToken: runToken, Payload: raw, Summary: payload.summary()}
	if err := findings.Append(ctx, f); err != nil {
		return nil, fmt.Errorf("%s: registrar finding: %w", producer, err)
	}
	return f, nil
}

func (p *SubstitutePayload) summary() string { return p.Summary }
