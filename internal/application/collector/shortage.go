package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// Estados de un desabastecimiento reportado.
const (
	StatusOngoing   = "ONGOING"
	StatusWorsening = "WORSENING"
	StatusResolved  = "RESOLVED"
)

// RegistrySourceLabel etiqueta de origen de los registros FDA.
const RegistrySourceLabel = "FDA Drug Shortages"

// RegistryPageURL página pública del registro, usada como URL de evidencia.
const RegistryPageURL = "https://www.accessdata.fda.gov/scripts/drugshortages/default.cfm"

// ShortageMatch desabastecimiento del registro asociado a un medicamento vigilado.
type ShortageMatch struct {
	DrugName            string `json:"drug_name"`
	RegistryDrugName    string `json:"fda_drug_name"`
	Status              string `json:"status"`
	ImpactSeverity      string `json:"impact_severity"`
	Reason              string `json:"reason"`
	EstimatedResolution string `json:"estimated_resolution,omitempty"`
	SourceURL           string `json:"source_url"`
	ReportedDate        string `json:"reported_date,omitempty"`
	CarriedForward      bool   `json:"carried_forward,omitempty"`
}

// ShortagePayload payload del finding del registro de desabastecimiento.
type ShortagePayload struct {
	ShortagesFound  []ShortageMatch `json:"shortages_found"`
	NoImpactDrugs   []string        `json:"no_impact_drugs"`
	RegistryRecords int             `json:"registry_records"`
	Inserted        int             `json:"inserted"`
	Updated         int             `json:"updated"`
	Summary         string          `json:"summary"`
	Fallback        bool            `json:"fallback"`
}

const shortageShape = `{
  "shortages_found": [{"drug_name": "string (de la lista vigilada)", "fda_drug_name": "string", "status": "ONGOING | RESOLVED | WORSENING", "impact_severity": "LOW | MEDIUM | HIGH | CRITICAL", "reason": "string", "estimated_resolution": "string", "source_url": "string"}],
  "no_impact_drugs": ["string"],
  "summary": "string"
}`

// ShortageCollector consulta el registro oficial y mantiene la tabla shortages.
type ShortageCollector struct {
	registry  ports.ShortageRegistry
	shortages repository.ShortageRepository
	findings  repository.FindingRepository
	reasoner  *reasoning.Client
	catalog   *config.Catalog
	lookback  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewShortageCollector construye el colector. lookback acota los registros existentes considerados.
func NewShortageCollector(
	registry ports.ShortageRegistry,
	shortages repository.ShortageRepository,
	findings repository.FindingRepository,
	reasoner *reasoning.Client,
	catalog *config.Catalog,
	lookback time.Duration,
	log *logger.Logger,
) *ShortageCollector {
	if lookback <= 0 {
		lookback = 180 * 24 * time.Hour
	}
	return &ShortageCollector{
		registry:  registry,
		shortages: shortages,
		findings:  findings,
		reasoner:  reasoner,
		catalog:   catalog,
		lookback:  lookback,
		log:       log.Named(entity.ProducerShortage),
		now:       time.Now,
	}
}

func (c *ShortageCollector) Name() string { return entity.ProducerShortage }

func (c *ShortageCollector) Collect(ctx context.Context, runToken string) (*entity.Finding, error) {
	now := c.now()
	existing, err := c.shortages.ListUnresolved(ctx, now.Add(-c.lookback))
	if err != nil {
		return nil, fmt.Errorf("listar desabastecimientos: %w", err)
	}

	// La fuente externa es un colaborador: si falla se analiza con lo que hay.
	records, err := c.registry.FetchShortages(ctx, c.catalog.SearchTerms)
	if err != nil {
		c.log.Warn().Err(err).Str("run_token", runToken).Msg("registro de desabastecimiento no disponible")
		records = nil
	}

	payload, err := c.analyze(ctx, existing, records)
	if err != nil {
		if !reasoning.IsFallback(err) {
			return nil, err
		}
		c.log.Warn().Err(err).Str("run_token", runToken).Msg("razonamiento no disponible, coincidencia determinista")
		payload = c.fallback(existing, records)
	}
	payload.RegistryRecords = len(records)

	if err := c.upsert(ctx, payload, existing, now); err != nil {
		return nil, err
	}
	c.log.Info().Str("run_token", runToken).Int("found", len(payload.ShortagesFound)).
		Int("inserted", payload.Inserted).Int("updated", payload.Updated).Msg("desabastecimientos procesados")

	return record(ctx, c.findings, c.Name(), runToken, payload, payload.Summary, 0)
}

func (c *ShortageCollector) analyze(ctx context.Context, existing []*entity.Shortage, records []dto.RegistryRecord) (*ShortagePayload, error) {
	var b strings.Builder
	b.WriteString("Eres un analista de desabastecimiento de medicamentos. Recibirás los registros internos existentes y datos frescos del registro FDA.\nMedicamentos vigilados:\n")
	for _, d := range c.catalog.Drugs {
		fmt.Fprintf(&b, "  Rank %d: %s (%s)\n", d.Rank, d.Name, d.Type)
	}
	b.WriteString(`- Asocia los registros FDA a los medicamentos vigilados (coincidencia aproximada de nombre genérico).
- Estado: ONGOING, WORSENING o RESOLVED.
- Severidad: CRITICAL para rank 1-3, HIGH para 4-6, MEDIUM en otro caso.
- drug_name debe ser exactamente un nombre de la lista vigilada.`)

	var out ShortagePayload
	_, err := c.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          c.Name(),
		System:        b.String(),
		Input:         map[string]any{"existing_internal_records": existing, "fresh_fda_data": records},
		ExpectedShape: shortageShape,
		Temperature:   0.2,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.ShortagesFound == nil {
		return nil, fmt.Errorf("%w: shortages_found ausente", domain.ErrMalformedReasoning)
	}
	valid := out.ShortagesFound[:0]
	for _, m := range out.ShortagesFound {
		d, ok := c.catalog.Get(m.DrugName)
		if !ok {
			continue
		}
		m.DrugName = d.Name
		m.Status = normalizeStatus(m.Status)
		if m.ImpactSeverity == "" {
			m.ImpactSeverity = severityForRank(d.Rank)
		}
		valid = append(valid, m)
	}
	out.ShortagesFound = valid
	return &out, nil
}

// fallback arrastra los registros existentes de medicamentos vigilados y asocia los registros
// FDA por nombre genérico o alias del catálogo.
func (c *ShortageCollector) fallback(existing []*entity.Shortage, records []dto.RegistryRecord) *ShortagePayload {
	p := &ShortagePayload{Fallback: true}
	seen := make(map[string]bool)

	for _, r := range records {
		d, ok := matchMonitored(c.catalog, r.GenericName)
		if !ok || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		p.ShortagesFound = append(p.ShortagesFound, ShortageMatch{
			DrugName:         d.Name,
			RegistryDrugName: r.GenericName,
			Status:           normalizeStatus(r.Status),
			ImpactSeverity:   severityForRank(d.Rank),
			Reason:           nonEmpty(r.ShortageReason, "Sin motivo informado."),
			SourceURL:        RegistryPageURL,
			ReportedDate:     r.UpdateDate,
		})
	}

	carried := 0
	for _, s := range existing {
		if !c.catalog.Contains(s.DrugName) || seen[s.DrugName] {
			continue
		}
		seen[s.DrugName] = true
		carried++
		p.ShortagesFound = append(p.ShortagesFound, ShortageMatch{
			DrugName:         s.DrugName,
			RegistryDrugName: s.DrugName,
			Status:           StatusOngoing,
			ImpactSeverity:   nonEmpty(s.ImpactSeverity, "MEDIUM"),
			Reason:           s.Description,
			SourceURL:        s.SourceURL,
			CarriedForward:   true,
		})
	}

	for _, d := range c.catalog.Drugs {
		if !seen[d.Name] {
			p.NoImpactDrugs = append(p.NoImpactDrugs, d.Name)
		}
	}
	p.Summary = fmt.Sprintf("Fallback: %d coincidencias en el registro, %d registros existentes arrastrados.",
		len(p.ShortagesFound)-carried, carried)
	return p
}

// upsert actualiza el registro existente del medicamento o inserta uno nuevo si no está resuelto.
// Los registros arrastrados no se reescriben.
func (c *ShortageCollector) upsert(ctx context.Context, p *ShortagePayload, existing []*entity.Shortage, now time.Time) error {
	existingByName := make(map[string]*entity.Shortage, len(existing))
	for _, s := range existing {
		if s.Type == entity.ShortageFDAReported || s.Type == "" {
			existingByName[s.DrugName] = s
		}
	}
	today := now.Truncate(24 * time.Hour)

	for _, m := range p.ShortagesFound {
		if m.CarriedForward || m.DrugName == "" {
			continue
		}
		resolved := m.Status == StatusResolved
		reported := parseRegistryDate(m.ReportedDate, today)
		rec := &entity.Shortage{
			DrugName:       m.DrugName,
			Type:           entity.ShortageFDAReported,
			Source:         RegistrySourceLabel,
			SourceURL:      m.SourceURL,
			ImpactSeverity: nonEmpty(m.ImpactSeverity, "MEDIUM"),
			Description:    nonEmpty(m.Reason, "Sin motivo informado."),
			ReportedDate:   &reported,
			Resolved:       resolved,
		}
		if cur, ok := existingByName[m.DrugName]; ok {
			rec.ID = cur.ID
			rec.CreatedAt = cur.CreatedAt
			if err := c.shortages.Update(ctx, rec); err != nil {
				return fmt.Errorf("actualizar desabastecimiento %s: %w", m.DrugName, err)
			}
			p.Updated++
			continue
		}
		if resolved {
			continue
		}
		if err := c.shortages.Insert(ctx, rec); err != nil {
			return fmt.Errorf("insertar desabastecimiento %s: %w", m.DrugName, err)
		}
		p.Inserted++
	}
	return nil
}

// matchMonitored busca el medicamento vigilado cuyo nombre o alias aparece en el nombre genérico.
func matchMonitored(catalog *config.Catalog, genericName string) (config.MonitoredDrug, bool) {
	fold := cases.Lower(language.English)
	name := fold.String(genericName)
	for _, d := range catalog.Drugs {
		for _, candidate := range append([]string{d.Name}, d.Aliases...) {
			if candidate != "" && strings.Contains(name, fold.String(candidate)) {
				return d, true
			}
		}
	}
	return config.MonitoredDrug{}, false
}

func normalizeStatus(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RESOLVED", "NO LONGER IN SHORTAGE":
		return StatusResolved
	case "WORSENING":
		return StatusWorsening
	default:
		return StatusOngoing
	}
}

func severityForRank(rank int) string {
	switch {
	case rank >= 1 && rank <= 3:
		return "CRITICAL"
	case rank >= 4 && rank <= 6:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

// parseRegistryDate acepta MM/DD/YYYY (formato del registro) o YYYY-MM-DD; si no, def.
func parseRegistryDate(s string, def time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return def
}

func nonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
