package collector

import (
	"context"
	"errors"
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

const (
	newsPageSize       = 5
	newsMaxAnalyzed    = 30
	newsMaxFallback    = 20
	newsMinConfidence  = 0.7
	generalNewsContext = "General"
)

var (
	generalNewsQueries = []string{
		"pharmaceutical supply chain disruption",
		"drug shortage hospital",
		"FDA drug recall",
	}
	negativeKeywords = []string{"shortage", "recall", "disruption", "shutdown", "suspend"}
	criticalKeywords = []string{"critical", "emergency", "halt", "stop production"}
)

// RiskSignal señal de riesgo de suministro extraída de una noticia.
type RiskSignal struct {
	DrugName          string  `json:"drug_name"`
	Headline          string  `json:"headline"`
	Source            string  `json:"source"`
	URL               string  `json:"url"`
	Sentiment         string  `json:"sentiment"`
	SupplyChainImpact string  `json:"supply_chain_impact"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

// EmergingRisk riesgo emergente no atado a un solo medicamento.
type EmergingRisk struct {
	Description   string   `json:"description"`
	AffectedDrugs []string `json:"affected_drugs"`
	RiskLevel     string   `json:"risk_level"`
	TimeHorizon   string   `json:"time_horizon"`
}

// NewsPayload payload del finding de noticias.
type NewsPayload struct {
	ArticlesAnalyzed int            `json:"articles_analyzed"`
	RiskSignals      []RiskSignal   `json:"risk_signals"`
	EmergingRisks    []EmergingRisk `json:"emerging_risks"`
	Inserted         int            `json:"inserted"`
	Summary          string         `json:"summary"`
	Fallback         bool           `json:"fallback"`
}

const newsShape = `{
  "articles_analyzed": 0,
  "risk_signals": [{"drug_name": "string", "headline": "string", "source": "string", "url": "string", "sentiment": "POSITIVE | NEUTRAL | NEGATIVE | CRITICAL", "supply_chain_impact": "NONE | LOW | MEDIUM | HIGH | CRITICAL", "confidence": 0.0, "reasoning": "string"}],
  "emerging_risks": [{"description": "string", "affected_drugs": ["string"], "risk_level": "LOW | MEDIUM | HIGH", "time_horizon": "string"}],
  "summary": "string"
}`

// contextArticle artículo con el medicamento (o "General") cuya consulta lo trajo.
type contextArticle struct {
	DrugContext string `json:"drug_context"`
	dto.NewsArticle
}

// NewsCollector busca noticias de suministro y registra señales de alta confianza como
// desabastecimientos inferidos.
type NewsCollector struct {
	news      ports.NewsSource
	shortages repository.ShortageRepository
	findings  repository.FindingRepository
	reasoner  *reasoning.Client
	catalog   *config.Catalog
	lookback  time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewNewsCollector construye el colector. lookback es la ventana de publicación (7 días por defecto).
func NewNewsCollector(
	news ports.NewsSource,
	shortages repository.ShortageRepository,
	findings repository.FindingRepository,
	reasoner *reasoning.Client,
	catalog *config.Catalog,
	lookback time.Duration,
	log *logger.Logger,
) *NewsCollector {
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	return &NewsCollector{
		news:      news,
		shortages: shortages,
		findings:  findings,
		reasoner:  reasoner,
		catalog:   catalog,
		lookback:  lookback,
		log:       log.Named(entity.ProducerNews),
		now:       time.Now,
	}
}

func (c *NewsCollector) Name() string { return entity.ProducerNews }

func (c *NewsCollector) Collect(ctx context.Context, runToken string) (*entity.Finding, error) {
	now := c.now()
	articles := c.fetch(ctx, now)
	c.log.Info().Str("run_token", runToken).Int("articles", len(articles)).Msg("noticias obtenidas")

	var payload *NewsPayload
	if len(articles) == 0 {
		payload = &NewsPayload{Summary: "No se encontraron noticias en la ventana de búsqueda."}
	} else {
		var err error
		payload, err = c.analyze(ctx, articles)
		if err != nil {
			if !reasoning.IsFallback(err) {
				return nil, err
			}
			c.log.Warn().Err(err).Str("run_token", runToken).Msg("razonamiento no disponible, análisis por palabras clave")
			payload = c.fallback(articles)
		}
	}

	inserted, err := c.recordSignals(ctx, payload.RiskSignals, now)
	if err != nil {
		return nil, err
	}
	payload.Inserted = inserted
	return record(ctx, c.findings, c.Name(), runToken, payload, payload.Summary, 0)
}

// fetch una consulta por medicamento vigilado y las generales; deduplica por URL.
// Errores de consultas individuales se registran y se sigue con las demás.
func (c *NewsCollector) fetch(ctx context.Context, now time.Time) []contextArticle {
	type query struct{ context, q string }
	var queries []query
	for _, name := range c.catalog.Names() {
		queries = append(queries, query{name, fmt.Sprintf(`"%s" AND (shortage OR supply OR manufacturing OR recall)`, name)})
	}
	for _, q := range generalNewsQueries {
		queries = append(queries, query{generalNewsContext, q})
	}

	from := now.Add(-c.lookback)
	seen := make(map[string]bool)
	var out []contextArticle
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		found, err := c.news.Search(ctx, dto.NewsQuery{Query: q.q, From: from, PageSize: newsPageSize})
		if err != nil {
			if errors.Is(err, domain.ErrSourceUnavailable) {
				c.log.Warn().Msg("fuente de noticias no configurada")
				return nil
			}
			c.log.Warn().Err(err).Str("query", q.q).Msg("consulta de noticias fallida")
			continue
		}
		for _, a := range found {
			if a.URL == "" || seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			out = append(out, contextArticle{DrugContext: q.context, NewsArticle: a})
		}
	}
	return out
}

func (c *NewsCollector) analyze(ctx context.Context, articles []contextArticle) (*NewsPayload, error) {
	if len(articles) > newsMaxAnalyzed {
		articles = articles[:newsMaxAnalyzed]
	}
	system := fmt.Sprintf(`Eres un analista de riesgo de la cadena de suministro farmacéutica.
Medicamentos vigilados: %s.
Para cada noticia evalúa el impacto en el suministro (NONE, LOW, MEDIUM, HIGH, CRITICAL),
el sentimiento y una confianza entre 0.0 y 1.0. drug_name debe ser un medicamento vigilado.`,
		strings.Join(c.catalog.Names(), ", "))

	var out NewsPayload
	_, err := c.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          c.Name(),
		System:        system,
		Input:         map[string]any{"articles": articles},
		ExpectedShape: newsShape,
		Temperature:   0.2,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.RiskSignals == nil && out.Summary == "" {
		return nil, fmt.Errorf("%w: risk_signals ausente", domain.ErrMalformedReasoning)
	}
	for i := range out.RiskSignals {
		s := &out.RiskSignals[i]
		s.SupplyChainImpact = normalizeImpact(s.SupplyChainImpact)
		if s.Confidence < 0 {
			s.Confidence = 0
		} else if s.Confidence > 1 {
			s.Confidence = 1
		}
	}
	if out.ArticlesAnalyzed == 0 {
		out.ArticlesAnalyzed = len(articles)
	}
	return &out, nil
}

// fallback detección por palabras clave sobre los primeros artículos.
// Críticas => CRITICAL/HIGH/0.6; negativas => NEGATIVE/MEDIUM/0.5.
func (c *NewsCollector) fallback(articles []contextArticle) *NewsPayload {
	lower := cases.Lower(language.English)
	p := &NewsPayload{ArticlesAnalyzed: len(articles), Fallback: true}

	limit := articles
	if len(limit) > newsMaxFallback {
		limit = limit[:newsMaxFallback]
	}
	for _, a := range limit {
		text := lower.String(a.Title + " " + a.Description)
		negative := matchedKeywords(text, negativeKeywords)
		critical := matchedKeywords(text, criticalKeywords)
		if len(negative) == 0 && len(critical) == 0 {
			continue
		}

		drug := "Unknown"
		if c.catalog.Contains(a.DrugContext) {
			drug = a.DrugContext
		}
		sig := RiskSignal{
			DrugName:          drug,
			Headline:          a.Title,
			Source:            nonEmpty(a.Source, "Unknown"),
			URL:               a.URL,
			Sentiment:         "NEGATIVE",
			SupplyChainImpact: "MEDIUM",
			Confidence:        0.5,
			Reasoning:         "Fallback: palabras clave detectadas: " + strings.Join(append(negative, critical...), ", "),
		}
		if len(critical) > 0 {
			sig.Sentiment = "CRITICAL"
			sig.SupplyChainImpact = "HIGH"
			sig.Confidence = 0.6
		}
		p.RiskSignals = append(p.RiskSignals, sig)
	}
	p.Summary = fmt.Sprintf("Fallback: %d noticias analizadas por palabras clave, %d señales de riesgo.",
		len(articles), len(p.RiskSignals))
	return p
}

// recordSignals inserta como NEWS_INFERRED las señales HIGH/CRITICAL con confianza >= 0.7 sobre
// medicamentos vigilados. Omite la señal si ya hay un registro no resuelto con la misma URL.
func (c *NewsCollector) recordSignals(ctx context.Context, signals []RiskSignal, now time.Time) (int, error) {
	today := now.Truncate(24 * time.Hour)
	inserted := 0
	for _, s := range signals {
		if s.SupplyChainImpact != "HIGH" && s.SupplyChainImpact != "CRITICAL" {
			continue
		}
		if s.Confidence < newsMinConfidence {
			continue
		}
		d, ok := c.catalog.Get(s.DrugName)
		if !ok {
			continue
		}
		cur, err := c.shortages.FindByDrug(ctx, d.Name, entity.ShortageNewsInferred)
		if err != nil {
			return inserted, fmt.Errorf("buscar desabastecimiento inferido %s: %w", d.Name, err)
		}
		if cur != nil && !cur.Resolved && cur.SourceURL == s.URL {
			continue
		}
		rec := &entity.Shortage{
			DrugName:       d.Name,
			Type:           entity.ShortageNewsInferred,
			Source:         nonEmpty(s.Source, "News Media"),
			SourceURL:      s.URL,
			ImpactSeverity: s.SupplyChainImpact,
			Description:    nonEmpty(s.Reasoning, s.Headline),
			ReportedDate:   &today,
		}
		if err := c.shortages.Insert(ctx, rec); err != nil {
			return inserted, fmt.Errorf("insertar desabastecimiento inferido %s: %w", d.Name, err)
		}
		inserted++
		c.log.Info().Str("drug", d.Name).Float64("confidence", s.Confidence).Msg("desabastecimiento inferido de noticias")
	}
	return inserted, nil
}

func matchedKeywords(text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func normalizeImpact(s string) string {
	switch v := strings.ToUpper(strings.TrimSpace(s)); v {
	case "NONE", "LOW", "MEDIUM", "HIGH", "CRITICAL":
		return v
	default:
		return "NONE"
	}
}
