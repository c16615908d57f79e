package collector_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/collector"
	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/memtest"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

const heparinQuery = `"Heparin" AND (shortage OR supply OR manufacturing OR recall)`

func newNewsCollector(news *fakeNews, shortages *memtest.ShortageRepo, gw *scriptedGateway) *collector.NewsCollector {
	client := reasoning.NewClient(nil, 0)
	if gw != nil {
		client = reasoning.NewClient(gw, time.Second)
	}
	return collector.NewNewsCollector(news, shortages, memtest.NewFindingRepo(), client,
		config.DefaultCatalog(), 7*24*time.Hour, logger.Nop())
}

func decodeNews(t *testing.T, f *entity.Finding) collector.NewsPayload {
	t.Helper()
	var p collector.NewsPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p
}

func TestNews_ConsultasPorMedicamentoYGenerales(t *testing.T) {
	news := &fakeNews{}
	c := newNewsCollector(news, memtest.NewShortageRepo(), nil)

	f, err := c.Collect(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, news.queries, 13, "10 medicamentos + 3 consultas generales")
	assert.Contains(t, news.queries, heparinQuery)
	assert.Zero(t, decodeNews(t, f).ArticlesAnalyzed)
}

func TestNews_FallbackPorPalabrasClave(t *testing.T) {
	news := &fakeNews{byQuery: map[string][]dto.NewsArticle{
		heparinQuery: {
			{Title: "Heparin RECALL announced", URL: "https://n/1", Source: "Reuters"},
			{Title: "Plant HALT hits heparin output", URL: "https://n/2", Source: "AP"},
			{Title: "Heparin prices stable", URL: "https://n/3"},
			{Title: "Duplicate", URL: "https://n/1"},
		},
	}}
	shortages := memtest.NewShortageRepo()
	c := newNewsCollector(news, shortages, nil)

	f, err := c.Collect(context.Background(), "run-2")
	require.NoError(t, err)

	p := decodeNews(t, f)
	assert.True(t, p.Fallback)
	assert.Equal(t, 3, p.ArticlesAnalyzed, "las URLs repetidas se deduplican")
	require.Len(t, p.RiskSignals, 2)

	assert.Equal(t, "Heparin", p.RiskSignals[0].DrugName)
	assert.Equal(t, "NEGATIVE", p.RiskSignals[0].Sentiment)
	assert.Equal(t, "MEDIUM", p.RiskSignals[0].SupplyChainImpact)
	assert.InDelta(t, 0.5, p.RiskSignals[0].Confidence, 1e-9)

	assert.Equal(t, "CRITICAL", p.RiskSignals[1].Sentiment)
	assert.Equal(t, "HIGH", p.RiskSignals[1].SupplyChainImpact)
	assert.InDelta(t, 0.6, p.RiskSignals[1].Confidence, 1e-9)

	assert.Empty(t, shortages.All(), "las señales del fallback nunca alcanzan confianza 0.7")
}

func TestNews_SeñalesDeAltaConfianzaSeRegistran(t *testing.T) {
	news := &fakeNews{byQuery: map[string][]dto.NewsArticle{
		heparinQuery: {{Title: "x", URL: "https://n/1"}},
	}}
	gw := newGateway(map[string]string{
		entity.ProducerNews: `{
			"articles_analyzed": 1,
			"risk_signals": [
				{"drug_name": "Heparin", "headline": "Cierre de planta", "source": "Reuters", "url": "https://n/1", "supply_chain_impact": "CRITICAL", "confidence": 0.9, "reasoning": "Cierre confirmado"},
				{"drug_name": "Insulin", "url": "https://n/2", "supply_chain_impact": "HIGH", "confidence": 0.65},
				{"drug_name": "Morphine", "url": "https://n/3", "supply_chain_impact": "MEDIUM", "confidence": 0.95},
				{"drug_name": "Aspirina", "url": "https://n/4", "supply_chain_impact": "HIGH", "confidence": 0.95}
			],
			"summary": "ok"
		}`,
	})
	shortages := memtest.NewShortageRepo()
	c := newNewsCollector(news, shortages, gw)

	f, err := c.Collect(context.Background(), "run-3")
	require.NoError(t, err)
	assert.Equal(t, 1, decodeNews(t, f).Inserted)

	all := shortages.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Heparin", all[0].DrugName)
	assert.Equal(t, entity.ShortageNewsInferred, all[0].Type)
	assert.Equal(t, "Reuters", all[0].Source)
	assert.Equal(t, "https://n/1", all[0].SourceURL)
	require.NotNil(t, all[0].ReportedDate)

	// Segunda corrida con la misma noticia: no duplica el registro.
	_, err = c.Collect(context.Background(), "run-4")
	require.NoError(t, err)
	assert.Len(t, shortages.All(), 1)
}

func TestNews_FuenteNoConfigurada(t *testing.T) {
	news := &fakeNews{err: domain.ErrSourceUnavailable}
	c := newNewsCollector(news, memtest.NewShortageRepo(), nil)

	f, err := c.Collect(context.Background(), "run-5")
	require.NoError(t, err)
	assert.Len(t, news.queries, 1, "deja de consultar si la fuente no está configurada")
	assert.Empty(t, decodeNews(t, f).RiskSignals)
}
