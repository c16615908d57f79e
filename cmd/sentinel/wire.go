package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/pharma-sentinel/internal/application/alerting"
	"github.com/jhoicas/pharma-sentinel/internal/application/collector"
	"github.com/jhoicas/pharma-sentinel/internal/application/downstream"
	"github.com/jhoicas/pharma-sentinel/internal/application/pipeline"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/application/synthesis"
	"github.com/jhoicas/pharma-sentinel/internal/application/tools"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/ai"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/pharma-sentinel/internal/infrastructure/redis"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/sources"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// services grafo de dependencias armado para un proceso.
type services struct {
	pool         *pgxpool.Pool
	orchestrator *pipeline.Orchestrator
	inventory    *collector.InventoryCollector
	alerts       *postgres.AlertRepo
	findings     *postgres.FindingRepo
	pubsub       *infraredis.PubSubClient
}

func (s *services) Close() {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// wire conecta PostgreSQL, el servicio de razonamiento, las fuentes externas y arma el orquestador.
// Sin Redis configurado las corridas no se publican.
func wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services, error) {
	catalog, err := config.LoadCatalog(cfg.Pipeline.CatalogPath)
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	s := &services{pool: pool}

	gateway, err := ai.NewGateway(cfg.AI)
	if err != nil {
		s.Close()
		return nil, err
	}
	reasoner := reasoning.NewClient(gateway, cfg.AI.Timeout)
	if !reasoner.Available() {
		log.Warn().Str("provider", cfg.AI.Provider).Msg("servicio de razonamiento no configurado: se usará el motor determinista")
	}

	drugs := postgres.NewDrugRepository(pool)
	shortages := postgres.NewShortageRepository(pool)
	surgeries := postgres.NewSurgeryRepository(pool)
	s.findings = postgres.NewFindingRepository(pool)
	s.alerts = postgres.NewAlertRepository(pool)

	fda := sources.NewFDARegistry(cfg.Sources.FDAURL, cfg.Sources.Timeout, cfg.Sources.Retries)
	news := sources.NewNewsAPI(cfg.Sources.NewsURL, cfg.Sources.NewsAPIKey, cfg.Sources.Timeout, cfg.Sources.Retries)

	inventory := collector.NewInventoryCollector(drugs, surgeries, s.findings, reasoner, catalog, cfg.Pipeline.SurgeryHorizon, log)
	shortage := collector.NewShortageCollector(fda, shortages, s.findings, reasoner, catalog, cfg.Pipeline.ShortageLookback, log)
	newsCollector := collector.NewNewsCollector(news, shortages, s.findings, reasoner, catalog, cfg.Sources.NewsLookback, log)

	writer := alerting.NewWriter(s.alerts, log)
	registry := tools.NewDefaultRegistry(s.alerts, log)
	rules := synthesis.NewRules(time.Duration(cfg.Pipeline.ShortageRecencyDays) * 24 * time.Hour)
	synth := synthesis.NewSynthesizer(reasoner, rules, registry.Specs(), log)
	phase := synthesis.NewPhase(synth, drugs, shortages, s.findings, writer, registry, cfg.Pipeline.ShortageLookback, log)

	s.inventory = inventory
	s.orchestrator = pipeline.NewOrchestrator(pipeline.Units{
		Collectors:  []collector.Collector{inventory, shortage, newsCollector},
		Quick:       inventory,
		Synthesis:   phase,
		Substitutes: downstream.NewSubstituteFinder(drugs, postgres.NewSubstituteRepository(pool), s.findings, reasoner, log),
		Orders:      downstream.NewOrderManager(drugs, postgres.NewSupplierRepository(pool), s.findings, writer, reasoner, log),
	}, s.findings, cfg.Pipeline.CollectorLimit, log)

	if cfg.Redis.Addr != "" {
		pubsub, err := infraredis.NewPubSubClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis no disponible: las corridas no se publicarán")
		} else {
			s.pubsub = pubsub
			s.orchestrator.AddObserver(infraredis.NewRunNotifier(pubsub, cfg.Redis.Channel, log))
		}
	}
	return s, nil
}
