package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/pharma-sentinel/internal/application/pipeline"
	"github.com/jhoicas/pharma-sentinel/internal/application/trigger"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/pdf"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/pharma-sentinel/internal/interfaces/http"
)

func newServeCmd(c *cli) *cobra.Command {
	var noLoop bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Servidor HTTP + corrida periódica + gate reactivo sobre la tabla de inventario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, !noLoop)
		},
	}
	cmd.Flags().BoolVar(&noLoop, "no-loop", false, "no ejecutar la corrida periódica (solo HTTP y gate)")
	return cmd
}

func (c *cli) serve(ctx context.Context, loop bool) error {
	cfg, log := c.cfg, c.log
	log.Info().Str("env", cfg.App.Env).Str("app", cfg.App.Name).Msg("iniciando servicio")

	svc, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	var gate *trigger.Gate
	if cfg.Trigger.Enabled {
		gate = trigger.NewGate(svc.orchestrator, trigger.Options{
			Table:       cfg.Trigger.Table,
			MinInterval: cfg.Trigger.MinInterval,
			SelfWrites:  cfg.Trigger.SelfWrites,
		}, log)
		svc.inventory.TrackSelfWrites(gate)
	}

	app := httpRouter.NewApp(cfg.App.Name, cfg.HTTP.SwaggerPath, cfg.HTTP.CORSOrigins)
	runs := httpRouter.Router(app, httpRouter.RouterDeps{
		BaseContext: ctx,
		Runner:      svc.orchestrator,
		NewRunToken: pipeline.NewRunToken,
		Alerts:      svc.alerts,
		Findings:    svc.findings,
		PDF:         pdf.NewAlertReportGenerator(),
		Gate:        gate,
		JWTSecret:   cfg.JWT.Secret,
		Service:     cfg.App.Name,
		Log:         log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	if loop {
		g.Go(func() error {
			svc.orchestrator.RunContinuously(gctx, cfg.Pipeline.Interval)
			return nil
		})
	}
	if gate != nil {
		feed := postgres.NewChangeFeed(svc.pool, cfg.Trigger.Channel, log)
		g.Go(func() error {
			return gate.Listen(gctx, feed.Subscribe(gctx))
		})
	}

	err = g.Wait()
	runs.Wait()
	if gate != nil {
		gate.Wait()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("servicio detenido")
	return nil
}
