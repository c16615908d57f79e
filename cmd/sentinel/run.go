package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Corrida completa; con --once termina con error si la corrida no fue exitosa",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := wire(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !once {
				if interval <= 0 {
					interval = c.cfg.Pipeline.Interval
				}
				svc.orchestrator.RunContinuously(ctx, interval)
				return nil
			}
			return reportOutcome(cmd, svc.orchestrator.ExecuteFullRun(ctx))
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "ejecutar una sola corrida y salir")
	cmd.Flags().DurationVar(&interval, "interval", 0, "intervalo entre corridas (por defecto PIPELINE_INTERVAL)")
	return cmd
}

func newQuickCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "quick",
		Short: "Corrida rápida: inventario almacenado + síntesis, sin fuentes externas ni downstream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := wire(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer svc.Close()
			return reportOutcome(cmd, svc.orchestrator.ExecuteQuickRun(ctx))
		},
	}
}

// reportOutcome imprime el resumen y devuelve error si la corrida falló o terminó con errores.
func reportOutcome(cmd *cobra.Command, report *entity.RunReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run_token=%s mode=%s status=%s duration=%s alerts=%d\n",
		report.RunToken, report.Mode, report.Status, report.Duration().Round(time.Millisecond), report.AlertsWritten)
	for _, e := range report.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	if report.Status != entity.RunStatusSuccess {
		return fmt.Errorf("corrida %s: %s", report.RunToken, report.Status)
	}
	return nil
}
