package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/pharma-sentinel/pkg/config"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// cli estado compartido por los subcomandos, cargado en PersistentPreRunE.
type cli struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Vigilancia de inventario y desabastecimiento de medicamentos",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("cargar configuración: %w", err)
			}
			c.cfg = cfg
			c.log = logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
			return nil
		},
	}
	root.AddCommand(
		newServeCmd(c),
		newRunCmd(c),
		newQuickCmd(c),
		newMigrateCmd(c),
		newTokenCmd(c),
		newWatchCmd(c),
	)
	return root
}
