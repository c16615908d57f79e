package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema y el trigger del change feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := postgres.NewPool(cmd.Context(), c.cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := postgres.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			c.log.Info().Strs("scripts", applied).Msg("migraciones aplicadas")
			return nil
		},
	}
}
