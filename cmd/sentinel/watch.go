package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	infraredis "github.com/jhoicas/pharma-sentinel/internal/infrastructure/redis"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Muestra las corridas publicadas en el canal de Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Redis.Addr == "" {
				return fmt.Errorf("REDIS_ADDR no configurado")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := infraredis.NewPubSubClient(ctx, c.cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			return client.Listen(ctx, c.cfg.Redis.Channel, func(payload string) {
				var msg infraredis.RunMessage
				if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Report == nil {
					fmt.Fprintln(out, payload)
					return
				}
				r := msg.Report
				fmt.Fprintf(out, "%s run_token=%s mode=%s status=%s alerts=%d errors=%d\n",
					msg.Event, r.RunToken, r.Mode, r.Status, r.AlertsWritten, len(r.Errors))
			})
		},
	}
}
