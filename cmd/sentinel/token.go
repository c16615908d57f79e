package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/pharma-sentinel/pkg/jwt"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		role    string
		minutes int
	)
	cmd := &cobra.Command{
		Use:   "token <operador>",
		Short: "Emite un JWT para los endpoints protegidos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case jwt.RoleAdmin, jwt.RolePharmacist, jwt.RoleViewer:
			default:
				return fmt.Errorf("rol inválido %q (admin | pharmacist | viewer)", role)
			}
			if minutes <= 0 {
				minutes = c.cfg.JWT.Expiration
			}
			tok, err := jwt.Generate(c.cfg.JWT.Secret, args[0], role, c.cfg.JWT.Issuer, minutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RolePharmacist, "rol del operador")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "vigencia en minutos (por defecto JWT_EXPIRATION_MINUTES)")
	return cmd
}
