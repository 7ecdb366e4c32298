package main

import (
	"errors"
	"fmt"
	"time"

	"dedupe-service/internal/config"
	"dedupe-service/internal/pkg/jwt"

	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var keyPath string
	var operatorID string
	var name string
	var roles []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token from the service private key",
		Long:  "Intended for development. Issuer and audience come from JWT_ISSUER and JWT_AUDIENCE.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if operatorID == "" {
				return errors.New("--operator is required")
			}

			cfg := config.Load().JWT
			if keyPath != "" {
				cfg.PrivPath = keyPath
			}
			if ttl > 0 {
				cfg.TTL = ttl
			}

			gen, err := jwt.LoadGenerator(cfg)
			if err != nil {
				return err
			}
			token, _, err := gen.Generate(operatorID, name, roles)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "", "RSA private key PEM (defaults to JWT_PRIVATE_KEY_PATH)")
	cmd.Flags().StringVar(&operatorID, "operator", "", "Operator id placed in the token")
	cmd.Flags().StringVar(&name, "name", "", "Operator display name")
	cmd.Flags().StringSliceVar(&roles, "role", []string{jwt.RoleOperator}, "Roles to grant (operator, admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_TTL)")
	return cmd
}
