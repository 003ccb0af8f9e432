package main

import (
	"errors"
	"fmt"
	"time"

	"virtualbank-gateway/config"
	"virtualbank-gateway/middlewares"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		session string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			if session == "" {
				session = uuid.NewString()
			}
			signed, err := middlewares.GenerateJWT([]byte(cfg.Auth.JWTSecret), subject, session, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "principal id (sub claim)")
	cmd.Flags().StringVar(&session, "session", "", "session id (sid claim); random when empty")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{
		"bank:transfers:write", "bank:transfers:read",
		"bank:credits:write", "bank:credits:read",
		"market:orders:write", "market:orders:read",
	}, "granted roles")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
