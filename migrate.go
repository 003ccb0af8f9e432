package main

import (
	"fmt"

	"virtualbank-gateway/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			store, err := database.Connect(cfg.Datastore, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := database.Migrate(store.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied",
				"event", "migrations_applied",
				"module", "database",
				"layer", "cli",
			)
			return nil
		},
	}
}
