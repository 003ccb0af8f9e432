package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/workers"

	"github.com/spf13/cobra"
)

func relayCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Republish pending and failed outbox events",
		Long: `Republish outbox rows whose inline publish failed or never completed.

Examples:
  virtualbank-gateway relay --once
  virtualbank-gateway relay`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			publisher := events.New(cfg.Events, logger)
			defer publisher.Close()
			if !publisher.Enabled() {
				return errors.New("events are disabled (EVENTS_ENABLED=false or EVENTS_BROKERS empty)")
			}

			store, err := database.Connect(cfg.Datastore, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			relay := workers.OutboxRelay{
				Store:      store,
				Publisher:  publisher,
				BatchSize:  cfg.Outbox.BatchSize,
				MaxRetries: cfg.Outbox.MaxRetries,
				Grace:      cfg.Outbox.Grace,
				Logger:     logger,
			}
			if once {
				res, err := relay.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published=%d failed=%d\n", res.Published, res.Failed)
				return nil
			}
			return workers.Every(ctx, cfg.Outbox.PollInterval, "outbox_relay", logger, func(ctx context.Context) error {
				_, err := relay.RunOnce(ctx)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single batch and exit")
	return cmd
}
