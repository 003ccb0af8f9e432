package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"virtualbank-gateway/cache"
	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/idempotency"
	"virtualbank-gateway/routes"
	"virtualbank-gateway/services"
	"virtualbank-gateway/workers"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var skipMigrate, noWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway with the outbox relay and idempotency janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipMigrate, noWorkers)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on startup")
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve HTTP only; run the relay elsewhere")
	return cmd
}

func runServe(parent context.Context, skipMigrate, noWorkers bool) error {
	started := time.Now()
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(cfg.Datastore, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if !skipMigrate {
		if err := database.Migrate(store.DB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	statusCache, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	if closer, ok := statusCache.(io.Closer); ok {
		defer closer.Close()
	}

	publisher := events.New(cfg.Events, logger)
	defer publisher.Close()

	orch := services.NewOrchestrator(store, statusCache, publisher, logger)
	app := routes.NewApp(cfg, routes.Deps{
		Store:       store,
		Cache:       statusCache,
		Coordinator: idempotency.NewCoordinator(store, cfg.Idempotency.TTL, logger),
		Transfers:   &services.TransferService{Orchestrator: orch},
		Credits:     &services.CreditService{Orchestrator: orch},
		Orders:      &services.OrderService{Orchestrator: orch},
		Status:      services.NewStatusReader(store, statusCache, logger),
		Logger:      logger,
		StartedAt:   started,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening",
			"event", "http_listen",
			"module", "http",
			"layer", "transport",
			"addr", cfg.Addr(),
		)
		if err := app.Listen(cfg.Addr()); err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down",
			"event", "http_shutdown",
			"module", "http",
			"layer", "transport",
		)
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if !noWorkers {
		relay := workers.OutboxRelay{
			Store:      store,
			Publisher:  publisher,
			BatchSize:  cfg.Outbox.BatchSize,
			MaxRetries: cfg.Outbox.MaxRetries,
			Grace:      cfg.Outbox.Grace,
			Logger:     logger,
		}
		janitor := workers.IdempotencyJanitor{
			Store:     store,
			BatchSize: cfg.Idempotency.JanitorBatch,
			Logger:    logger,
		}
		g.Go(func() error {
			return workers.Every(gctx, cfg.Outbox.PollInterval, "outbox_relay", logger, func(ctx context.Context) error {
				_, err := relay.RunOnce(ctx)
				return err
			})
		})
		g.Go(func() error {
			return workers.Every(gctx, cfg.Idempotency.JanitorInterval, "idempotency_janitor", logger, func(ctx context.Context) error {
				_, err := janitor.RunOnce(ctx)
				return err
			})
		})
	}

	return g.Wait()
}
