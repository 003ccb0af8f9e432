package workers

import (
	"context"
	"log/slog"
	"time"
)

// Every runs fn immediately and then on each tick until ctx is done. Errors
// are logged by fn itself; the loop keeps going.
func Every(ctx context.Context, interval time.Duration, name string, logger *slog.Logger, fn func(context.Context) error) error {
	logger = resolveLogger(logger)
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger.Info("worker started",
		"event", "worker_started",
		"module", "workers",
		"layer", "worker",
		"worker", name,
		"interval", interval.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_ = fn(ctx)
		select {
		case <-ctx.Done():
			logger.Info("worker stopped",
				"event", "worker_stopped",
				"module", "workers",
				"layer", "worker",
				"worker", name,
			)
			return nil
		case <-ticker.C:
		}
	}
}
