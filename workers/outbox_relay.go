// Package workers holds the background jobs run by the serve and relay
// commands.
package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"virtualbank-gateway/database"
	"virtualbank-gateway/events"
	"virtualbank-gateway/models"

	"gorm.io/gorm"
)

// OutboxRelay republishes outbox rows whose inline publish failed or never
// completed. Delivery is at-least-once: a row may be published again if
// marking it fails.
type OutboxRelay struct {
	Store      *database.Store
	Publisher  events.Publisher
	BatchSize  int
	MaxRetries int
	// Grace keeps the relay away from rows whose request is still publishing.
	Grace  time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// RelayResult counts what one pass did.
type RelayResult struct {
	Published int
	Failed    int
}

func (r OutboxRelay) RunOnce(ctx context.Context) (RelayResult, error) {
	logger := resolveLogger(r.Logger)
	var result RelayResult
	if r.Publisher == nil || !r.Publisher.Enabled() {
		return result, nil
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}
	now := r.now()

	var rows []models.TransactionEvent
	err := r.Store.Read(ctx, func(db *gorm.DB) error {
		var err error
		rows, err = database.ListRelayableEvents(db, now, r.Grace, maxRetries, limit)
		return err
	})
	if err != nil {
		logger.Error("outbox list failed",
			"event", "outbox_list_failed",
			"module", "workers",
			"layer", "worker",
			"error", err.Error(),
		)
		return result, err
	}

	for _, row := range rows {
		pubErr := r.Publisher.Publish(ctx, events.DomainEvent{
			Type:       row.EventType,
			Key:        row.ResourceID,
			Version:    row.Version,
			Payload:    json.RawMessage(row.Payload),
			OccurredAt: row.OccurredAt,
		})

		markErr := r.Store.WithTx(ctx, func(tx *gorm.DB) error {
			if pubErr != nil {
				return database.MarkEventFailed(tx, row.EventID, pubErr.Error())
			}
			return database.MarkEventPublished(tx, row.EventID, r.now())
		})

		if pubErr != nil {
			result.Failed++
			logger.Warn("outbox publish failed",
				"event", "outbox_publish_failed",
				"module", "workers",
				"layer", "worker",
				"event_id", row.EventID,
				"event_type", row.EventType,
				"retries", row.Retries+1,
				"error", pubErr.Error(),
			)
		} else {
			result.Published++
		}
		if markErr != nil {
			logger.Error("outbox mark failed",
				"event", "outbox_mark_failed",
				"module", "workers",
				"layer", "worker",
				"event_id", row.EventID,
				"error", markErr.Error(),
			)
			return result, markErr
		}
	}

	if len(rows) > 0 {
		logger.Info("outbox relay cycle completed",
			"event", "outbox_relay_completed",
			"module", "workers",
			"layer", "worker",
			"published_count", result.Published,
			"failed_count", result.Failed,
		)
	}
	return result, nil
}

func (r OutboxRelay) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
