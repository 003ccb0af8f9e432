package workers

import (
	"context"
	"log/slog"
	"time"

	"virtualbank-gateway/database"

	"gorm.io/gorm"
)

// IdempotencyJanitor deletes expired idempotency records in batches.
type IdempotencyJanitor struct {
	Store     *database.Store
	BatchSize int
	Now       func() time.Time
	Logger    *slog.Logger
}

func (j IdempotencyJanitor) RunOnce(ctx context.Context) (int64, error) {
	logger := resolveLogger(j.Logger)
	limit := j.BatchSize
	if limit <= 0 {
		limit = 500
	}
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}

	var deleted int64
	err := j.Store.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = database.DeleteExpiredIdempotencyKeys(tx, now, limit)
		return err
	})
	if err != nil {
		logger.Error("idempotency cleanup failed",
			"event", "idempotency_cleanup_failed",
			"module", "workers",
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if deleted > 0 {
		logger.Info("expired idempotency records deleted",
			"event", "idempotency_cleanup_completed",
			"module", "workers",
			"layer", "worker",
			"deleted_count", deleted,
		)
	}
	return deleted, nil
}
