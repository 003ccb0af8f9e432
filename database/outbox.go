package database

import (
	"time"

	"virtualbank-gateway/models"

	"gorm.io/gorm"
)

func InsertTransactionEvent(tx *gorm.DB, ev *models.TransactionEvent) error {
	if ev.Status == "" {
		ev.Status = models.EventStatusPending
	}
	if ev.Version == 0 {
		ev.Version = 1
	}
	return tx.Create(ev).Error
}

func MarkEventPublished(db *gorm.DB, eventID string, at time.Time) error {
	return db.Model(&models.TransactionEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"status":       models.EventStatusPublished,
			"published_at": at,
			"error":        nil,
		}).Error
}

// MarkEventFailed records a failed publish attempt and bumps the retry count.
func MarkEventFailed(db *gorm.DB, eventID string, cause string) error {
	return db.Model(&models.TransactionEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"status":  models.EventStatusFailed,
			"retries": gorm.Expr("retries + 1"),
			"error":   cause,
		}).Error
}

// ListRelayableEvents returns outbox rows the relay should (re)publish:
// pending rows older than grace (their inline publish never finished) and
// failed rows still under the retry budget, oldest first.
func ListRelayableEvents(db *gorm.DB, now time.Time, grace time.Duration, maxRetries, limit int) ([]models.TransactionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.TransactionEvent
	err := db.
		Where("(status = ? AND occurred_at <= ?) OR (status = ? AND retries < ?)",
			models.EventStatusPending, now.Add(-grace),
			models.EventStatusFailed, maxRetries).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
