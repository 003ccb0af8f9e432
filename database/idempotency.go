package database

import (
	"errors"
	"time"

	"virtualbank-gateway/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockIdempotencyKey reads the record for key with SELECT ... FOR UPDATE.
// Must be called inside a transaction for the lock to mean anything.
func LockIdempotencyKey(tx *gorm.DB, key string) (models.IdempotencyKey, bool, error) {
	var rec models.IdempotencyKey
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("idempotency_key = ?", key).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.IdempotencyKey{}, false, nil
	}
	if err != nil {
		return models.IdempotencyKey{}, false, err
	}
	return rec, true, nil
}

// InsertIdempotencyKey creates an unresolved claim. It reports false when a
// concurrent transaction inserted the same key first.
func InsertIdempotencyKey(tx *gorm.DB, rec models.IdempotencyKey) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func DeleteIdempotencyKey(tx *gorm.DB, key string) error {
	return tx.Where("idempotency_key = ?", key).Delete(&models.IdempotencyKey{}).Error
}

// ResolveIdempotencyKey stores the final response on the unresolved claim
// made with checksum. A claim that expired and was taken over is left alone.
func ResolveIdempotencyKey(tx *gorm.DB, key, checksum string, status int, body []byte, contentType string, headers datatypes.JSON, expiresAt time.Time) (bool, error) {
	res := tx.Model(&models.IdempotencyKey{}).
		Where("idempotency_key = ? AND checksum = ? AND response_status IS NULL", key, checksum).
		Updates(map[string]any{
			"response_status":  status,
			"response_body":    body,
			"content_type":     contentType,
			"response_headers": headers,
			"expires_at":       expiresAt,
			"updated_at":       time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// ReleaseIdempotencyKey removes an unresolved claim so the token can be used
// again. Resolved records and records with another checksum are left alone.
func ReleaseIdempotencyKey(tx *gorm.DB, key, checksum string) (bool, error) {
	res := tx.Where("idempotency_key = ? AND checksum = ? AND response_status IS NULL", key, checksum).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected == 1, res.Error
}

// DeleteExpiredIdempotencyKeys removes up to limit records whose expiry has passed.
func DeleteExpiredIdempotencyKeys(db *gorm.DB, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	expired := db.Model(&models.IdempotencyKey{}).
		Select("idempotency_key").
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit)
	res := db.Where("idempotency_key IN (?)", expired).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
