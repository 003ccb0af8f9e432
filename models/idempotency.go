package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey is the claim/response record for one client token.
// A nil ResponseStatus means the claim is still in flight.
type IdempotencyKey struct {
	Key            string `json:"key" gorm:"column:idempotency_key;primaryKey;size:255"`
	Checksum       string `json:"checksum" gorm:"size:64;not null"`
	ResponseStatus *int   `json:"response_status"`
	ResponseBody   []byte `json:"-"`
	ContentType    string `json:"content_type" gorm:"size:128"`
	// ResponseHeaders holds the few response headers replayed with the body.
	ResponseHeaders datatypes.JSON `json:"response_headers"`
	ExpiresAt       time.Time      `json:"expires_at" gorm:"not null;index:idx_idempotency_keys_expires_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Resolved reports whether a response has been stored for the key.
func (k IdempotencyKey) Resolved() bool {
	return k.ResponseStatus != nil
}
