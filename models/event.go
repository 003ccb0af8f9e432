package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventStatusPending   = "pending"
	EventStatusPublished = "published"
	EventStatusFailed    = "failed"
)

// TransactionEvent is an outbox row written in the same transaction as the
// workflow it announces.
type TransactionEvent struct {
	EventID      string         `json:"event_id" gorm:"primaryKey;size:36"`
	EventType    string         `json:"event_type" gorm:"size:64;not null"`
	ResourceType string         `json:"resource_type" gorm:"size:32;not null"`
	ResourceID   string         `json:"resource_id" gorm:"size:64;not null;index"`
	Version      int            `json:"version" gorm:"not null;default:1"`
	Payload      datatypes.JSON `json:"payload" gorm:"not null"`
	Status       string         `json:"status" gorm:"size:16;not null;default:'pending';index:idx_transaction_events_status,priority:1"`
	Retries      int            `json:"retries" gorm:"not null;default:0"`
	OccurredAt   time.Time      `json:"occurred_at" gorm:"not null;index:idx_transaction_events_status,priority:2"`
	PublishedAt  *time.Time     `json:"published_at"`
	Error        *string        `json:"error"`
}
