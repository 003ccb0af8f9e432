// Package events publishes domain events to the broker. Every mutating
// workflow announces itself once through Publisher after its transaction
// has committed.
package events

import (
	"context"
	"time"
)

const (
	TypeTransferInitiated   = "transfers.initiated"
	TypeCreditReceived      = "credits.received"
	TypeMarketOrderAccepted = "market.orders.accepted"

	DefaultVersion = 1
)

const (
	headerEventType      = "x-domain-event-type"
	headerEventVersion   = "x-domain-event-version"
	headerEventTimestamp = "x-domain-event-timestamp"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// DomainEvent is a fact about a workflow. A zero OccurredAt is filled in
// with the publish time.
type DomainEvent struct {
	Type       string
	Key        string
	Version    int
	Payload    any
	OccurredAt time.Time
}

// Envelope is the serialized form of a DomainEvent.
type Envelope struct {
	Key        string `json:"key"`
	Type       string `json:"type"`
	Version    int    `json:"version"`
	OccurredAt string `json:"occurredAt"`
	Payload    any    `json:"payload"`
}

// Serialize builds the envelope, stamping now when the event has no time.
func Serialize(ev DomainEvent, now time.Time) Envelope {
	at := ev.OccurredAt
	if at.IsZero() {
		at = now
	}
	version := ev.Version
	if version <= 0 {
		version = DefaultVersion
	}
	return Envelope{
		Key:        ev.Key,
		Type:       ev.Type,
		Version:    version,
		OccurredAt: at.UTC().Format(timestampLayout),
		Payload:    ev.Payload,
	}
}

type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context, ev DomainEvent) error
	Close() error
}
