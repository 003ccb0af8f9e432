package events

import (
	"context"
	"log/slog"
)

// Disabled drops every event.
type Disabled struct {
	logger *slog.Logger
}

func NewDisabled(logger *slog.Logger) *Disabled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disabled{logger: logger}
}

func (d *Disabled) Enabled() bool { return false }

func (d *Disabled) Publish(_ context.Context, ev DomainEvent) error {
	d.logger.Debug("event bridge disabled, skipping publish",
		"module", "events",
		"event_type", ev.Type,
		"event_key", ev.Key,
	)
	return nil
}

func (d *Disabled) Close() error { return nil }
