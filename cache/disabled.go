package cache

import (
	"context"
	"log/slog"
	"time"
)

// Disabled always misses, so Remember always calls the loader.
type Disabled struct {
	defaultTTL time.Duration
	logger     *slog.Logger
}

func NewDisabled(defaultTTL time.Duration, logger *slog.Logger) *Disabled {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disabled{defaultTTL: defaultTTL, logger: logger}
}

func (d *Disabled) Enabled() bool { return false }

func (d *Disabled) DefaultTTL() time.Duration { return d.defaultTTL }

func (d *Disabled) Get(context.Context, string, any) (bool, error) { return false, nil }

func (d *Disabled) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	d.logger.Debug("cache disabled, skipping set", "module", "cache", "key", key)
	return nil
}

func (d *Disabled) Delete(_ context.Context, key string) error {
	d.logger.Debug("cache disabled, skipping delete", "module", "cache", "key", key)
	return nil
}
