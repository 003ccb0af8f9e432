package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"virtualbank-gateway/config"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
	logger     *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, defaultTTL time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, defaultTTL: defaultTTL, logger: logger}
}

// New builds the cache tier from configuration. When caching is disabled it
// returns a Disabled client; otherwise it connects and pings Redis, failing
// startup if the ping fails.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Warn("cache disabled via configuration",
			"event", "cache_disabled",
			"module", "cache",
			"layer", "platform",
		)
		return NewDisabled(cfg.DefaultTTL, logger), nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to cache tier",
		"event", "cache_connected",
		"module", "cache",
		"layer", "platform",
		"addr", opts.Addr,
	)
	return NewRedisCache(client, cfg.DefaultTTL, logger), nil
}

func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse CACHE_URL: %w", err)
		}
		return opts, nil
	}
	opts := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	return opts, nil
}

func (c *RedisCache) Enabled() bool { return true }

func (c *RedisCache) DefaultTTL() time.Duration { return c.defaultTTL }

// Get treats an entry that cannot be decoded as a miss and evicts it.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("cache read failed",
			"event", "cache_get_failed",
			"module", "cache",
			"layer", "platform",
			"key", key,
			"error", err.Error(),
		)
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("failed to decode cache value, evicting",
			"event", "cache_decode_failed",
			"module", "cache",
			"layer", "platform",
			"key", key,
			"error", err.Error(),
		)
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// Set writes value with ttl. A ttl <= 0 stores the entry without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn("cache write failed",
			"event", "cache_set_failed",
			"module", "cache",
			"layer", "platform",
			"key", key,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Ping is used by the readiness probe.
func (c *RedisCache) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
