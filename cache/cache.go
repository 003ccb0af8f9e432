// Package cache is the short-lived read tier in front of the datastore.
// Values are JSON encoded. A cache failure never fails a request: callers
// fall back to the store and the error is only logged.
package cache

import (
	"context"
	"time"
)

// Client is implemented by RedisCache and Disabled.
type Client interface {
	Enabled() bool
	DefaultTTL() time.Duration
	// Get decodes the entry for key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Loader produces the value to cache. found=false results are returned to the
// caller but never written to the cache.
type Loader[T any] func(ctx context.Context) (value T, found bool, err error)

// Remember returns the cached value for key or, on a miss, calls load and
// caches its result for ttl (the client default when ttl <= 0). Cache read
// and write errors degrade to calling the loader.
func Remember[T any](ctx context.Context, c Client, key string, ttl time.Duration, load Loader[T]) (T, bool, error) {
	var cached T
	if c.Enabled() {
		hit, err := c.Get(ctx, key, &cached)
		if err == nil && hit {
			return cached, true, nil
		}
	}

	value, found, err := load(ctx)
	if err != nil || !found {
		return value, found, err
	}
	if c.Enabled() {
		if ttl <= 0 {
			ttl = c.DefaultTTL()
		}
		_ = c.Set(ctx, key, value, ttl)
	}
	return value, true, nil
}

// StatusKey is the cache key of a workflow status view.
func StatusKey(kind, id string) string {
	return kind + ":status:" + id
}
