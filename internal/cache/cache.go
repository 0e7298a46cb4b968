// Package cache is a fault tolerant facade over the cache store. The cache is
// an optimization: every fault degrades to a miss or a false result and is
// logged, but never returned to the caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies when Set is called with a zero ttl
const DefaultTTL = time.Hour

// Provider hands out the cache client. resources.Manager satisfies it.
type Provider interface {
	Cache() (redis.UniversalClient, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func() (redis.UniversalClient, error)

// Cache implements Provider
func (f ProviderFunc) Cache() (redis.UniversalClient, error) { return f() }

// Cache wraps a Provider with fault tolerant operations
type Cache struct {
	provider Provider
	logger   *slog.Logger
}

// New creates a cache facade
func New(provider Provider, logger *slog.Logger) *Cache {
	return &Cache{
		provider: provider,
		logger:   logger.With(slog.String("component", "cache")),
	}
}

// Get returns the value stored under key. Faults read as a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	client, ok := c.client(ctx, "get", key)
	if !ok {
		return "", false
	}

	value, err := client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return "", false
	case err != nil:
		c.fault(ctx, "get", key, err)
		return "", false
	}

	CacheHits.Inc()
	return value, true
}

// Set stores value under key for ttl, DefaultTTL when ttl is zero. It reports
// whether the write succeeded.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	client, ok := c.client(ctx, "set", key)
	if !ok {
		return false
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.fault(ctx, "set", key, err)
		return false
	}
	return true
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	client, ok := c.client(ctx, "delete", key)
	if !ok {
		return false
	}

	if err := client.Del(ctx, key).Err(); err != nil {
		c.fault(ctx, "delete", key, err)
		return false
	}
	return true
}

// Exists reports whether key is present. Faults read as absent.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	client, ok := c.client(ctx, "exists", key)
	if !ok {
		return false
	}

	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		c.fault(ctx, "exists", key, err)
		return false
	}
	return n > 0
}

// GetJSON decodes the value under key into dst. A value that does not decode
// is treated as a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.fault(ctx, "get", key, err)
		return false
	}
	return true
}

// SetJSON encodes value and stores it under key
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		c.fault(ctx, "set", key, err)
		return false
	}
	return c.Set(ctx, key, string(raw), ttl)
}

func (c *Cache) client(ctx context.Context, op, key string) (redis.UniversalClient, bool) {
	client, err := c.provider.Cache()
	if err != nil {
		c.fault(ctx, op, key, err)
		return nil, false
	}
	return client, true
}

// fault records one error. The value is never logged.
func (c *Cache) fault(ctx context.Context, op, key string, err error) {
	CacheErrors.WithLabelValues(op).Inc()
	c.logger.ErrorContext(ctx, "Cache "+op+" error",
		slog.String("operation", op),
		slog.String("key", key),
		slog.String("error", err.Error()))
}
