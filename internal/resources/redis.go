package resources

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"agentforge/internal/config"
)

// CacheOpener creates the cache client. It must not verify connectivity.
type CacheOpener func(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error)

// OpenRedis builds an instrumented client from REDIS_URL. REDIS_DB, when set
// (including to 0), and a non-empty REDIS_PASSWORD override what the URL carries.
func OpenRedis(_ context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.RedisDB != nil {
		opts.DB = *cfg.RedisDB
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	opts.PoolSize = cfg.RedisPoolSize
	opts.DialTimeout = cfg.RedisTimeout
	opts.ReadTimeout = cfg.RedisTimeout
	opts.WriteTimeout = cfg.RedisTimeout

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if cfg.EnableMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	return client, nil
}
