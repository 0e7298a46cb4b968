package resources

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentforge/internal/config"
)

func TestOpenRedisDatabaseIndex(t *testing.T) {
	zero, five := 0, 5
	tests := []struct {
		name    string
		url     string
		redisDB *int
		want    int
	}{
		{"url index applies when unset", "redis://localhost:6379/3", nil, 3},
		{"explicit zero overrides url", "redis://localhost:6379/3", &zero, 0},
		{"explicit index overrides url", "redis://localhost:6379/3", &five, 5},
		{"default index", "redis://localhost:6379", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{RedisConfig: config.RedisConfig{
				RedisURL:      tt.url,
				RedisDB:       tt.redisDB,
				RedisPoolSize: 2,
				RedisTimeout:  time.Second,
			}}

			client, err := OpenRedis(context.Background(), cfg)
			require.NoError(t, err)
			defer client.Close()

			c, ok := client.(*redis.Client)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Options().DB)
			assert.Equal(t, 2, c.Options().PoolSize)
		})
	}
}
