//go:build integration

package resources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"agentforge/internal/config"
	"agentforge/internal/resources/migrations"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestManagerAgainstRealServices(t *testing.T) {
	pgAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "agentforge",
			"POSTGRES_PASSWORD": "agentforge",
			"POSTGRES_DB":       "agentforge",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379")

	cfg := &config.Config{
		AppConfig: config.AppConfig{Environment: config.EnvDevelopment},
		DatabaseConfig: config.DatabaseConfig{
			DatabaseURL:             fmt.Sprintf("postgresql+asyncpg://agentforge:agentforge@%s/agentforge?sslmode=disable", pgAddr),
			DatabasePoolSize:        4,
			DatabaseConnectTimeout:  10 * time.Second,
			DatabaseConnMaxLifetime: time.Minute,
		},
		RedisConfig: config.RedisConfig{
			RedisURL:      "redis://" + redisAddr,
			RedisPoolSize: 4,
			RedisTimeout:  5 * time.Second,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewManager(cfg, logger, WithRegisterer(prometheus.NewRegistry()))
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop(ctx) }()

	// schema creation is idempotent
	require.NoError(t, migrations.Up(ctx, cfg.DatabaseDSN(), logger))
	version, dirty, err := migrations.Status(ctx, cfg.DatabaseDSN(), logger)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	id := uuid.New()
	err = m.WithSession(ctx, func(ctx context.Context, s *Session) error {
		_, err := s.ExecContext(ctx,
			`INSERT INTO users (id, email, hashed_password) VALUES ($1, $2, $3)`,
			id, "writer@example.com", "x")
		return err
	})
	require.NoError(t, err)

	var email string
	err = m.WithSession(ctx, func(ctx context.Context, s *Session) error {
		return s.GetContext(ctx, &email, `SELECT email FROM users WHERE id = $1`, id)
	})
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", email)

	client, err := m.Cache()
	require.NoError(t, err)
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())

	assert.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Stop(ctx))
	assert.Equal(t, StateStopped, m.State())
}
