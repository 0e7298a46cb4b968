package resources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"agentforge/internal/config"
	"agentforge/internal/resources/migrations"
)

var (
	// ErrNotInitialized is returned when a resource is requested outside READY
	ErrNotInitialized = errors.New("resource not initialized")
	// ErrInvalidTransition is returned when Start is called more than once
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrInvalidTimeout is returned by Start when a connect timeout is not positive
	ErrInvalidTimeout = errors.New("connect timeouts must be positive")
)

// SchemaMigrator brings the schema up to date. It receives a DSN rather than
// the pool so it can own and close its connections.
type SchemaMigrator func(ctx context.Context, dsn string, logger *slog.Logger) error

// Manager owns the database pool and the cache client for the life of the process
type Manager struct {
	cfg        *config.Config
	logger     *slog.Logger
	openDB     DatabaseOpener
	openCache  CacheOpener
	migrate    SchemaMigrator
	registerer prometheus.Registerer

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	mu       sync.RWMutex
	state    State
	db       *sqlx.DB
	cache    redis.UniversalClient
	dbStats  prometheus.Collector
	sessions sync.WaitGroup
}

// Option configures a Manager
type Option func(*Manager)

// WithDatabaseOpener replaces OpenDatabase
func WithDatabaseOpener(open DatabaseOpener) Option {
	return func(m *Manager) { m.openDB = open }
}

// WithCacheOpener replaces OpenRedis
func WithCacheOpener(open CacheOpener) Option {
	return func(m *Manager) { m.openCache = open }
}

// WithSchemaMigrator replaces the embedded migrations. nil disables them.
func WithSchemaMigrator(migrate SchemaMigrator) Option {
	return func(m *Manager) { m.migrate = migrate }
}

// WithRegisterer sets where pool statistics are registered
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) { m.registerer = reg }
}

// NewManager creates a manager in the UNINITIALIZED state
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "resources")),
		openDB:     OpenDatabase,
		openCache:  OpenRedis,
		migrate:    migrations.Up,
		registerer: prometheus.DefaultRegisterer,
		state:      StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	m.logger.Debug("Resource state changed", "from", prev.String(), "to", s.String())
}

// Start opens and verifies both resources. Any failure leaves the manager
// FAILED with nothing left open, and the error is returned so the caller can
// refuse to serve traffic.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if st := m.State(); st != StateUninitialized {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st)
	}
	m.setState(StateStarting)

	started := time.Now()
	db, cache, err := m.open(ctx)
	if err != nil {
		m.setState(StateFailed)
		m.logger.ErrorContext(ctx, "Resource start-up failed", "error", err)
		return err
	}

	m.mu.Lock()
	m.db = db
	m.cache = cache
	m.mu.Unlock()

	m.registerPoolStats(db)
	m.setState(StateReady)

	m.logger.InfoContext(ctx, "Resources ready",
		"environment", m.cfg.Environment,
		"pool_size", m.cfg.DatabasePoolSize,
		"duration", time.Since(started).String())
	return nil
}

func (m *Manager) open(ctx context.Context) (*sqlx.DB, redis.UniversalClient, error) {
	if m.cfg.DatabaseConnectTimeout <= 0 || m.cfg.RedisTimeout <= 0 {
		return nil, nil, fmt.Errorf("%w: database connect timeout %s, redis timeout %s",
			ErrInvalidTimeout, m.cfg.DatabaseConnectTimeout, m.cfg.RedisTimeout)
	}

	db, err := m.openDB(ctx, m.cfg, m.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	m.applyPoolSettings(db)

	dbCtx, cancel := context.WithTimeout(ctx, m.cfg.DatabaseConnectTimeout)
	err = verifyDatabase(dbCtx, db)
	cancel()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cache, err := m.openCache(ctx, m.cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	cacheCtx, cancel := context.WithTimeout(ctx, m.cfg.RedisTimeout)
	err = cache.Ping(cacheCtx).Err()
	cancel()
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("cache connectivity check: %w", err)
	}

	if m.cfg.IsDevelopment() && m.migrate != nil {
		if err := m.migrate(ctx, m.cfg.DatabaseDSN(), m.logger); err != nil {
			_ = cache.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return db, cache, nil
}

func (m *Manager) registerPoolStats(db *sqlx.DB) {
	if m.registerer == nil {
		return
	}
	collector := collectors.NewDBStatsCollector(db.DB, config.MetricsNamespace)
	if err := m.registerer.Register(collector); err != nil {
		m.logger.Warn("Database pool metrics not registered", "error", err)
		return
	}
	m.dbStats = collector
}

// Cache returns the cache client while READY
func (m *Manager) Cache() (redis.UniversalClient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return nil, ErrNotInitialized
	}
	return m.cache, nil
}

// Ping checks both resources. It is used by the readiness probe.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	state, db, cache := m.state, m.db, m.cache
	m.mu.RUnlock()
	if state != StateReady {
		return ErrNotInitialized
	}

	var errs []error
	if err := db.PingContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if err := cache.Ping(ctx).Err(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	return errors.Join(errs...)
}

// Stop waits for in-flight sessions, bounded by ctx, then closes the pool and
// the cache client. It always ends in STOPPED when called from READY and is a
// no-op in every other state.
func (m *Manager) Stop(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.State() != StateReady {
		return nil
	}
	m.setState(StateStopping)

	var errs []error
	if err := m.waitForSessions(ctx); err != nil {
		m.logger.WarnContext(ctx, "Closing pool with sessions still in flight", "error", err)
		errs = append(errs, err)
	}

	if m.dbStats != nil {
		m.registerer.Unregister(m.dbStats)
		m.dbStats = nil
	}

	m.mu.Lock()
	db, cache := m.db, m.cache
	m.db, m.cache = nil, nil
	m.mu.Unlock()

	if err := cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	m.setState(StateStopped)

	err := errors.Join(errs...)
	if err != nil {
		m.logger.ErrorContext(ctx, "Resources stopped with errors", "error", err)
	} else {
		m.logger.InfoContext(ctx, "Resources stopped")
	}
	return err
}

func (m *Manager) waitForSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
}
