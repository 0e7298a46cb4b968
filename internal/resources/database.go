package resources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	"github.com/pgx-contrib/pgxotel"

	"agentforge/internal/config"
)

// DatabaseOpener creates the relational pool. It must not verify connectivity;
// the manager does that itself.
type DatabaseOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error)

// OpenDatabase builds a pgx backed database/sql pool from DATABASE_URL.
// Queries are traced with OpenTelemetry and, when DATABASE_ECHO is set, also
// logged at debug level.
func OpenDatabase(_ context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	connConfig.ConnectTimeout = cfg.DatabaseConnectTimeout
	if connConfig.RuntimeParams == nil {
		connConfig.RuntimeParams = map[string]string{}
	}
	connConfig.RuntimeParams["application_name"] = config.ServiceName

	otelTracer := &pgxotel.QueryTracer{Name: config.ServiceName}
	if cfg.DatabaseEcho {
		connConfig.Tracer = multitracer.New(otelTracer, &tracelog.TraceLog{
			Logger:   echoLogger(logger),
			LogLevel: tracelog.LogLevelDebug,
		})
	} else {
		connConfig.Tracer = otelTracer
	}

	return sqlx.NewDb(stdlib.OpenDB(*connConfig), "pgx"), nil
}

func echoLogger(logger *slog.Logger) tracelog.Logger {
	logger = logger.With(slog.String("component", "database"))
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
	})
}

func (m *Manager) applyPoolSettings(db *sqlx.DB) {
	db.SetMaxOpenConns(m.cfg.DatabasePoolSize)
	db.SetMaxIdleConns(m.cfg.DatabasePoolSize)
	db.SetConnMaxLifetime(m.cfg.DatabaseConnMaxLifetime)
}

// verifyDatabase performs the trivial round-trip query used at start-up
func verifyDatabase(ctx context.Context, db *sqlx.DB) error {
	var one int
	if err := db.QueryRowxContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database connectivity check: %w", err)
	}
	return nil
}
