package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx/v5" database/sql driver
)

// MigrationsTable records applied versions
const MigrationsTable = "schema_migrations_agentforge"

//go:embed *.sql
var migrationFiles embed.FS

// Up applies every pending up migration. Running it against an up-to-date
// schema changes nothing.
func Up(ctx context.Context, dsn string, logger *slog.Logger) error {
	m, err := newMigrate(ctx, dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, logger)

	_, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return errors.New("migration is dirty, please fix it before proceeding")
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Schema already up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Schema migrated", "version", version)
	return nil
}

// Status reports the applied version. A database that has never been migrated
// reports version 0.
func Status(ctx context.Context, dsn string, logger *slog.Logger) (version uint, dirty bool, err error) {
	m, err := newMigrate(ctx, dsn)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrate(m, logger)

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Latest returns the highest version shipped with the binary
func Latest() (uint, error) {
	src, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs driver: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			return version, nil
		}
		version = next
	}
}

func newMigrate(ctx context.Context, dsn string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs driver: %w", err)
	}

	sqlDB, err := sql.Open("pgx/v5", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	dbDriver, err := pgx.WithInstance(sqlDB, &pgx.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create pgx driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// closeMigrate releases the source and the dedicated connection pool
func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		logger.Warn("Closing migrator failed", "source_error", srcErr, "database_error", dbErr)
	}
}
