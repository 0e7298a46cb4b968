package resources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Session is one unit of work on its own pooled connection. The transaction
// is ended by WithSession, so Commit and Rollback are not exposed.
type Session struct {
	tx *sqlx.Tx
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *Session) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return s.tx.NamedExecContext(ctx, query, arg)
}

func (s *Session) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	return s.tx.QueryxContext(ctx, query, args...)
}

func (s *Session) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return s.tx.QueryRowxContext(ctx, query, args...)
}

// GetContext scans a single row into dest
func (s *Session) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.tx.GetContext(ctx, dest, query, args...)
}

// SelectContext scans every row into dest
func (s *Session) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return s.tx.SelectContext(ctx, dest, query, args...)
}

// WithSession runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when it returns an error or panics; a panic is
// re-raised after the rollback. A commit that fails, including one refused
// because ctx was cancelled and the transaction already rolled back, is
// returned. The connection goes back to the pool on every exit path.
func (m *Manager) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) (err error) {
	db, err := m.acquire()
	if err != nil {
		return err
	}
	defer m.sessions.Done()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.ErrorContext(ctx, "Session rollback failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err = fn(ctx, &Session{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.ErrorContext(ctx, "Session rollback failed", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// acquire hands out the pool and registers an in-flight session. The state
// check and the registration happen under the same lock so Stop cannot miss it.
func (m *Manager) acquire() (*sqlx.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return nil, ErrNotInitialized
	}
	m.sessions.Add(1)
	return m.db, nil
}
