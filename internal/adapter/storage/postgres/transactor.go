package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nsimbi-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes raised when a row lock cannot be taken.
const (
	codeLockNotAvailable = "55P03"
	codeDeadlockDetected = "40P01"
)

// Transactor implements ports.DBTransactor. Every transaction it opens waits
// at most lockTimeout for a row lock before Postgres aborts the statement.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// NewTransactor creates a Transactor. A zero lockTimeout keeps the server
// default.
func NewTransactor(pool Pool, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// Begin starts a transaction and applies the lock timeout to it.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if t.lockTimeout <= 0 {
		return tx, nil
	}

	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("setting lock timeout: %w", err)
	}
	return tx, nil
}

// lockError wraps a failed FOR UPDATE read, marking lock contention with
// domain.ErrLockContention.
func lockError(op string, err error) error {
	if IsLockContention(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrLockContention, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsLockContention reports whether err came from a lock wait that timed out
// or from a detected deadlock.
func IsLockContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeLockNotAvailable || pgErr.Code == codeDeadlockDetected
}
