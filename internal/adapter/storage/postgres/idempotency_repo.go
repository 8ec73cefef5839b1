package postgres

import (
	"context"
	"errors"
	"fmt"

	"nsimbi-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. Rows are the
// durable copy of every replayable transfer and charge result.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create records the result inside the operation's transaction. When a
// concurrent transaction holds the same key the insert waits for it, and a
// committed winner yields domain.ErrIdempotencyKeyExists.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	query := `INSERT INTO idempotency_logs (key, request_hash, entry_id, response_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING`

	tag, err := tx.Exec(ctx, query, log.Key, log.RequestHash, log.EntryID, log.ResponseJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIdempotencyKeyExists
	}
	return nil
}

// Get returns the stored result for key, or nil when none was recorded.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	query := `SELECT key, request_hash, entry_id, response_json, created_at FROM idempotency_logs WHERE key = $1`

	var log domain.IdempotencyLog
	err := r.pool.QueryRow(ctx, query, key).Scan(&log.Key, &log.RequestHash, &log.EntryID, &log.ResponseJSON, &log.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return &log, nil
}
