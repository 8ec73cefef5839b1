package ports

import (
	"context"
	"time"

	"nsimbi-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for directory users.
// Lookups return (nil, nil) when no row matches.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByCardID(ctx context.Context, cardID string) (*domain.User, error)
	GetByStudentIDNumber(ctx context.Context, studentIDNumber string) (*domain.User, error)
	UpdatePinHash(ctx context.Context, id uuid.UUID, pinHash string) error
	UpdateCardID(ctx context.Context, id uuid.UUID, cardID string) error
	List(ctx context.Context, params domain.UserListParams) ([]domain.User, int64, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// LedgerRepository is the append-only ledger log. There is no update or
// delete operation.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// Reporting queries
	List(ctx context.Context, params domain.LedgerListParams) ([]domain.LedgerEntry, int64, error)
	GetStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error)
}

// InventoryRepository defines persistence operations for merchant stock.
type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	Update(ctx context.Context, item *domain.InventoryItem) error
	Delete(ctx context.Context, id, merchantID uuid.UUID) (bool, error)
	GetOwned(ctx context.Context, id, merchantID uuid.UUID) (*domain.InventoryItem, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.InventoryItem, int64, error)
	// Locking reads and writes used inside a charge.
	GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, id, merchantID uuid.UUID) (*domain.InventoryItem, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
