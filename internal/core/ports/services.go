package ports

import (
	"context"
	"time"

	"nsimbi-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password and card PIN hashing (bcrypt).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// Requester is the authenticated caller of an operation.
type Requester struct {
	UserID uuid.UUID
	Role   domain.Role
}

// WalletService is the wallet operation engine. Every mutating method runs
// as one database transaction.
type WalletService interface {
	TopUp(ctx context.Context, req TopUpRequest) (*WalletResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*WalletResult, error)
	Charge(ctx context.Context, req ChargeRequest) (*WalletResult, error)
	GetBalance(ctx context.Context, requester Requester, targetUserID uuid.UUID) (decimal.Decimal, error)
	LookupStudent(ctx context.Context, studentIDNumber string) (*domain.StudentSummary, error)
}

// PaymentMethod is the simulated funding source of a top-up.
type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// MethodDetails carries the instrument fields of a top-up. Only the fields
// of the chosen method are read.
type MethodDetails struct {
	PhoneNumber   string
	Provider      string
	BankName      string
	AccountNumber string
	Pin           string
}

// TopUpRequest holds input for a simulated external deposit.
type TopUpRequest struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Method  PaymentMethod
	Details MethodDetails
}

// TransferRequest holds input for a parent to student transfer.
type TransferRequest struct {
	ParentID       uuid.UUID
	StudentID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// ChargeRequest holds input for a merchant charging a student card.
type ChargeRequest struct {
	MerchantID     uuid.UUID
	CardID         string
	Amount         decimal.Decimal
	Pin            string
	Items          []domain.ChargeItem
	IdempotencyKey string
}

// WalletResult is the outcome of a committed wallet operation. Balance is
// the caller's balance for top-up and transfer and the student's for charge.
type WalletResult struct {
	EntryID  uuid.UUID       `json:"entry_id"`
	Balance  decimal.Decimal `json:"balance"`
	Replayed bool            `json:"-"`
}

// Directory resolves users for the wallet engine and verifies card PINs.
// Lookups return (nil, nil) when nothing matches.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByStudentIDNumber(ctx context.Context, studentIDNumber string) (*domain.User, error)
	FindByCardID(ctx context.Context, cardID string) (*domain.User, error)
	VerifyPin(ctx context.Context, userID uuid.UUID, candidate string) (bool, error)
}

// UserAdminService holds the admin directory operations.
type UserAdminService interface {
	ResetPin(ctx context.Context, userID uuid.UUID, newPin string) error
	SyncCard(ctx context.Context, userID uuid.UUID, cardID string) error
	ListUsers(ctx context.Context, params domain.UserListParams) ([]domain.User, int64, error)
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	EnsureSuperAdmin(ctx context.Context, name, email, password string) (bool, error)
	// CreateUser provisions an account on behalf of a directory manager.
	CreateUser(ctx context.Context, creator domain.Role, req RegisterRequest) (*domain.User, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Name            string
	Email           string
	Password        string
	Role            domain.Role
	CardID          *string
	StudentIDNumber *string
	ParentID        *uuid.UUID
	StudentClass    *string
	CardPin         *string
}

// LoginResult is a signed token plus the user it was issued to.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// InventoryService defines merchant inventory management.
type InventoryService interface {
	List(ctx context.Context, merchantID uuid.UUID, page, pageSize int) ([]domain.InventoryItem, int64, error)
	Create(ctx context.Context, merchantID uuid.UUID, in InventoryInput) (*domain.InventoryItem, error)
	Update(ctx context.Context, merchantID, itemID uuid.UUID, in InventoryInput) (*domain.InventoryItem, error)
	Delete(ctx context.Context, merchantID, itemID uuid.UUID) error
}

// InventoryInput carries item fields. Nil fields are left unchanged on update.
type InventoryInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}

// ReportingService defines ledger history and stats.
type ReportingService interface {
	ListEntries(ctx context.Context, params domain.LedgerListParams) ([]domain.LedgerEntry, int64, error)
	GetStats(ctx context.Context, period string) (*domain.LedgerStats, error)
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
