package domain

import (
	"errors"
	"time"

	"nsimbi-wallet/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLockContention is returned by storage when a row lock could not be
// taken in time.
var ErrLockContention = errors.New("row lock not acquired")

// Wallet is the single mutable balance owned by one user.
// Balance never drops below zero.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanDebit returns true if amount can leave the wallet without overdraft.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}

// CanCredit returns true if the balance stays storable after receiving amount.
func (w *Wallet) CanCredit(amount decimal.Decimal) bool {
	return money.Fits(w.Balance.Add(amount))
}
