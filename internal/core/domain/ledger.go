package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the kind of money movement recorded in the ledger.
type EntryType string

const (
	EntryTypeTopup    EntryType = "topup"
	EntryTypeTransfer EntryType = "transfer"
	EntryTypePayment  EntryType = "payment"
)

// Valid returns true for a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryTypeTopup || t == EntryTypeTransfer || t == EntryTypePayment
}

var (
	ErrEntryAmount      = errors.New("ledger entry amount must be positive")
	ErrEntryType        = errors.New("unknown ledger entry type")
	ErrEntryRecipient   = errors.New("ledger entry requires a recipient")
	ErrEntrySender      = errors.New("ledger entry sender does not match its type")
	ErrEntrySelfPayment = errors.New("ledger entry sender and recipient must differ")
	ErrEntryDetails     = errors.New("only payment entries carry line details")
)

// LineDetail is one grouped line of an itemized payment.
type LineDetail struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// PaymentDetails is the structured payload of a payment entry. It is nil for
// every other entry type and for payments without items.
type PaymentDetails []LineDetail

// LedgerEntry is an immutable record of one completed money movement.
// FromUserID is nil only for top-ups.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	Type        EntryType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	FromUserID  *uuid.UUID      `json:"from_user_id"`
	ToUserID    uuid.UUID       `json:"to_user_id"`
	Description string          `json:"description"`
	Details     PaymentDetails  `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`

	// Populated by listing queries only.
	SenderName   *string `json:"sender_name,omitempty"`
	ReceiverName *string `json:"receiver_name,omitempty"`
}

// Validate checks the entry invariants before it is appended.
func (e *LedgerEntry) Validate() error {
	if !e.Type.Valid() {
		return ErrEntryType
	}
	if !e.Amount.IsPositive() {
		return ErrEntryAmount
	}
	if e.ToUserID == uuid.Nil {
		return ErrEntryRecipient
	}
	if e.Type == EntryTypeTopup {
		if e.FromUserID != nil {
			return ErrEntrySender
		}
	} else {
		if e.FromUserID == nil || *e.FromUserID == uuid.Nil {
			return ErrEntrySender
		}
		if *e.FromUserID == e.ToUserID {
			return ErrEntrySelfPayment
		}
	}
	if len(e.Details) > 0 && e.Type != EntryTypePayment {
		return ErrEntryDetails
	}
	return nil
}

// LedgerListParams selects one participant's history.
type LedgerListParams struct {
	UserID   uuid.UUID
	Type     *EntryType
	Page     int
	PageSize int
}

// LedgerTypeStats aggregates one entry type over a reporting window.
type LedgerTypeStats struct {
	Type   EntryType       `json:"type"`
	Count  int64           `json:"count"`
	Volume decimal.Decimal `json:"volume"`
}

// LedgerStats is the reporting summary over a window.
type LedgerStats struct {
	Since       time.Time         `json:"since"`
	TotalCount  int64             `json:"total_count"`
	TotalVolume decimal.Decimal   `json:"total_volume"`
	ByType      []LedgerTypeStats `json:"by_type"`
}
