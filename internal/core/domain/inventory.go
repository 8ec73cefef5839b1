package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a merchant-owned stock record.
type InventoryItem struct {
	ID          uuid.UUID       `json:"id"`
	MerchantID  uuid.UUID       `json:"merchant_id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasStock returns true if qty units can be taken.
func (i *InventoryItem) HasStock(qty int) bool {
	return i.Stock >= qty
}

// ChargeItem is one raw line of a charge request.
type ChargeItem struct {
	InventoryID *uuid.UUID
	Name        string
	Price       decimal.Decimal
	Quantity    int
}

// Qty returns the requested quantity, defaulting to one.
func (c ChargeItem) Qty() int {
	if c.Quantity <= 0 {
		return 1
	}
	return c.Quantity
}
