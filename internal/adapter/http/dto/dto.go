package dto

import (
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/pkg/money"

	"github.com/shopspring/decimal"
)

// Amounts are accepted as a JSON number or a JSON string and are always
// rendered as a string with two fractional digits.

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Name            string  `json:"name" binding:"required,max=100"`
	Email           string  `json:"email" binding:"required,email,max=255"`
	Password        string  `json:"password" binding:"required,min=6,max=128" sanitize:"-"`
	Role            string  `json:"role" binding:"required,max=20"`
	NFCCardID       *string `json:"nfcCardId,omitempty" binding:"omitempty,safe_id,max=64"`
	StudentIDNumber *string `json:"studentIdNumber,omitempty" binding:"omitempty,safe_id,max=64"`
	ParentID        *string `json:"parentId,omitempty" binding:"omitempty,uuid"`
	StudentClass    *string `json:"studentClass,omitempty" binding:"omitempty,max=50"`
	CardPin         *string `json:"cardPin,omitempty" binding:"omitempty,numeric,min=4,max=6" sanitize:"-"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// UserResponse is the public view of a directory user.
type UserResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	NFCCardID       *string `json:"nfcCardId,omitempty"`
	StudentIDNumber *string `json:"studentIdNumber,omitempty"`
	StudentClass    *string `json:"studentClass,omitempty"`
	ParentID        *string `json:"parentId,omitempty"`
}

// UserListResponse wraps a paginated directory listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string       `json:"token"`
	Expiry int64        `json:"expiry"` // Unix timestamp
	User   UserResponse `json:"user"`
}

// TopUpRequest is the request body for a simulated deposit.
type TopUpRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required,money"`
	PaymentMethod string          `json:"paymentMethod" binding:"required"`
	PhoneNumber   string          `json:"phoneNumber,omitempty" binding:"max=20"`
	Provider      string          `json:"provider,omitempty" binding:"max=50"`
	BankName      string          `json:"bankName,omitempty" binding:"max=100"`
	AccountNumber string          `json:"accountNumber,omitempty" binding:"max=50"`
	Pin           string          `json:"pin,omitempty" binding:"max=12" sanitize:"-"`
}

// LookupStudentRequest is the request body for a student lookup.
type LookupStudentRequest struct {
	StudentIDNumber string `json:"studentIdNumber" binding:"required,safe_id,max=64"`
}

// StudentSummaryResponse is what a parent sees after a student lookup.
type StudentSummaryResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	StudentIDNumber string  `json:"studentIdNumber"`
	NFCCardID       *string `json:"nfcCardId"`
}

// TransferRequest is the request body for a parent to student transfer.
type TransferRequest struct {
	StudentID string          `json:"studentId" binding:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" binding:"required,money"`
}

// ChargeItemRequest is one line item of a charge.
type ChargeItemRequest struct {
	InventoryID *string         `json:"inventoryId,omitempty" binding:"omitempty,uuid"`
	Name        string          `json:"name" binding:"max=100"`
	Price       decimal.Decimal `json:"price" binding:"money_nonneg"`
	Quantity    int             `json:"quantity" binding:"gte=0,max=1000"`
}

// ChargeRequest is the request body for a merchant charge.
type ChargeRequest struct {
	NFCCardID string              `json:"studentNfcCardId" binding:"required,safe_id,max=64"`
	Amount    decimal.Decimal     `json:"amount" binding:"required,money"`
	CardPin   string              `json:"cardPin" sanitize:"-"`
	Items     []ChargeItemRequest `json:"items,omitempty" binding:"omitempty,max=100,dive"`
}

// WalletResultResponse is the response body of a committed wallet operation.
type WalletResultResponse struct {
	TransactionID string `json:"transactionId"`
	NewBalance    string `json:"newBalance"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	UserID  string `json:"userId"`
	Balance string `json:"balance"`
}

// LineDetailResponse is one grouped line of a payment.
type LineDetailResponse struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	TotalPrice string `json:"totalPrice"`
}

// LedgerEntryResponse is the response body for one ledger entry.
type LedgerEntryResponse struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Amount       string               `json:"amount"`
	FromUserID   *string              `json:"fromUserId"`
	ToUserID     string               `json:"toUserId"`
	SenderName   *string              `json:"senderName,omitempty"`
	ReceiverName *string              `json:"receiverName,omitempty"`
	Description  string               `json:"description"`
	Details      []LineDetailResponse `json:"details,omitempty"`
	CreatedAt    string               `json:"createdAt"`
}

// LedgerListResponse wraps a paginated ledger history.
type LedgerListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

// InventoryRequest is the request body for creating or updating an item.
// Omitted fields are left unchanged on update.
type InventoryRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price" binding:"omitempty,money_nonneg"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
}

// InventoryItemResponse is the response body for one inventory item.
type InventoryItemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Price       string  `json:"price"`
	Stock       int     `json:"stock"`
	UpdatedAt   string  `json:"updatedAt"`
}

// InventoryListResponse wraps a paginated inventory list.
type InventoryListResponse struct {
	Items      []InventoryItemResponse `json:"items"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"pageSize"`
	TotalPages int                     `json:"totalPages"`
}

// ResetPinRequest is the request body for an admin PIN reset.
type ResetPinRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
	NewPin string `json:"newPin" binding:"required,numeric,min=4,max=6" sanitize:"-"`
}

// SyncNFCRequest is the request body for binding a card to a user.
type SyncNFCRequest struct {
	UserID    string `json:"userId" binding:"required,uuid"`
	NFCCardID string `json:"nfcCardId" binding:"required,safe_id,max=64"`
}

// MessageResponse carries a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// TypeStatsResponse aggregates one entry type.
type TypeStatsResponse struct {
	Type   string `json:"type"`
	Count  int64  `json:"count"`
	Volume string `json:"volume"`
}

// StatsResponse is the response for ledger statistics.
type StatsResponse struct {
	Since       *string             `json:"since"`
	TotalCount  int64               `json:"totalCount"`
	TotalVolume string              `json:"totalVolume"`
	ByType      []TypeStatsResponse `json:"byType"`
}

// NewUserResponse converts a directory user.
func NewUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:              u.ID.String(),
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		NFCCardID:       u.CardID,
		StudentIDNumber: u.StudentIDNumber,
		StudentClass:    u.StudentClass,
	}
	if u.ParentID != nil {
		s := u.ParentID.String()
		resp.ParentID = &s
	}
	return resp
}

// NewStudentSummaryResponse converts a lookup result.
func NewStudentSummaryResponse(s *domain.StudentSummary) StudentSummaryResponse {
	return StudentSummaryResponse{
		ID:              s.ID.String(),
		Name:            s.Name,
		StudentIDNumber: s.StudentIDNumber,
		NFCCardID:       s.CardID,
	}
}

// NewLedgerEntryResponse converts a ledger entry.
func NewLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:           e.ID.String(),
		Type:         string(e.Type),
		Amount:       money.Format(e.Amount),
		ToUserID:     e.ToUserID.String(),
		SenderName:   e.SenderName,
		ReceiverName: e.ReceiverName,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.FromUserID != nil {
		s := e.FromUserID.String()
		resp.FromUserID = &s
	}
	for _, d := range e.Details {
		resp.Details = append(resp.Details, LineDetailResponse{
			Name:       d.Name,
			Quantity:   d.Quantity,
			UnitPrice:  money.Format(d.UnitPrice),
			TotalPrice: money.Format(d.TotalPrice),
		})
	}
	return resp
}

// NewInventoryItemResponse converts an inventory item.
func NewInventoryItemResponse(i *domain.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		ID:          i.ID.String(),
		Name:        i.Name,
		Description: i.Description,
		Price:       money.Format(i.Price),
		Stock:       i.Stock,
		UpdatedAt:   i.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewStatsResponse converts ledger statistics. A zero Since means all time.
func NewStatsResponse(s *domain.LedgerStats) StatsResponse {
	resp := StatsResponse{
		TotalCount:  s.TotalCount,
		TotalVolume: money.Format(s.TotalVolume),
		ByType:      make([]TypeStatsResponse, 0, len(s.ByType)),
	}
	if !s.Since.IsZero() {
		since := s.Since.UTC().Format(time.RFC3339)
		resp.Since = &since
	}
	for _, t := range s.ByType {
		resp.ByType = append(resp.ByType, TypeStatsResponse{
			Type:   string(t.Type),
			Count:  t.Count,
			Volume: money.Format(t.Volume),
		})
	}
	return resp
}
