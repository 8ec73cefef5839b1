package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionTopup    AuditAction = "TOPUP"
	AuditActionTransfer AuditAction = "TRANSFER"
	AuditActionCharge   AuditAction = "CHARGE"
	AuditActionRegister AuditAction = "REGISTER"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionResetPin AuditAction = "RESET_PIN"
	AuditActionSyncNFC  AuditAction = "SYNC_NFC"
	AuditActionAddUser  AuditAction = "CREATE_USER"
	AuditActionItemSave AuditAction = "INVENTORY_SAVE"
	AuditActionItemDrop AuditAction = "INVENTORY_DELETE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
