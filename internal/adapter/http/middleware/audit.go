package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource it touched.
const CtxAuditResourceID = "audit_resource_id"

// AuditLog creates an audit middleware that logs successful write operations.
// It maps the matched route pattern and method to an audit action.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		resourceID := c.GetString(CtxAuditResourceID)
		if resourceID == "" {
			resourceID = c.Param("id")
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	switch method + " " + route {
	case "POST /api/auth/register":
		return domain.AuditActionRegister, "user"
	case "POST /api/auth/login":
		return domain.AuditActionLogin, "session"
	case "POST /api/wallet/topup":
		return domain.AuditActionTopup, "ledger_entry"
	case "POST /api/wallet/transfer":
		return domain.AuditActionTransfer, "ledger_entry"
	case "POST /api/wallet/charge":
		return domain.AuditActionCharge, "ledger_entry"
	case "POST /api/inventory", "PUT /api/inventory/:id":
		return domain.AuditActionItemSave, "inventory_item"
	case "DELETE /api/inventory/:id":
		return domain.AuditActionItemDrop, "inventory_item"
	case "POST /api/admin/user/reset-pin":
		return domain.AuditActionResetPin, "user"
	case "POST /api/admin/user/sync-nfc":
		return domain.AuditActionSyncNFC, "user"
	case "POST /api/admin/users":
		return domain.AuditActionAddUser, "user"
	}
	return "", ""
}
