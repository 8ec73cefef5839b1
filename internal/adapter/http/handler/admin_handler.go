package handler

import (
	"nsimbi-wallet/internal/adapter/http/dto"
	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler handles admin directory operations.
type AdminHandler struct {
	userAdmin ports.UserAdminService
	authSvc   ports.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userAdmin ports.UserAdminService, authSvc ports.AuthService) *AdminHandler {
	return &AdminHandler{userAdmin: userAdmin, authSvc: authSvc}
}

// ListUsers handles GET /api/admin/users. search filters on name, email or
// student id number.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := pagination(c)
	users, total, err := h.userAdmin.ListUsers(c.Request.Context(), domain.UserListParams{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}

	response.OK(c, dto.UserListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	creator, ok := middleware.Role(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)
	in, err := registration(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.authSvc.CreateUser(c.Request.Context(), creator, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, user.ID.String())
	response.Created(c, dto.NewUserResponse(user))
}

// ResetPin handles POST /api/admin/user/reset-pin.
func (h *AdminHandler) ResetPin(c *gin.Context) {
	var req dto.ResetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("userId must be a valid id"))
		return
	}

	if err := h.userAdmin.ResetPin(c.Request.Context(), userID, req.NewPin); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, userID.String())
	response.OK(c, dto.MessageResponse{Message: "PIN reset successfully"})
}

// SyncNFC handles POST /api/admin/user/sync-nfc.
func (h *AdminHandler) SyncNFC(c *gin.Context) {
	var req dto.SyncNFCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("userId must be a valid id"))
		return
	}

	if err := h.userAdmin.SyncCard(c.Request.Context(), userID, req.NFCCardID); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, userID.String())
	response.OK(c, dto.MessageResponse{Message: "NFC card synced successfully"})
}
