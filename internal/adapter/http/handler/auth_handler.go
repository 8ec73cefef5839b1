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

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authSvc ports.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc ports.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
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

	user, err := h.authSvc.Register(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxUserID, user.ID)
	response.Created(c, dto.NewUserResponse(user))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxUserID, result.User.ID)
	response.OK(c, dto.LoginResponse{
		Token:  result.Token,
		Expiry: result.ExpiresAt.Unix(),
		User:   dto.NewUserResponse(result.User),
	})
}

// registration converts a bound registration body for the auth service.
func registration(req dto.RegisterRequest) (ports.RegisterRequest, error) {
	in := ports.RegisterRequest{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Role:            domain.Role(req.Role),
		CardID:          req.NFCCardID,
		StudentIDNumber: req.StudentIDNumber,
		StudentClass:    req.StudentClass,
		CardPin:         req.CardPin,
	}
	if req.ParentID != nil {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			return in, apperror.Validation("parentId must be a valid id")
		}
		in.ParentID = &parentID
	}
	return in, nil
}
