package handler

import (
	"nsimbi-wallet/internal/adapter/http/dto"
	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InventoryHandler handles a merchant's own stock.
type InventoryHandler struct {
	inventorySvc ports.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventorySvc ports.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventorySvc: inventorySvc}
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(c *gin.Context) {
	merchantID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, pageSize := pagination(c)
	items, total, err := h.inventorySvc.List(c.Request.Context(), merchantID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.InventoryItemResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewInventoryItemResponse(&items[i]))
	}

	response.OK(c, dto.InventoryListResponse{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(c *gin.Context) {
	merchantID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	in, ok := bindInventory(c)
	if !ok {
		return
	}

	item, err := h.inventorySvc.Create(c.Request.Context(), merchantID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxAuditResourceID, item.ID.String())
	response.Created(c, dto.NewInventoryItemResponse(item))
}

// Update handles PUT /api/inventory/:id.
func (h *InventoryHandler) Update(c *gin.Context) {
	merchantID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	in, ok := bindInventory(c)
	if !ok {
		return
	}

	item, err := h.inventorySvc.Update(c.Request.Context(), merchantID, itemID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewInventoryItemResponse(item))
}

// Delete handles DELETE /api/inventory/:id.
func (h *InventoryHandler) Delete(c *gin.Context) {
	merchantID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	if err := h.inventorySvc.Delete(c.Request.Context(), merchantID, itemID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MessageResponse{Message: "Item deleted"})
}

func bindInventory(c *gin.Context) (ports.InventoryInput, bool) {
	var req dto.InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return ports.InventoryInput{}, false
	}
	dto.SanitizeStruct(&req)
	return ports.InventoryInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}, true
}

func itemIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Item"))
		return uuid.Nil, false
	}
	return id, true
}
