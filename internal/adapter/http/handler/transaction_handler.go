package handler

import (
	"math"
	"strconv"

	"nsimbi-wallet/internal/adapter/http/dto"
	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionHandler serves ledger history and statistics.
type TransactionHandler struct {
	reportingSvc ports.ReportingService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reportingSvc ports.ReportingService) *TransactionHandler {
	return &TransactionHandler{reportingSvc: reportingSvc}
}

// List handles GET /api/transactions. It returns the entries the caller sent
// or received, newest first.
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, pageSize := pagination(c)
	params := domain.LedgerListParams{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	}
	if t := c.Query("type"); t != "" {
		entryType := domain.EntryType(t)
		params.Type = &entryType
	}

	entries, total, err := h.reportingSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewLedgerEntryResponse(&entries[i]))
	}

	response.OK(c, dto.LedgerListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// Stats handles GET /api/admin/stats.
func (h *TransactionHandler) Stats(c *gin.Context) {
	stats, err := h.reportingSvc.GetStats(c.Request.Context(), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewStatsResponse(stats))
}

// pagination reads page and limit, clamping them to sane values.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
