package handler

import (
	"errors"
	"net/http"

	"nsimbi-wallet/internal/adapter/http/dto"
	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/metrics"
	"nsimbi-wallet/pkg/money"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// HeaderIdempotencyKey makes a transfer or charge safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"

	maxIdempotencyKeyLen = 128
)

// WalletHandler handles wallet operation endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	metrics   *metrics.Metrics // nil = metrics disabled
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, m *metrics.Metrics) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, metrics: m}
}

// TopUp handles POST /api/wallet/topup.
func (h *WalletHandler) TopUp(c *gin.Context) {
	requester, ok := middleware.Requester(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.walletSvc.TopUp(c.Request.Context(), ports.TopUpRequest{
		UserID: requester.UserID,
		Amount: req.Amount,
		Method: ports.PaymentMethod(req.PaymentMethod),
		Details: ports.MethodDetails{
			PhoneNumber:   req.PhoneNumber,
			Provider:      req.Provider,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			Pin:           req.Pin,
		},
	})
	h.observe("topup", req.Amount, result, err)
	h.respond(c, result, err)
}

// LookupStudent handles POST /api/wallet/lookup-student.
func (h *WalletHandler) LookupStudent(c *gin.Context) {
	var req dto.LookupStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	summary, err := h.walletSvc.LookupStudent(c.Request.Context(), req.StudentIDNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewStudentSummaryResponse(summary))
}

// Transfer handles POST /api/wallet/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	requester, ok := middleware.Requester(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	studentID, err := uuid.Parse(req.StudentID)
	if err != nil {
		response.Error(c, apperror.Validation("studentId must be a valid id"))
		return
	}

	result, err := h.walletSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		ParentID:       requester.UserID,
		StudentID:      studentID,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	h.observe("transfer", req.Amount, result, err)
	h.respond(c, result, err)
}

// Charge handles POST /api/wallet/charge.
func (h *WalletHandler) Charge(c *gin.Context) {
	requester, ok := middleware.Requester(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	items, err := chargeItems(req.Items)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.walletSvc.Charge(c.Request.Context(), ports.ChargeRequest{
		MerchantID:     requester.UserID,
		CardID:         req.NFCCardID,
		Amount:         req.Amount,
		Pin:            req.CardPin,
		Items:          items,
		IdempotencyKey: key,
	})
	h.observe("charge", req.Amount, result, err)
	h.respond(c, result, err)
}

// GetBalance handles GET /api/wallet/balance and GET /api/wallet/balance/:userId.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	requester, ok := middleware.Requester(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	target := requester.UserID
	if raw := c.Param("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("userId must be a valid id"))
			return
		}
		target = id
	}

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), requester, target)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		UserID:  target.String(),
		Balance: money.Format(balance),
	})
}

// respond writes a committed result. Fresh operations answer 201 and
// replays answer 200 with the stored result.
func (h *WalletHandler) respond(c *gin.Context, result *ports.WalletResult, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.EntryID.String())
	body := dto.WalletResultResponse{
		TransactionID: result.EntryID.String(),
		NewBalance:    money.Format(result.Balance),
		Replayed:      result.Replayed,
	}
	if result.Replayed {
		response.Replayed(c, body)
		return
	}
	response.Created(c, body)
}

func (h *WalletHandler) observe(op string, amount decimal.Decimal, result *ports.WalletResult, err error) {
	if h.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	var appErr *apperror.AppError
	switch {
	case err == nil && result.Replayed:
		outcome = metrics.OutcomeReplayed
	case err == nil:
	case errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError:
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	h.metrics.WalletOperation(op, outcome, amount)
}

func idempotencyKey(c *gin.Context) (string, error) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return "", apperror.Validation("Idempotency-Key must be at most 128 characters")
	}
	return key, nil
}

func chargeItems(in []dto.ChargeItemRequest) ([]domain.ChargeItem, error) {
	if len(in) == 0 {
		return nil, nil
	}
	items := make([]domain.ChargeItem, 0, len(in))
	for _, it := range in {
		item := domain.ChargeItem{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
		}
		if it.InventoryID != nil && *it.InventoryID != "" {
			id, err := uuid.Parse(*it.InventoryID)
			if err != nil {
				return nil, apperror.Validation("inventoryId must be a valid id")
			}
			item.InventoryID = &id
		}
		items = append(items, item)
	}
	return items, nil
}
