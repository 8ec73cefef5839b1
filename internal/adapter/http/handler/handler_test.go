package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nsimbi-wallet/internal/adapter/http/middleware"
	"nsimbi-wallet/internal/core/domain"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/internal/core/ports/mocks"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func authenticate(c *gin.Context, id uuid.UUID, role domain.Role) {
	c.Set(middleware.CtxUserID, id)
	c.Set(middleware.CtxRole, role)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	data, ok := decodeResponse(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// walletOps reads nsimbi_wallet_operations_total for one label pair.
func walletOps(t *testing.T, m *metrics.Metrics, op, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "nsimbi_wallet_operations_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["operation"] == op && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	parentID := uuid.New()
	userID := uuid.New()
	card := "CARD-1"
	sid := "STU-001"

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.RegisterRequest) (*domain.User, error) {
			assert.Equal(t, "Sam", req.Name)
			assert.Equal(t, domain.RoleStudent, req.Role)
			require.NotNil(t, req.ParentID)
			assert.Equal(t, parentID, *req.ParentID)
			require.NotNil(t, req.CardPin)
			assert.Equal(t, "1234", *req.CardPin)
			return &domain.User{ID: userID, Name: "Sam", Email: "sam@school.ug", Role: domain.RoleStudent, CardID: &card, StudentIDNumber: &sid, ParentID: req.ParentID}, nil
		})

	c, w := newContext(http.MethodPost, "/api/auth/register", `{
		"name":" Sam ","email":"sam@school.ug","password":"secret1","role":"student",
		"nfcCardId":"CARD-1","studentIdNumber":"STU-001","parentId":"`+parentID.String()+`","cardPin":"1234"}`)
	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["id"])
	assert.Equal(t, "student", data["role"])
	assert.Equal(t, "CARD-1", data["nfcCardId"])
	assert.Equal(t, parentID.String(), data["parentId"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/auth/register", "{}")
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", decodeResponse(t, w)["error_code"])
}

func TestRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrEmailExists())

	c, w := newContext(http.MethodPost, "/", `{"name":"Ann","email":"ann@x.ug","password":"secret1","role":"parent"}`)
	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AUTH_002", decodeResponse(t, w)["error_code"])
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	expiry := time.Now().Add(24 * time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "ann@x.ug", "secret1").Return(&ports.LoginResult{
		Token:     "jwt-token",
		ExpiresAt: expiry,
		User:      &domain.User{ID: userID, Name: "Ann", Email: "ann@x.ug", Role: domain.RoleParent},
	}, nil)

	c, w := newContext(http.MethodPost, "/api/auth/login", `{"email":"ann@x.ug","password":"secret1"}`)
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "parent", user["role"])

	id, ok := middleware.UserID(c)
	require.True(t, ok)
	assert.Equal(t, userID, id)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidCredentials())

	c, w := newContext(http.MethodPost, "/api/auth/login", `{"email":"ann@x.ug","password":"wrong"}`)
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decodeResponse(t, w)["error_code"])
}

// --- Wallet Handler Tests ---

func TestTopUp_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	m := metrics.New()
	h := NewWalletHandler(mockWallet, m)

	parentID := uuid.New()
	entryID := uuid.New()
	mockWallet.EXPECT().TopUp(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TopUpRequest) (*ports.WalletResult, error) {
			assert.Equal(t, parentID, req.UserID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(500)))
			assert.Equal(t, ports.PaymentMethodMobileMoney, req.Method)
			assert.Equal(t, "MTN", req.Details.Provider)
			assert.Equal(t, "0772000000", req.Details.PhoneNumber)
			return &ports.WalletResult{EntryID: entryID, Balance: decimal.NewFromInt(500)}, nil
		})

	c, w := newContext(http.MethodPost, "/api/wallet/topup",
		`{"amount":500,"paymentMethod":"mobile_money","provider":"MTN","phoneNumber":"0772000000","pin":"0000"}`)
	authenticate(c, parentID, domain.RoleParent)
	h.TopUp(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "500.00", data["newBalance"])
	assert.Equal(t, entryID.String(), data["transactionId"])
	assert.Equal(t, entryID.String(), c.GetString(middleware.CtxAuditResourceID))
	assert.Equal(t, 1.0, walletOps(t, m, "topup", metrics.OutcomeSuccess))
}

func TestTopUp_InvalidAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), nil)

	for _, body := range []string{
		`{"amount":0,"paymentMethod":"mobile_money"}`,
		`{"amount":"-10","paymentMethod":"mobile_money"}`,
		`{"paymentMethod":"mobile_money"}`,
	} {
		c, w := newContext(http.MethodPost, "/api/wallet/topup", body)
		authenticate(c, uuid.New(), domain.RoleParent)
		h.TopUp(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "Amount must be greater than 0", decodeResponse(t, w)["message"], body)
	}
}

func TestTopUp_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), nil)

	c, w := newContext(http.MethodPost, "/api/wallet/topup", `{"amount":10}`)
	h.TopUp(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransfer_PassesIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	parentID, studentID := uuid.New(), uuid.New()
	mockWallet.EXPECT().Transfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TransferRequest) (*ports.WalletResult, error) {
			assert.Equal(t, parentID, req.ParentID)
			assert.Equal(t, studentID, req.StudentID)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("200.5")))
			assert.Equal(t, "key-1", req.IdempotencyKey)
			return &ports.WalletResult{EntryID: uuid.New(), Balance: decimal.RequireFromString("299.5")}, nil
		})

	c, w := newContext(http.MethodPost, "/api/wallet/transfer", `{"studentId":"`+studentID.String()+`","amount":"200.50"}`)
	c.Request.Header.Set(HeaderIdempotencyKey, "key-1")
	authenticate(c, parentID, domain.RoleParent)
	h.Transfer(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "299.50", decodeData(t, w)["newBalance"])
}

func TestTransfer_ReplayAnswers200(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	entryID := uuid.New()
	mockWallet.EXPECT().Transfer(gomock.Any(), gomock.Any()).
		Return(&ports.WalletResult{EntryID: entryID, Balance: decimal.NewFromInt(300), Replayed: true}, nil)

	c, w := newContext(http.MethodPost, "/api/wallet/transfer", `{"studentId":"`+uuid.NewString()+`","amount":200}`)
	c.Request.Header.Set(HeaderIdempotencyKey, "key-1")
	authenticate(c, uuid.New(), domain.RoleParent)
	h.Transfer(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	data := decodeData(t, w)
	assert.Equal(t, entryID.String(), data["transactionId"])
	assert.Equal(t, true, data["replayed"])
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	m := metrics.New()
	h := NewWalletHandler(mockWallet, m)

	mockWallet.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	c, w := newContext(http.MethodPost, "/api/wallet/transfer", `{"studentId":"`+uuid.NewString()+`","amount":150}`)
	authenticate(c, uuid.New(), domain.RoleParent)
	h.Transfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PAY_001", decodeResponse(t, w)["error_code"])
	assert.Equal(t, 1.0, walletOps(t, m, "transfer", metrics.OutcomeRejected))
	assert.Zero(t, walletOps(t, m, "transfer", metrics.OutcomeSuccess))
}

func TestTransfer_IdempotencyKeyTooLong(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), nil)

	c, w := newContext(http.MethodPost, "/api/wallet/transfer", `{"studentId":"`+uuid.NewString()+`","amount":1}`)
	c.Request.Header.Set(HeaderIdempotencyKey, strings.Repeat("k", 129))
	authenticate(c, uuid.New(), domain.RoleParent)
	h.Transfer(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCharge_MapsItems(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	merchantID := uuid.New()
	juiceID := uuid.New()
	mockWallet.EXPECT().Charge(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ChargeRequest) (*ports.WalletResult, error) {
			assert.Equal(t, merchantID, req.MerchantID)
			assert.Equal(t, "CARD-1", req.CardID)
			assert.Equal(t, "1234", req.Pin)
			require.Len(t, req.Items, 2)
			require.NotNil(t, req.Items[0].InventoryID)
			assert.Equal(t, juiceID, *req.Items[0].InventoryID)
			assert.Equal(t, "Juice", req.Items[0].Name)
			assert.True(t, req.Items[0].Price.Equal(decimal.NewFromInt(20)))
			assert.Nil(t, req.Items[1].InventoryID)
			assert.Equal(t, 1, req.Items[1].Qty())
			return &ports.WalletResult{EntryID: uuid.New(), Balance: decimal.NewFromInt(30)}, nil
		})

	c, w := newContext(http.MethodPost, "/api/wallet/charge", `{
		"studentNfcCardId":"CARD-1","amount":20,"cardPin":"1234",
		"items":[{"inventoryId":"`+juiceID.String()+`","name":"Juice","price":20,"quantity":1},{"name":"Bag","price":"0"}]}`)
	authenticate(c, merchantID, domain.RoleMerchant)
	h.Charge(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "30.00", decodeData(t, w)["newBalance"])
}

func TestCharge_InvalidPin(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	mockWallet.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidPin())

	c, w := newContext(http.MethodPost, "/api/wallet/charge", `{"studentNfcCardId":"CARD-1","amount":20,"cardPin":"9999"}`)
	authenticate(c, uuid.New(), domain.RoleMerchant)
	h.Charge(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid PIN", decodeResponse(t, w)["message"])
}

func TestGetBalance_Self(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	userID := uuid.New()
	requester := ports.Requester{UserID: userID, Role: domain.RoleStudent}
	mockWallet.EXPECT().GetBalance(gomock.Any(), requester, userID).Return(decimal.RequireFromString("42.5"), nil)

	c, w := newContext(http.MethodGet, "/api/wallet/balance", "")
	authenticate(c, userID, domain.RoleStudent)
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "42.50", data["balance"])
	assert.Equal(t, userID.String(), data["userId"])
}

func TestGetBalance_OtherUserForbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	target := uuid.New()
	mockWallet.EXPECT().GetBalance(gomock.Any(), gomock.Any(), target).Return(decimal.Zero, apperror.ErrForbidden())

	c, w := newContext(http.MethodGet, "/api/wallet/balance/"+target.String(), "")
	c.Params = gin.Params{{Key: "userId", Value: target.String()}}
	authenticate(c, uuid.New(), domain.RoleParent)
	h.GetBalance(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetBalance_BadUserID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), nil)

	c, w := newContext(http.MethodGet, "/api/wallet/balance/nope", "")
	c.Params = gin.Params{{Key: "userId", Value: "nope"}}
	authenticate(c, uuid.New(), domain.RoleAdmin)
	h.GetBalance(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupStudent_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet, nil)

	card := "CARD-1"
	studentID := uuid.New()
	mockWallet.EXPECT().LookupStudent(gomock.Any(), "STU-001").
		Return(&domain.StudentSummary{ID: studentID, Name: "Sam", StudentIDNumber: "STU-001", CardID: &card}, nil)

	c, w := newContext(http.MethodPost, "/api/wallet/lookup-student", `{"studentIdNumber":"STU-001"}`)
	authenticate(c, uuid.New(), domain.RoleParent)
	h.LookupStudent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, studentID.String(), data["id"])
	assert.Equal(t, "CARD-1", data["nfcCardId"])
}

// --- Transaction Handler Tests ---

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)

	userID := uuid.New()
	merchantID := uuid.New()
	entryType := domain.EntryTypePayment
	sender := "Sam"
	mockReporting.EXPECT().ListEntries(gomock.Any(), domain.LedgerListParams{
		UserID: userID, Type: &entryType, Page: 2, PageSize: 10,
	}).Return([]domain.LedgerEntry{{
		ID:          uuid.New(),
		Type:        domain.EntryTypePayment,
		Amount:      decimal.NewFromInt(20),
		FromUserID:  &userID,
		ToUserID:    merchantID,
		Description: "Payment: Juice (20.00)",
		Details: domain.PaymentDetails{{
			Name: "Juice", Quantity: 1, UnitPrice: decimal.NewFromInt(20), TotalPrice: decimal.NewFromInt(20),
		}},
		SenderName: &sender,
		CreatedAt:  time.Now(),
	}}, int64(11), nil)

	c, w := newContext(http.MethodGet, "/api/transactions?type=payment&page=2&limit=10", "")
	authenticate(c, userID, domain.RoleStudent)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["totalPages"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "20.00", item["amount"])
	assert.Equal(t, "Sam", item["senderName"])
	details := item["details"].([]interface{})
	assert.Equal(t, "20.00", details[0].(map[string]interface{})["unitPrice"])
}

func TestListTransactions_ClampsPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)

	userID := uuid.New()
	mockReporting.EXPECT().ListEntries(gomock.Any(), domain.LedgerListParams{
		UserID: userID, Page: 1, PageSize: 100,
	}).Return(nil, int64(0), nil)

	c, w := newContext(http.MethodGet, "/api/transactions?page=-3&limit=5000", "")
	authenticate(c, userID, domain.RoleParent)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Empty(t, data["items"])
	assert.Equal(t, float64(0), data["totalPages"])
}

func TestListTransactions_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)

	mockReporting.EXPECT().ListEntries(gomock.Any(), gomock.Any()).
		Return(nil, int64(0), apperror.InternalError(errors.New("db down")))

	c, w := newContext(http.MethodGet, "/api/transactions", "")
	authenticate(c, uuid.New(), domain.RoleParent)
	h.List(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestStats_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewTransactionHandler(mockReporting)

	mockReporting.EXPECT().GetStats(gomock.Any(), "week").Return(&domain.LedgerStats{
		Since:       time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC),
		TotalCount:  3,
		TotalVolume: decimal.RequireFromString("720"),
		ByType: []domain.LedgerTypeStats{
			{Type: domain.EntryTypeTopup, Count: 1, Volume: decimal.NewFromInt(500)},
			{Type: domain.EntryTypeTransfer, Count: 1, Volume: decimal.NewFromInt(200)},
			{Type: domain.EntryTypePayment, Count: 1, Volume: decimal.NewFromInt(20)},
		},
	}, nil)

	c, w := newContext(http.MethodGet, "/api/admin/stats?period=week", "")
	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "720.00", data["totalVolume"])
	assert.Equal(t, "2026-10-09T00:00:00Z", data["since"])
	assert.Len(t, data["byType"], 3)
}

// --- Inventory Handler Tests ---

func TestInventoryCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewInventoryHandler(mockInv)

	merchantID := uuid.New()
	itemID := uuid.New()
	mockInv.EXPECT().Create(gomock.Any(), merchantID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, in ports.InventoryInput) (*domain.InventoryItem, error) {
			require.NotNil(t, in.Name)
			assert.Equal(t, "Juice", *in.Name)
			require.NotNil(t, in.Price)
			assert.True(t, in.Price.Equal(decimal.RequireFromString("2.5")))
			require.NotNil(t, in.Stock)
			assert.Equal(t, 5, *in.Stock)
			return &domain.InventoryItem{ID: itemID, MerchantID: merchantID, Name: "Juice", Price: *in.Price, Stock: 5}, nil
		})

	c, w := newContext(http.MethodPost, "/api/inventory", `{"name":"Juice","price":"2.50","stock":5}`)
	authenticate(c, merchantID, domain.RoleMerchant)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "2.50", data["price"])
	assert.Equal(t, itemID.String(), c.GetString(middleware.CtxAuditResourceID))
}

func TestInventoryUpdate_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewInventoryHandler(mockInv)

	itemID := uuid.New()
	mockInv.EXPECT().Update(gomock.Any(), gomock.Any(), itemID, gomock.Any()).Return(nil, apperror.ErrNotFound("Item"))

	c, w := newContext(http.MethodPut, "/api/inventory/"+itemID.String(), `{"stock":3}`)
	c.Params = gin.Params{{Key: "id", Value: itemID.String()}}
	authenticate(c, uuid.New(), domain.RoleMerchant)
	h.Update(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryDelete_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewInventoryHandler(mocks.NewMockInventoryService(ctrl))

	c, w := newContext(http.MethodDelete, "/api/inventory/abc", "")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	authenticate(c, uuid.New(), domain.RoleMerchant)
	h.Delete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewInventoryHandler(mockInv)

	merchantID := uuid.New()
	mockInv.EXPECT().List(gomock.Any(), merchantID, 1, 20).Return([]domain.InventoryItem{
		{ID: uuid.New(), Name: "Bun", Price: decimal.NewFromInt(1), Stock: 10},
		{ID: uuid.New(), Name: "Juice", Price: decimal.NewFromInt(20), Stock: 5},
	}, int64(2), nil)

	c, w := newContext(http.MethodGet, "/api/inventory", "")
	authenticate(c, merchantID, domain.RoleMerchant)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Len(t, data["items"], 2)
	assert.Equal(t, float64(1), data["totalPages"])
}

// --- Admin Handler Tests ---

func TestResetPin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockUserAdminService(ctrl)
	h := NewAdminHandler(mockAdmin, mocks.NewMockAuthService(ctrl))

	userID := uuid.New()
	mockAdmin.EXPECT().ResetPin(gomock.Any(), userID, "4321").Return(nil)

	c, w := newContext(http.MethodPost, "/api/admin/user/reset-pin", `{"userId":"`+userID.String()+`","newPin":"4321"}`)
	h.ResetPin(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PIN reset successfully", decodeData(t, w)["message"])
}

func TestResetPin_RejectsNonNumericPin(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAdminHandler(mocks.NewMockUserAdminService(ctrl), mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/admin/user/reset-pin", `{"userId":"`+uuid.NewString()+`","newPin":"abcd"}`)
	h.ResetPin(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncNFC_Conflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockUserAdminService(ctrl)
	h := NewAdminHandler(mockAdmin, mocks.NewMockAuthService(ctrl))

	userID := uuid.New()
	mockAdmin.EXPECT().SyncCard(gomock.Any(), userID, "CARD-9").
		Return(apperror.Validation("NFC card is already assigned to another user"))

	c, w := newContext(http.MethodPost, "/api/admin/user/sync-nfc", `{"userId":"`+userID.String()+`","nfcCardId":"CARD-9"}`)
	h.SyncNFC(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsers_SearchAndPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAdmin := mocks.NewMockUserAdminService(ctrl)
	h := NewAdminHandler(mockAdmin, mocks.NewMockAuthService(ctrl))

	card := "CARD-1"
	mockAdmin.EXPECT().ListUsers(gomock.Any(), domain.UserListParams{Search: "sam", Page: 2, PageSize: 10}).
		Return([]domain.User{{ID: uuid.New(), Name: "Sam", Email: "sam@x.ug", Role: domain.RoleStudent, CardID: &card}}, int64(11), nil)

	c, w := newContext(http.MethodGet, "/api/admin/users?search=sam&page=2&limit=10", "")
	authenticate(c, uuid.New(), domain.RoleCampusAdmin)
	h.ListUsers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["totalPages"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	user := items[0].(map[string]interface{})
	assert.Equal(t, "CARD-1", user["nfcCardId"])
	assert.NotContains(t, user, "passwordHash")
}

func TestCreateUser_PassesCreatorRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAdminHandler(mocks.NewMockUserAdminService(ctrl), mockAuth)

	parentID := uuid.New()
	created := &domain.User{ID: uuid.New(), Name: "Kato", Email: "kato@x.ug", Role: domain.RoleStudent}
	mockAuth.EXPECT().CreateUser(gomock.Any(), domain.RoleCampusAdmin, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.Role, req ports.RegisterRequest) (*domain.User, error) {
			assert.Equal(t, domain.RoleStudent, req.Role)
			require.NotNil(t, req.ParentID)
			assert.Equal(t, parentID, *req.ParentID)
			require.NotNil(t, req.CardPin)
			assert.Equal(t, "4321", *req.CardPin)
			return created, nil
		})

	c, w := newContext(http.MethodPost, "/api/admin/users", `{"name":"Kato","email":"kato@x.ug","password":"secret123",`+
		`"role":"student","studentIdNumber":"S-44","nfcCardId":"CARD-44","cardPin":"4321","parentId":"`+parentID.String()+`"}`)
	authenticate(c, uuid.New(), domain.RoleCampusAdmin)
	h.CreateUser(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, created.ID.String(), decodeData(t, w)["id"])
	assert.Equal(t, created.ID.String(), c.GetString(middleware.CtxAuditResourceID))
}

func TestCreateUser_Forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAdminHandler(mocks.NewMockUserAdminService(ctrl), mockAuth)

	mockAuth.EXPECT().CreateUser(gomock.Any(), domain.RoleCampusAdmin, gomock.Any()).Return(nil, apperror.ErrForbidden())

	c, w := newContext(http.MethodPost, "/api/admin/users", `{"name":"Eve","email":"eve@x.ug","password":"secret123","role":"admin"}`)
	authenticate(c, uuid.New(), domain.RoleCampusAdmin)
	h.CreateUser(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateUser_BadParentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAdminHandler(mocks.NewMockUserAdminService(ctrl), mocks.NewMockAuthService(ctrl))

	c, w := newContext(http.MethodPost, "/api/admin/users", `{"name":"Kato","email":"kato@x.ug","password":"secret123","role":"student","parentId":"nope"}`)
	authenticate(c, uuid.New(), domain.RoleAdmin)
	h.CreateUser(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health & Docs ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rd := mocks.NewMockHealthChecker(ctrl)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	rd.EXPECT().Name().Return("redis").AnyTimes()

	c, w := newContext(http.MethodGet, "/health", "")
	HealthCheck(pg, rd)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]interface{})["status"])
	redisDep := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redisDep["status"])
	assert.Equal(t, "connection refused", redisDep["error"])
	assert.Contains(t, redisDep, "latency_ms")
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health", "")
	HealthCheck()(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocs_Loaded(t *testing.T) {
	h := NewDocsHandler([]byte("openapi: 3.0.3\n"))

	c, w := newContext(http.MethodGet, "/api-docs/spec", "")
	h.Spec(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openapi: 3.0.3\n", w.Body.String())

	c, w = newContext(http.MethodGet, "/api-docs", "")
	h.UI(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api-docs/spec")
}

func TestDocs_NotLoaded(t *testing.T) {
	h := NewDocsHandler(nil)

	c, w := newContext(http.MethodGet, "/api-docs/spec", "")
	h.Spec(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
