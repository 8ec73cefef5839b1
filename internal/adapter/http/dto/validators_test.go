package dto

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"nsimbi-wallet/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	Register(v)
	return v
}

func decode(t *testing.T, body string, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), dst))
}

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Name:  "  Alice  ",
		Email: " alice@example.com ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "Alice", req.Name)
	assert.Equal(t, "alice@example.com", req.Email)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := LookupStudentRequest{StudentIDNumber: "<script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.StudentIDNumber, "&lt;script&gt;")
	assert.NotContains(t, req.StudentIDNumber, "<script>")
}

func TestSanitizeStruct_SkipsSecrets(t *testing.T) {
	pin := " 1234 "
	req := RegisterRequest{Password: "  p<ss>  ", CardPin: &pin}
	SanitizeStruct(&req)

	assert.Equal(t, "  p<ss>  ", req.Password)
	assert.Equal(t, " 1234 ", *req.CardPin)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	class := "  P7  "
	req := RegisterRequest{Name: "Bob", StudentClass: &class}
	SanitizeStruct(&req)

	assert.Equal(t, "P7", *req.StudentClass)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RegisterRequest{Name: "Carol"}
	SanitizeStruct(&req)
	assert.Nil(t, req.StudentClass)
}

func TestSanitizeStruct_DescendsIntoItems(t *testing.T) {
	req := ChargeRequest{
		NFCCardID: " CARD-1 ",
		CardPin:   " 1234",
		Items:     []ChargeItemRequest{{Name: "  Juice  "}, {Name: "<b>Bun</b>"}},
	}
	SanitizeStruct(&req)

	assert.Equal(t, "CARD-1", req.NFCCardID)
	assert.Equal(t, " 1234", req.CardPin)
	assert.Equal(t, "Juice", req.Items[0].Name)
	assert.Equal(t, "&lt;b&gt;Bun&lt;/b&gt;", req.Items[1].Name)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"STU-001",
		"CARD_002",
		"a.b.c",
		"04A1B2C3",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"stu 001",
		"card<001>",
		"card;DROP",
		"",
		"stu\n001",
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestMoney_AcceptsNumberAndString(t *testing.T) {
	v := newValidator()

	for _, body := range []string{
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":200}`,
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":"200.50"}`,
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":0.005}`,
	} {
		var req TransferRequest
		decode(t, body, &req)
		assert.NoError(t, v.Struct(req), body)
	}
}

func TestMoney_RejectsNonPositive(t *testing.T) {
	v := newValidator()

	for _, body := range []string{
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":0}`,
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":-5}`,
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e","amount":0.004}`,
		`{"studentId":"7d1f3c9e-3b1a-4b8e-9a57-0a0f5b0c1d2e"}`,
	} {
		var req TransferRequest
		decode(t, body, &req)
		err := v.Struct(req)
		require.Error(t, err, body)

		appErr := BindingError(err)
		assert.Equal(t, "VAL_001", appErr.Code)
		assert.Equal(t, "Amount must be greater than 0", appErr.Message)
	}
}

func TestMoney_RejectsAboveColumnLimit(t *testing.T) {
	v := newValidator()

	var req TopUpRequest
	decode(t, `{"amount":"100000000000000","paymentMethod":"mobile_money"}`, &req)
	err := v.Struct(req)
	require.Error(t, err)

	appErr := BindingError(err)
	assert.Equal(t, "VAL_001", appErr.Code)
	assert.Equal(t, "Amount must not exceed 9999999999.99", appErr.Message)

	var atLimit TopUpRequest
	decode(t, `{"amount":"9999999999.99","paymentMethod":"mobile_money"}`, &atLimit)
	assert.NoError(t, v.Struct(atLimit))
}

func TestMoneyNonNeg_InventoryPrice(t *testing.T) {
	v := newValidator()

	var free InventoryRequest
	decode(t, `{"name":"Water","price":0,"stock":3}`, &free)
	assert.NoError(t, v.Struct(free))

	var negative InventoryRequest
	decode(t, `{"name":"Water","price":"-1.00"}`, &negative)
	err := v.Struct(negative)
	require.Error(t, err)
	assert.Equal(t, "price must not be negative", BindingError(err).Message)

	var huge InventoryRequest
	decode(t, `{"name":"Water","price":"10000000000"}`, &huge)
	err = v.Struct(huge)
	require.Error(t, err)
	assert.Equal(t, "price must not exceed 9999999999.99", BindingError(err).Message)

	var omitted InventoryRequest
	decode(t, `{"stock":10}`, &omitted)
	assert.NoError(t, v.Struct(omitted))
}

func TestChargeRequest_ValidatesItems(t *testing.T) {
	v := newValidator()

	var req ChargeRequest
	decode(t, `{"studentNfcCardId":"CARD-1","amount":20,"cardPin":"1234",
		"items":[{"inventoryId":"not-a-uuid","name":"Juice","price":20,"quantity":1}]}`, &req)
	err := v.Struct(req)
	require.Error(t, err)
	assert.Equal(t, "inventoryId must be a valid id", BindingError(err).Message)
}

func TestBindingError_RequiredUsesJSONName(t *testing.T) {
	v := newValidator()

	var req LookupStudentRequest
	decode(t, `{}`, &req)
	err := v.Struct(req)
	require.Error(t, err)
	assert.Equal(t, "studentIdNumber is required", BindingError(err).Message)
}

func TestBindingError_NonValidationErrors(t *testing.T) {
	tooLarge := BindingError(&http.MaxBytesError{Limit: 10})
	assert.Equal(t, "VAL_002", tooLarge.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, tooLarge.HTTPStatus)

	assert.Equal(t, "Request body is required", BindingError(io.EOF).Message)

	other := BindingError(errors.New("invalid character 'x'"))
	var appErr *apperror.AppError
	require.ErrorAs(t, other, &appErr)
	assert.Equal(t, "VAL_001", appErr.Code)
}
