// Package apperror defines the client-facing error catalog. Every error a
// handler returns maps to exactly one code and HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. The prefix names the family: VAL input, NF lookup, PAY
// wallet rules, AUTH identity and access, RATE throttling, SYS server side.
const (
	CodeValidation       = "VAL_001"
	CodePayloadTooLarge  = "VAL_002"
	CodeNotFound         = "NF_001"
	CodeInsufficient     = "PAY_001"
	CodeDuplicateRequest = "PAY_003"
	CodeKeyReuse         = "PAY_004"
	CodeBadCredentials   = "AUTH_001"
	CodeEmailExists      = "AUTH_002"
	CodeInvalidToken     = "AUTH_003"
	CodeInvalidPin       = "AUTH_005"
	CodeForbidden        = "AUTH_006"
	CodeRateLimited      = "RATE_001"
	CodeInternal         = "SYS_001"
	CodeLockTimeout      = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never serialized
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates an AppError carrying an internal cause.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// HasCode reports whether err is, or wraps, an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Validation returns a VAL_001 error carrying a client-facing message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError { return Validation("Amount must be greater than 0") }

func ErrAmountTooLarge() *AppError { return Validation("Amount must not exceed 9999999999.99") }

// ErrBalanceLimit rejects a credit that would push a wallet past the
// largest storable balance.
func ErrBalanceLimit() *AppError {
	return Validation("Wallet balance would exceed 9999999999.99")
}

func ErrInvalidPaymentMethod() *AppError { return Validation("Invalid payment method") }

func ErrPinRequired() *AppError { return Validation("Student PIN is required") }

func ErrPinNotSet() *AppError {
	return Validation("Student has no PIN set. Please contact admin.")
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ErrNotFound names the missing entity, e.g. "Student not found".
func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, entity+" not found", http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficient, "Insufficient funds", http.StatusBadRequest)
}

// ErrDuplicateRequest is returned when a concurrent request committed the
// same idempotency key first.
func ErrDuplicateRequest() *AppError {
	return New(CodeDuplicateRequest, "Request with this idempotency key is already in progress", http.StatusConflict)
}

// ErrIdempotencyMismatch is returned when a client key that already settled
// one request arrives with a different payload.
func ErrIdempotencyMismatch() *AppError {
	return New(CodeKeyReuse, "Idempotency key was reused with a different request", http.StatusUnprocessableEntity)
}

func ErrInvalidCredentials() *AppError {
	return New(CodeBadCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New(CodeEmailExists, "User already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidPin() *AppError {
	return New(CodeInvalidPin, "Invalid PIN", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Unauthorized", http.StatusForbidden)
}

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ErrLockTimeout is a retryable 503 for row locks that were not granted.
func ErrLockTimeout(err error) *AppError {
	return Wrap(CodeLockTimeout, "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an unexpected failure as SYS_001.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
