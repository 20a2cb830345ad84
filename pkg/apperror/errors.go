package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// Is matches on Code so callers can use errors.Is(err, apperror.ErrInsufficientFunds()).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code returns the error code of err if it is an *AppError, or "" otherwise.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

const (
	CodeValidation        = "VAL_001"
	CodePayloadTooLarge   = "VAL_002"
	CodeAccountNotFound   = "ACC_001"
	CodeInsufficientFunds = "TXN_001"
	CodeInternal          = "SYS_000"
	CodeStorage           = "SYS_001"
	CodeRateLimit         = "RATE_001"
)

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error carrying a client-facing message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return Validation("amount must be a positive number")
}

func ErrInvalidTransactionType() *AppError {
	return Validation("type must be Deposit or Withdrawal")
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound(accountID string) *AppError {
	return New(CodeAccountNotFound, fmt.Sprintf("account %s not found", accountID), http.StatusNotFound)
}

// ---- Transactions (TXN) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance", http.StatusUnprocessableEntity)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an unexpected failure.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// StorageError wraps a failure of the backing store. The cause is logged, never returned to clients.
func StorageError(err error) *AppError {
	return Wrap(CodeStorage, "Storage unavailable", http.StatusServiceUnavailable, err)
}
