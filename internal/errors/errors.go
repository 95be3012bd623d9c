// Package errors provides custom error types for the budget engine.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// Is reports whether err is an AppError carrying the same code as sentinel.
func Is(err error, sentinel *AppError) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == sentinel.Code
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}

	ErrInvalidAPIKey       = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrMaintenanceDisabled = &AppError{Code: "MAINTENANCE_NOT_CONFIGURED", Message: "Maintenance endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Directory errors.
var (
	ErrUserNotFound        = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrFamilyNotFound      = &AppError{Code: "FAMILY_NOT_FOUND", Message: "Family not found", StatusCode: http.StatusNotFound}
	ErrMemberNotFound      = &AppError{Code: "FAMILY_MEMBER_NOT_FOUND", Message: "Family member not found", StatusCode: http.StatusNotFound}
	ErrAccountBookNotFound = &AppError{Code: "ACCOUNT_BOOK_NOT_FOUND", Message: "Account book not found", StatusCode: http.StatusNotFound}
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
)

// Budget errors.
var (
	ErrBudgetNotFound  = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrScopeNotFound   = &AppError{Code: "SCOPE_NOT_FOUND", Message: "No budget exists for this scope", StatusCode: http.StatusNotFound}
	ErrPeriodNotFound  = &AppError{Code: "PERIOD_NOT_FOUND", Message: "No budget period covers the requested date", StatusCode: http.StatusNotFound}
	ErrLedgerNotFound  = &AppError{Code: "LEDGER_ENTRY_NOT_FOUND", Message: "No ledger entry exists for this period", StatusCode: http.StatusNotFound}
	ErrBudgetExists    = &AppError{Code: "BUDGET_EXISTS", Message: "A budget already exists for this scope", StatusCode: http.StatusConflict}
	ErrBudgetClosed    = &AppError{Code: "BUDGET_CLOSED", Message: "This budget period is closed", StatusCode: http.StatusConflict}
	ErrOverAllocated   = &AppError{Code: "OVER_ALLOCATED", Message: "Category budgets exceed the budget amount", StatusCode: http.StatusUnprocessableEntity}
	ErrInvalidAmount   = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be a non-negative value with at most two decimals", StatusCode: http.StatusBadRequest}
	ErrInvalidCategory = &AppError{Code: "INVALID_CATEGORY", Message: "Category does not belong to this account book", StatusCode: http.StatusBadRequest}
)

// Period engine errors. These are internal conditions; clients only see
// their code and message.
var (
	ErrDuplicatePeriod        = &AppError{Code: "DUPLICATE_PERIOD", Message: "Budget period already exists", StatusCode: http.StatusConflict}
	ErrPeriodNotClosed        = &AppError{Code: "PERIOD_NOT_CLOSED", Message: "Budget period has not ended yet", StatusCode: http.StatusConflict}
	ErrAggregationUnavailable = &AppError{Code: "AGGREGATION_UNAVAILABLE", Message: "Spending totals are temporarily unavailable", StatusCode: http.StatusServiceUnavailable}
	ErrInvariantViolation     = &AppError{Code: "INVARIANT_VIOLATION", Message: "Budget data is inconsistent", StatusCode: http.StatusInternalServerError}
)
