package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the error envelope.
const (
	CodeAuthRequired            = "AUTH_REQUIRED"
	CodeAuthInvalid             = "AUTH_INVALID"
	CodeForbidden               = "FORBIDDEN"
	CodeTenantNotFound          = "TENANT_NOT_FOUND"
	CodeNotFound                = "NOT_FOUND"
	CodeValidation              = "VALIDATION_ERROR"
	CodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	CodeReservationPastTime     = "RESERVATION_PAST_TIME"
	CodeReservationInvalidTime  = "RESERVATION_INVALID_TIME"
	CodeReservationConflict     = "RESERVATION_CONFLICT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeRateLimited             = "RATE_LIMITED"
	CodeDatabase                = "DATABASE_ERROR"
	CodeInternal                = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeAuthRequired:            http.StatusUnauthorized,
	CodeAuthInvalid:             http.StatusUnauthorized,
	CodeForbidden:               http.StatusForbidden,
	CodeTenantNotFound:          http.StatusNotFound,
	CodeNotFound:                http.StatusNotFound,
	CodeValidation:              http.StatusBadRequest,
	CodeMissingRequiredField:    http.StatusBadRequest,
	CodeReservationPastTime:     http.StatusBadRequest,
	CodeReservationInvalidTime:  http.StatusBadRequest,
	CodeReservationConflict:     http.StatusConflict,
	CodeInvalidStatusTransition: http.StatusConflict,
	CodeRateLimited:             http.StatusTooManyRequests,
	CodeDatabase:                http.StatusInternalServerError,
	CodeInternal:                http.StatusInternalServerError,
}

// AppError is an error with a machine-readable code and an HTTP status.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewError(code, message string) *AppError {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, Status: status}
}

func Errorf(code, format string, args ...interface{}) *AppError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// DatabaseError hides the driver error from the caller but keeps it for logging.
func DatabaseError(err error) *AppError {
	appErr := NewError(CodeDatabase, "database operation failed")
	appErr.Err = err
	return appErr
}

func InternalError(err error) *AppError {
	appErr := NewError(CodeInternal, "internal server error")
	appErr.Err = err
	return appErr
}

// AsAppError unwraps err into an AppError, treating anything unknown as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
