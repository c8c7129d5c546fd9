package http

import (
	"errors"
	"fmt"
	"net/http"

	"TradeDesk/pkg/config"
)

// Error codes returned in the response envelope.
const (
	CodeBadRequest    = "ERR_BAD_REQUEST"
	CodeInvalidConfig = "ERR_INVALID_CONFIG"
	CodeNotFound      = "ERR_NOT_FOUND"
	CodeRateLimited   = "ERR_RATE_LIMITED"
	CodeUnavailable   = "ERR_UNAVAILABLE"
	CodeInternal      = "ERR_INTERNAL"
)

// AppError is an error carrying the HTTP status and code it is reported with.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithError attaches the underlying cause. It is logged, never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundErrorf(format string, a ...any) *AppError {
	return NewAppError(CodeNotFound, "", fmt.Sprintf(format, a...), http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

// RateLimitedError is returned when a throttled endpoint is called too often.
func RateLimitedError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// UnavailableErrorf is used when market data or another upstream is down.
func UnavailableErrorf(format string, a ...any) *AppError {
	return NewAppError(CodeUnavailable, "", fmt.Sprintf(format, a...), http.StatusServiceUnavailable)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

// InvalidInputError reports err as a 400. A *config.ConfigError keeps its
// field name so clients can point at the offending parameter.
func InvalidInputError(err error) *AppError {
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		return NewAppError(CodeInvalidConfig, ce.Field, ce.Reason, http.StatusBadRequest).WithError(err)
	}
	return BadRequestError(err.Error()).WithError(err)
}
