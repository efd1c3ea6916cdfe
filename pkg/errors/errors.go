// Package errors defines the sentinel errors shared by the retrieval engine
// and its API layer, plus an AppError wrapper that carries an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMomentNotFound  = errors.New("moment not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrLimitOutOfRange = errors.New("limit out of range")
	ErrNotReady        = errors.New("index not ready")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// NotFound reports an unknown moment id.
func NotFound(id string) *AppError {
	return Newf(ErrMomentNotFound, http.StatusNotFound, "moment %q not found", id)
}

// InvalidInput reports a malformed request value.
func InvalidInput(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// InvalidFilter reports a filter value outside its closed enumeration.
func InvalidFilter(name, value string, allowed []string) *AppError {
	return Newf(ErrInvalidFilter, http.StatusBadRequest, "%s %q is not one of %v", name, value, allowed)
}

// LimitOutOfRange reports a malformed limit or offset.
func LimitOutOfRange(format string, args ...any) *AppError {
	return Newf(ErrLimitOutOfRange, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrMomentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidFilter),
		errors.Is(err, ErrLimitOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for err, used in API and
// tool error payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMomentNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrInvalidFilter):
		return "INVALID_FILTER"
	case errors.Is(err, ErrLimitOutOfRange):
		return "LIMIT_OUT_OF_RANGE"
	case errors.Is(err, ErrNotReady):
		return "NOT_READY"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	default:
		return "INTERNAL"
	}
}

// PublicMessage returns the message safe to show to a caller. Internal
// errors are collapsed so driver or file details do not leak.
func PublicMessage(err error) string {
	if HTTPStatusCode(err) >= http.StatusInternalServerError && !errors.Is(err, ErrNotReady) && !errors.Is(err, ErrTimeout) {
		return "an internal error occurred"
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
