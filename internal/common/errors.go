package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	// ErrDataLoad means the master data source is unreadable or contains no
	// recognizable field pairs. Nothing can be filled without a snapshot.
	ErrDataLoad = errors.New("master data load failed")
	// ErrUnsupportedFormat means the uploaded bytes do not parse as a valid
	// document of the declared format. Fails the single request.
	ErrUnsupportedFormat = errors.New("unsupported or corrupt document format")
	// ErrModelFallback marks model-fallback failures (timeout, rate limit,
	// malformed response). Recovered locally by retry-then-abstain.
	ErrModelFallback = errors.New("model fallback failed")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Transient reports whether a model-fallback error is worth a single retry
// (timeouts and rate limits, per the resource model).
type Transient interface {
	Transient() bool
}

// IsTransient reports whether err carries a transient marker.
func IsTransient(err error) bool {
	var t Transient
	return errors.As(err, &t) && t.Transient()
}

// HTTPStatus maps an engine error to the status code reported at the edge.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
