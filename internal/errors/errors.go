// Package errors provides the engine's typed error kinds and their mapping
// to a structured, HTTP-transportable ServiceError envelope.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a distinct engine failure mode.
type ErrorCode string

const (
	CodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	CodeConflict              ErrorCode = "CONFLICT"
	CodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	CodeValidationError       ErrorCode = "VALIDATION_ERROR"
	CodeStoreUnavailable      ErrorCode = "STORE_UNAVAILABLE"
	CodeStateCorrupt          ErrorCode = "STATE_CORRUPT"
	CodeRateLimited           ErrorCode = "RATE_LIMITED"
	CodeTimeout               ErrorCode = "TIMEOUT"
	CodePersistentAuditFailed ErrorCode = "PERSISTENT_AUDIT_FAILURE"
	CodeInternal              ErrorCode = "INTERNAL"
)

// ServiceError is the structured error shape returned to external callers
// as {error:{code,message,details}}.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair to the error's Details map.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newErr(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

func wrapErr(code ErrorCode, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// SessionNotFound builds the not-found error for a missing session.
func SessionNotFound(sessionID string) *ServiceError {
	return newErr(CodeSessionNotFound, "session not found", http.StatusNotFound).
		WithDetails("session_id", sessionID)
}

// Conflict builds a version-conflict error carrying the expected/actual
// version pair, per spec.md §7.
func Conflict(expected, actual int64) *ServiceError {
	return newErr(CodeConflict, "version conflict", http.StatusConflict).
		WithDetails("expected_version", expected).
		WithDetails("actual_version", actual)
}

// InvalidTransition builds a state-machine rejection error.
func InvalidTransition(from, operation string) *ServiceError {
	return newErr(CodeInvalidTransition, fmt.Sprintf("transition %q not admitted from status %q", operation, from), http.StatusBadRequest).
		WithDetails("status", from).
		WithDetails("operation", operation)
}

// ValidationError builds a request-shape/range validation error.
func ValidationError(message string, fields map[string]interface{}) *ServiceError {
	e := newErr(CodeValidationError, message, http.StatusBadRequest)
	for k, v := range fields {
		e.WithDetails(k, v)
	}
	return e
}

// StoreUnavailable wraps a hot-store transport failure.
func StoreUnavailable(operation string, err error) *ServiceError {
	return wrapErr(CodeStoreUnavailable, "hot store unavailable", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

// StateCorrupt wraps a deserialization failure.
func StateCorrupt(sessionID string, err error) *ServiceError {
	return wrapErr(CodeStateCorrupt, "stored session state could not be decoded", http.StatusInternalServerError, err).
		WithDetails("session_id", sessionID)
}

// RateLimited builds a 429 with a Retry-After hint in seconds.
func RateLimited(retryAfterSeconds int) *ServiceError {
	return newErr(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("retry_after_seconds", retryAfterSeconds)
}

// Timeout builds a deadline-exceeded error.
func Timeout(operation string) *ServiceError {
	return newErr(CodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *ServiceError {
	return wrapErr(CodeInternal, message, http.StatusInternalServerError, err)
}

// As extracts a *ServiceError from an error chain, if present.
func As(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// Sentinel errors for plainly wrapped failures; httputil's error mapping
// recognizes them via errors.Is. The engine (internal/syncengine) and
// store (internal/store) themselves return *ServiceError values built by
// the constructors above.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrConflict          = errors.New("version conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrStateCorrupt      = errors.New("state corrupt")
)
