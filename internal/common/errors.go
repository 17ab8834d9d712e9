// Package common defines shared constants and sentinel errors used across
// the auth server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"sort"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal          = errors.New("internal error")
	ErrValidation          = errors.New("validation error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Verification workflow errors.
	ErrTokenExpired    = errors.New("token expired")
	ErrAlreadyVerified = errors.New("email already verified")

	// Credential errors.
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrEmailNotVerified  = errors.New("email not verified")

	// External identity errors.
	ErrInvalidAssertion = errors.New("invalid assertion")
	ErrBridgeConflict   = errors.New("account exists and is not verified")

	// Session errors (invalid, expired or malformed JWT).
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError carries per-field messages for malformed input.
// errors.Is(err, ErrValidation) reports true for it.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field message was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
