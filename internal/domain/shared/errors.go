// Package shared contains common domain types, errors and events
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State store errors
	ErrCorruption   = errors.New("state corruption detected")
	ErrSizeExceeded = errors.New("encoded state exceeds size ceiling")
	ErrPersist      = errors.New("state persistence failed")
	ErrBusy         = errors.New("state store busy")
	ErrInvalidState = errors.New("invalid state")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "store", "tracker", "gemini"
	Op      string // Operation that failed, e.g., "Mutate", "Evaluate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// State store errors
var (
	ErrStateCorrupted     = NewDomainError("store", "Decode", ErrCorruption, "state blob failed to decode")
	ErrStateChecksum      = NewDomainError("store", "Decode", ErrCorruption, "state checksum mismatch")
	ErrStateTooLarge      = NewDomainError("store", "Encode", ErrSizeExceeded, "encoded state exceeds message limit")
	ErrStateWriteFailed   = NewDomainError("store", "Persist", ErrPersist, "failed to write state message")
	ErrStateNotLoaded     = NewDomainError("store", "Read", ErrInvalidState, "state not loaded yet")
	ErrUnknownVersion     = NewDomainError("store", "Migrate", ErrInvalidFormat, "unknown state schema version")
	ErrUserNotFound       = NewDomainError("store", "GetUser", ErrNotFound, "user not found in state")
	ErrUserAlreadyTracked = NewDomainError("store", "AddUser", ErrAlreadyExists, "user already tracked")
)

// Tracking errors
var (
	ErrMessageTooShort   = NewDomainError("tracker", "Qualify", ErrValidation, "message below minimum length")
	ErrDuplicateLog      = NewDomainError("tracker", "Qualify", ErrAlreadyExists, "duplicate of a recent log")
	ErrAlreadyLoggedWith = NewDomainError("tracker", "Award", ErrAlreadyExists, "points already awarded today")
	ErrNotTrackedUser    = NewDomainError("tracker", "Process", ErrForbidden, "user is not tracked")
)

// External service errors
var (
	ErrGeminiUnavailable     = NewDomainError("gemini", "Request", ErrServiceUnavailable, "Gemini API is unavailable")
	ErrGeminiRateLimited     = NewDomainError("gemini", "Request", ErrRateLimited, "Gemini daily limit reached")
	ErrGeminiInvalidResponse = NewDomainError("gemini", "Parse", ErrInvalidFormat, "invalid response from Gemini API")
	ErrDiscordAPIFailed      = NewDomainError("discord", "Request", ErrExternalService, "Discord API request failed")
	ErrDiscordRateLimited    = NewDomainError("discord", "Request", ErrRateLimited, "Discord API rate limit exceeded")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorruption checks if the error indicates corrupted state.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruption)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrBusy)
}
