// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Storage errors
	ErrStorageConflict    = errors.New("storage conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "rating", "outcome", "standings"
	Op      string // Operation that failed, e.g., "ApplyOutcome", "Recompute"
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

// Rating domain errors
var (
	ErrCompetitorNotFound = NewDomainError("rating", "Find", ErrNotFound, "competitor not found")
	ErrCompetitorExists   = NewDomainError("rating", "Create", ErrAlreadyExists, "competitor already exists")
	ErrInvalidCompetitor  = NewDomainError("rating", "Validate", ErrInvalidEntity, "invalid competitor")
	ErrNegativeRating     = NewDomainError("rating", "Validate", ErrNegativeValue, "rating cannot be negative")
)

// Outcome domain errors
var (
	ErrInvalidOutcome  = NewDomainError("outcome", "Validate", ErrInvalidInput, "invalid event outcome")
	ErrDuplicateResult = NewDomainError("outcome", "Apply", ErrAlreadyProcessed, "result already recorded for this event and competitor")
	ErrResultNotFound  = NewDomainError("outcome", "Find", ErrNotFound, "event result not found")
)

// Standings domain errors
var (
	ErrSnapshotNotFound = NewDomainError("standings", "FindSnapshot", ErrNotFound, "standings snapshot not found")
	ErrInvalidScope     = NewDomainError("standings", "Validate", ErrInvalidInput, "invalid standings scope")
	ErrInvalidRank      = NewDomainError("standings", "Validate", ErrValueOutOfRange, "invalid rank")
	ErrEmptyStandings   = NewDomainError("standings", "Recompute", ErrInvalidState, "standings scope is empty")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
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

// IsDuplicate checks if the error marks an idempotency violation:
// the same (event, competitor) result submitted twice.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsRetryable checks if the operation can be retried with the same inputs.
// Only serialization conflicts qualify: the transaction lost a race and
// replaying it is safe. An unavailable store is fatal for the current
// request; blind retries against a down database only pile up load.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageConflict)
}
