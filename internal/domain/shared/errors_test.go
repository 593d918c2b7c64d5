package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("rating", "ApplyOutcome", ErrStorageConflict, "transaction conflict", cause)

	assert.True(t, errors.Is(err, ErrStorageConflict))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "rating.ApplyOutcome")
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(ErrCompetitorNotFound))
	assert.True(t, IsAlreadyExists(ErrCompetitorExists))
	assert.True(t, IsDuplicate(ErrDuplicateResult))
	assert.True(t, IsValidation(ErrInvalidOutcome))
	assert.False(t, IsValidation(ErrCompetitorNotFound))
}

func TestIsRetryable_OnlySerializationConflicts(t *testing.T) {
	assert.True(t, IsRetryable(ErrStorageConflict))
	assert.True(t, IsRetryable(fmt.Errorf("apply: %w", ErrStorageConflict)))

	// An unavailable store is fatal for the current request; a replay of
	// the same inputs against a down database cannot succeed.
	assert.False(t, IsRetryable(ErrStorageUnavailable))
	assert.False(t, IsRetryable(ErrDuplicateResult))
	assert.False(t, IsRetryable(ErrCompetitorNotFound))
}
