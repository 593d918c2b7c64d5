package rating

import (
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT RESULT (audit trail)
// ══════════════════════════════════════════════════════════════════════════════

// EventResult is the immutable audit record of one competitor's outcome in
// one finalized event. Once created it is never mutated; the pair
// (EventID, CompetitorID) is unique, which makes outcome application
// idempotent per participant per event.
//
// Invariant: RPAfter == max(0, RPBefore + RPEarned). When the zero floor
// changes the naive sum, Clamped records it, so RPEarned stays the true
// awarded amount while RPAfter reflects what was actually stored.
type EventResult struct {
	// ID is the unique identifier of the result row (UUID).
	ID string

	// EventID identifies the finalized event.
	EventID shared.EventID

	// CompetitorID identifies the participant.
	CompetitorID shared.CompetitorID

	// Placement is the participant's final position, 1..N.
	Placement int

	// RPEarned is the awarded RP delta (may be negative for a loss).
	RPEarned float64

	// RPBefore and RPAfter bracket the applied change.
	RPBefore float64
	RPAfter  float64

	// EloBefore and EloAfter bracket the Elo update.
	EloBefore float64
	EloAfter  float64

	// Clamped is true when the zero floor truncated RPAfter.
	Clamped bool

	// CreatedAt is when the result was recorded.
	CreatedAt time.Time
}

// Validate checks the audit invariant.
func (r *EventResult) Validate() error {
	if !r.EventID.IsValid() || !r.CompetitorID.IsValid() {
		return shared.ErrInvalidID
	}
	if r.Placement < 1 {
		return shared.WrapError("rating", "ValidateResult", shared.ErrValueOutOfRange, "placement must be >= 1", nil)
	}
	want := r.RPBefore + r.RPEarned
	if want < 0 {
		want = 0
	}
	if r.RPAfter != want {
		return shared.WrapError("rating", "ValidateResult", shared.ErrInvalidEntity,
			"rp_after does not equal max(0, rp_before + rp_earned)", nil)
	}
	return nil
}

// OutcomeRef identifies the outcome being applied: the finalized event and
// the instant its results take effect.
type OutcomeRef struct {
	EventID shared.EventID
	At      time.Time
}

// Application is one participant's share of an outcome: the deltas computed
// for its placement, ready to be applied by the store.
type Application struct {
	CompetitorID shared.CompetitorID
	Placement    int
	RPDelta      float64
	EloDelta     float64
}
