// Package outcome turns finalized event results into rating deltas.
// It validates submitted outcomes and computes per-participant RP and Elo
// changes; persistence of the deltas is the rating store's job, so the
// processor itself is pure computation.
package outcome

import (
	"fmt"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// EventTier grades events by competitive weight. Higher tiers award more RP
// and move Elo harder.
type EventTier string

const (
	// EventTierT1 is the top tier (majors, finals).
	EventTierT1 EventTier = "t1"
	// EventTierT2 is the second tier (qualifiers, invitationals).
	EventTierT2 EventTier = "t2"
	// EventTierT3 covers regular-season circuit events.
	EventTierT3 EventTier = "t3"
	// EventTierT4 covers community and off-season events.
	EventTierT4 EventTier = "t4"
)

// IsValid checks that the tier is one of the known grades.
func (t EventTier) IsValid() bool {
	switch t {
	case EventTierT1, EventTierT2, EventTierT3, EventTierT4:
		return true
	}
	return false
}

// String returns the string representation.
func (t EventTier) String() string {
	return string(t)
}

// EventType classifies the competition format.
type EventType string

const (
	EventTypeTournament EventType = "tournament"
	EventTypeLeague     EventType = "league"
	EventTypeDraft      EventType = "draft"
	EventTypeBYOT       EventType = "byot" // bring your own team
)

// IsValid checks that the type is one of the known formats.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeTournament, EventTypeLeague, EventTypeDraft, EventTypeBYOT:
		return true
	}
	return false
}

// String returns the string representation.
func (t EventType) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMITTED OUTCOME
// ══════════════════════════════════════════════════════════════════════════════

// Participant is one competitor's final placement in an event.
type Participant struct {
	CompetitorID shared.CompetitorID
	Placement    int
}

// Outcome is a finalized, verified event result as submitted by the match
// reporting workflow. Placements must form a contiguous 1..N ranking.
type Outcome struct {
	EventID      shared.EventID
	Tier         EventTier
	Type         EventType
	Participants []Participant
}

// Validate checks the structural rules for a submitted outcome:
// at least two participants, unique competitor IDs, and placements forming
// a contiguous 1..N ranking. Violations map to ErrInvalidOutcome.
func (o *Outcome) Validate() error {
	if !o.EventID.IsValid() {
		return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome, "missing or invalid event id", nil)
	}
	if !o.Tier.IsValid() {
		return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
			fmt.Sprintf("unknown event tier %q", o.Tier), nil)
	}
	if !o.Type.IsValid() {
		return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
			fmt.Sprintf("unknown event type %q", o.Type), nil)
	}

	n := len(o.Participants)
	if n < 2 {
		return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
			fmt.Sprintf("need at least 2 participants, got %d", n), nil)
	}

	seenID := make(map[shared.CompetitorID]struct{}, n)
	seenPlacement := make(map[int]struct{}, n)
	for _, p := range o.Participants {
		if !p.CompetitorID.IsValid() {
			return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
				fmt.Sprintf("invalid competitor id %q", p.CompetitorID), nil)
		}
		if _, dup := seenID[p.CompetitorID]; dup {
			return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
				fmt.Sprintf("competitor %s listed twice", p.CompetitorID), nil)
		}
		seenID[p.CompetitorID] = struct{}{}

		if p.Placement < 1 || p.Placement > n {
			return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
				fmt.Sprintf("placement %d outside 1..%d", p.Placement, n), nil)
		}
		if _, dup := seenPlacement[p.Placement]; dup {
			return shared.WrapError("outcome", "Validate", shared.ErrInvalidOutcome,
				fmt.Sprintf("placement %d assigned twice", p.Placement), nil)
		}
		seenPlacement[p.Placement] = struct{}{}
	}

	// n unique placements within 1..n means the ranking is contiguous.
	return nil
}

// IsHeadToHead reports whether the outcome is a two-sided match.
func (o *Outcome) IsHeadToHead() bool {
	return len(o.Participants) == 2
}

// CompetitorIDs returns the participant IDs in submission order.
func (o *Outcome) CompetitorIDs() []shared.CompetitorID {
	ids := make([]shared.CompetitorID, len(o.Participants))
	for i, p := range o.Participants {
		ids[i] = p.CompetitorID
	}
	return ids
}
