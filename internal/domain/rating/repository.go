package rating

import (
	"context"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines read and lifecycle operations over competitors.
// Implementations live in the infrastructure layer.
type Repository interface {
	// Create registers a new competitor.
	Create(ctx context.Context, c *Competitor) error

	// GetByID returns a competitor by ID, or shared.ErrCompetitorNotFound.
	GetByID(ctx context.Context, id shared.CompetitorID) (*Competitor, error)

	// GetByIDs returns the competitors for the given IDs, keyed by ID.
	// Missing IDs are simply absent from the map.
	GetByIDs(ctx context.Context, ids []shared.CompetitorID) (map[shared.CompetitorID]*Competitor, error)

	// List returns all competitors, optionally filtered by region
	// (RegionNone = no filter). Ordering is unspecified.
	List(ctx context.Context, region Region) ([]*Competitor, error)

	// ListRegions returns the distinct regions with at least one competitor.
	ListRegions(ctx context.Context) ([]Region, error)

	// Count returns the total number of competitors.
	Count(ctx context.Context) (int, error)
}

// Store is the write side of the rating state: the single gateway through
// which outcome application and decay mutate competitors.
//
// Mutations are serialized per competitor at the storage layer (row lock or
// equivalent read-modify-write), so an outcome application and a decay tick
// can never interleave on one row. ApplyOutcome additionally spans all of
// an outcome's participants in a single atomic unit.
type Store interface {
	// ApplyOutcome applies every participant's deltas and appends every
	// EventResult audit row in ONE storage transaction. Either all
	// participants of the outcome are applied or none are; no partial
	// application is ever visible, even when a participant fails mid-batch.
	// Results come back in the same order as apps.
	//
	// Returns shared.ErrDuplicateResult when a result already exists for
	// (ref.EventID, participant) for any participant, leaving state
	// untouched; shared.ErrCompetitorNotFound for unknown participants;
	// shared.ErrStorageConflict for transient transactional failures that
	// are safe to retry with the same inputs.
	ApplyOutcome(ctx context.Context, ref OutcomeRef, apps []Application) ([]*EventResult, error)

	// ApplyDecay atomically applies a decay plan computed by the policy at
	// the given instant. It re-plans under the row lock so a qualifying
	// event that slipped in concurrently turns the call into a no-op.
	// Returns the number of periods actually applied (0 for a no-op).
	ApplyDecay(ctx context.Context, id shared.CompetitorID, policy DecayPolicy, now time.Time) (int, error)

	// ListResults returns the most recent event results for a competitor,
	// newest first.
	ListResults(ctx context.Context, id shared.CompetitorID, limit int) ([]*EventResult, error)

	// HasResult reports whether a result exists for (eventID, id).
	HasResult(ctx context.Context, eventID shared.EventID, id shared.CompetitorID) (bool, error)
}

// RankUpdate carries a competitor's global placement as produced by a
// standings recompute, to be written back onto the competitor row.
type RankUpdate struct {
	CompetitorID shared.CompetitorID
	GlobalRank   int
	PreviousRank int
	RPChange     float64
}
