// Package rating contains the rating-bearing domain model of the Pro-Am
// Global Rankings Hub: competitors (players and teams), their ranking points
// and Elo ratings, leaderboard tiers, and the decay policy for inactivity.
// Players and teams are structurally identical rating subjects, so a single
// Competitor entity covers both.
package rating

import (
	"fmt"
	"strings"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Kind distinguishes the two competitor flavours. Rating semantics are
// identical for both; the kind only matters to the read surface.
type Kind string

const (
	// KindPlayer is an individual player profile.
	KindPlayer Kind = "player"
	// KindTeam is a team profile.
	KindTeam Kind = "team"
)

// IsValid checks that the kind is one of the known values.
func (k Kind) IsValid() bool {
	return k == KindPlayer || k == KindTeam
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Region identifies the regional ranking scope a competitor belongs to
// (e.g. "na", "eu", "apac"). An empty region means the competitor is only
// ranked globally.
type Region string

// RegionNone marks a competitor without a regional scope.
const RegionNone Region = ""

// IsValid checks the region label length.
func (r Region) IsValid() bool {
	if r == RegionNone {
		return true
	}
	s := string(r)
	return len(s) >= 2 && len(s) <= 20
}

// String returns the string representation.
func (r Region) String() string {
	if r == RegionNone {
		return "none"
	}
	return string(r)
}

// RP represents ranking points, the primary score driving tier and rank.
// RP is never negative: outcome application clamps at zero.
type RP float64

// IsValid checks that RP is non-negative.
func (rp RP) IsValid() bool {
	return rp >= 0
}

// Float64 returns the underlying value.
func (rp RP) Float64() float64 {
	return float64(rp)
}

// Add applies a delta, clamping the result at zero. The second return value
// is true when the clamp changed the naive sum.
func (rp RP) Add(delta float64) (RP, bool) {
	sum := float64(rp) + delta
	if sum < 0 {
		return 0, true
	}
	return RP(sum), false
}

// Elo represents a pairwise-comparison skill estimate. New competitors start
// at EloBaseline; the value is kept non-negative by invariant.
type Elo float64

// EloBaseline is the initial Elo rating for newly registered competitors.
const EloBaseline Elo = 1500.0

// IsValid checks that the rating is non-negative.
func (e Elo) IsValid() bool {
	return e >= 0
}

// Float64 returns the underlying value.
func (e Elo) Float64() float64 {
	return float64(e)
}

// Add applies a delta, clamping at zero.
func (e Elo) Add(delta float64) Elo {
	sum := float64(e) + delta
	if sum < 0 {
		return 0
	}
	return Elo(sum)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITOR
// ══════════════════════════════════════════════════════════════════════════════

// Competitor is the aggregate holding per-entity rating state. All rating
// mutations flow through outcome application or decay; tier and rank are
// derived fields that are never set directly by a client.
type Competitor struct {
	// ID is the unique identifier (UUID).
	ID shared.CompetitorID

	// Name is the gamertag (players) or team name.
	Name string

	// Kind is player or team.
	Kind Kind

	// Region is the regional ranking scope, if any.
	Region Region

	// CurrentRP is the competitor's ranking points.
	CurrentRP RP

	// EloRating is the competitor's Elo skill estimate.
	EloRating Elo

	// Tier is the leaderboard tier derived from CurrentRP/EloRating.
	// Refreshed whenever a rating change commits.
	Tier Tier

	// GlobalRank is the dense rank within the global scope, 0 when unranked.
	GlobalRank int

	// PreviousRank is the rank at the previous standings recompute.
	PreviousRank int

	// RPChange is the RP delta since the previous standings recompute.
	RPChange float64

	// GamesPlayed counts applied event results; drives the provisional
	// K-factor for Elo convergence.
	GamesPlayed int

	// LastEventAt is the timestamp of the most recent qualifying event.
	// Initialized to the registration time so decay has a baseline.
	LastEventAt time.Time

	// LastDecayAt is when decay last touched this competitor. Zero until
	// the first decay application.
	LastDecayAt time.Time

	// Timestamps
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCompetitor registers a competitor with baseline rating state.
func NewCompetitor(id shared.CompetitorID, name string, kind Kind, region Region, now time.Time) (*Competitor, error) {
	if !id.IsValid() {
		return nil, shared.ErrInvalidID
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.WrapError("rating", "NewCompetitor", shared.ErrEmptyValue, "name is required", nil)
	}
	if !kind.IsValid() {
		return nil, shared.WrapError("rating", "NewCompetitor", shared.ErrInvalidInput, fmt.Sprintf("unknown kind %q", kind), nil)
	}
	if !region.IsValid() {
		return nil, shared.WrapError("rating", "NewCompetitor", shared.ErrInvalidInput, fmt.Sprintf("invalid region %q", region), nil)
	}

	return &Competitor{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Region:      region,
		CurrentRP:   0,
		EloRating:   EloBaseline,
		Tier:        TierFor(0, EloBaseline),
		LastEventAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate checks the aggregate invariants.
func (c *Competitor) Validate() error {
	if !c.ID.IsValid() {
		return shared.ErrInvalidID
	}
	if !c.CurrentRP.IsValid() {
		return shared.ErrNegativeRating
	}
	if !c.EloRating.IsValid() {
		return shared.ErrNegativeRating
	}
	if !c.Kind.IsValid() || !c.Region.IsValid() {
		return shared.ErrInvalidCompetitor
	}
	return nil
}

// IsProvisional reports whether the competitor still gets the accelerated
// K-factor for fast Elo convergence.
func (c *Competitor) IsProvisional(provisionalGames int) bool {
	return c.GamesPlayed < provisionalGames
}

// IsRanked reports whether the competitor currently holds a global rank.
func (c *Competitor) IsRanked() bool {
	return c.GlobalRank > 0
}

// ApplyResult mutates rating state for one applied event result and refreshes
// the tier. Returns the RP value after clamping and whether the clamp fired.
// Persistence wraps this in a per-competitor transaction; the method itself
// carries no locking.
func (c *Competitor) ApplyResult(rpDelta, eloDelta float64, at time.Time) (RP, bool) {
	newRP, clamped := c.CurrentRP.Add(rpDelta)
	c.CurrentRP = newRP
	c.EloRating = c.EloRating.Add(eloDelta)
	c.Tier = TierFor(c.CurrentRP, c.EloRating)
	c.GamesPlayed++
	c.LastEventAt = at
	c.UpdatedAt = at
	return newRP, clamped
}

// ApplyDecay reduces RP by the given multiplicative factor and refreshes the
// tier. Decay never raises RP and never touches Elo; a factor outside (0,1]
// is rejected.
func (c *Competitor) ApplyDecay(factor float64, at time.Time) error {
	if factor <= 0 || factor > 1 {
		return shared.WrapError("rating", "ApplyDecay", shared.ErrValueOutOfRange,
			fmt.Sprintf("decay factor %.4f outside (0,1]", factor), nil)
	}
	c.CurrentRP = RP(float64(c.CurrentRP) * factor)
	c.Tier = TierFor(c.CurrentRP, c.EloRating)
	c.LastDecayAt = at
	c.UpdatedAt = at
	return nil
}

// Clone returns a copy of the competitor.
func (c *Competitor) Clone() *Competitor {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a compact representation for logging.
func (c *Competitor) String() string {
	return fmt.Sprintf("Competitor{ID: %s, Name: %s, RP: %.1f, Elo: %.1f, Tier: %s}",
		c.ID, c.Name, float64(c.CurrentRP), float64(c.EloRating), c.Tier)
}
