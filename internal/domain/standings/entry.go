// Package standings contains the standings domain model: ranked scopes,
// snapshots, and the full recompute that derives dense ranks and rank deltas
// from the current rating state. Rankings are relative, so a scope is always
// recomputed in a single pass over all of its competitors; there is no
// incremental path.
package standings

import (
	"fmt"
	"sort"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Scope names one ranking universe: the global leaderboard or one region.
type Scope string

// ScopeGlobal is the all-regions leaderboard.
const ScopeGlobal Scope = "global"

// RegionScope returns the scope for a regional leaderboard.
func RegionScope(region rating.Region) Scope {
	return Scope("region:" + string(region))
}

// IsValid checks the scope label.
func (s Scope) IsValid() bool {
	if s == ScopeGlobal {
		return true
	}
	str := string(s)
	return len(str) > len("region:") && str[:len("region:")] == "region:"
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s == ScopeGlobal
}

// Region returns the region of a regional scope, or RegionNone for global.
func (s Scope) Region() rating.Region {
	if s.IsGlobal() || !s.IsValid() {
		return rating.RegionNone
	}
	return rating.Region(string(s)[len("region:"):])
}

// String returns the string representation.
func (s Scope) String() string {
	return string(s)
}

// Rank is a position in the standings. Ranks are dense: 1..N with no gaps
// and no shared values; ties on RP are broken by Elo descending, then by ID
// ascending, so the ordering is total.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// Int returns the underlying value.
func (r Rank) Int() int {
	return int(r)
}

// IsTop returns true if the rank is within the top n.
func (r Rank) IsTop(n int) bool {
	return r >= 1 && int(r) <= n
}

// String returns the string representation.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// RankChange is the movement since the previous recompute.
// Positive = climbed, negative = dropped.
type RankChange int

// Abs returns the absolute movement.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// String returns a signed representation.
func (rc RankChange) String() string {
	switch {
	case rc > 0:
		return fmt.Sprintf("+%d", rc)
	case rc < 0:
		return fmt.Sprintf("%d", rc)
	default:
		return "±0"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one row of the standings for a scope.
type Entry struct {
	// Rank is the dense position within the scope.
	Rank Rank

	// CompetitorID identifies the competitor.
	CompetitorID shared.CompetitorID

	// Name is the competitor's display name.
	Name string

	// Kind is player or team.
	Kind rating.Kind

	// Region is the competitor's regional scope.
	Region rating.Region

	// RP and Elo are the rating state the rank was derived from.
	RP  rating.RP
	Elo rating.Elo

	// Tier is the leaderboard tier at snapshot time.
	Tier rating.Tier

	// PreviousRank is the rank in the previous snapshot, 0 if new.
	PreviousRank Rank

	// RankChange is the movement since the previous snapshot.
	RankChange RankChange

	// RPChange is the RP delta since the previous snapshot.
	RPChange float64
}

// NewEntry builds a standings entry from a competitor's rating state.
// The rank is assigned later by the ranking pass.
func NewEntry(c *rating.Competitor) *Entry {
	return &Entry{
		CompetitorID: c.ID,
		Name:         c.Name,
		Kind:         c.Kind,
		Region:       c.Region,
		RP:           c.CurrentRP,
		Elo:          c.EloRating,
		Tier:         c.Tier,
	}
}

// IsNew reports whether the competitor had no rank in the previous snapshot.
func (e *Entry) IsNew() bool {
	return e.PreviousRank == 0
}

// Clone returns a copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String returns a compact representation for logging.
func (e *Entry) String() string {
	return fmt.Sprintf("Entry{Rank: %d, Name: %s, RP: %.1f, Change: %s}",
		e.Rank, e.Name, float64(e.RP), e.RankChange.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (ordered full-scope pass)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking accumulates the entries of one scope and assigns dense ranks.
type Ranking struct {
	entries []*Entry
	byID    map[shared.CompetitorID]*Entry
}

// NewRanking creates an empty Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.CompetitorID]*Entry),
	}
}

// Add appends an entry (ranks are assigned by Sort).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return shared.WrapError("standings", "Add", shared.ErrInvalidInput, "nil entry", nil)
	}
	if _, exists := r.byID[entry.CompetitorID]; exists {
		return shared.WrapError("standings", "Add", shared.ErrAlreadyExists,
			fmt.Sprintf("competitor %s already ranked", entry.CompetitorID), nil)
	}
	r.entries = append(r.entries, entry)
	r.byID[entry.CompetitorID] = entry
	return nil
}

// Sort orders the entries by (RP desc, Elo desc, ID asc) and assigns dense
// ranks 1..N. The ID tie-break guarantees a total order, so equal ratings
// never share a rank value.
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.RP != b.RP {
			return a.RP > b.RP
		}
		if a.Elo != b.Elo {
			return a.Elo > b.Elo
		}
		return a.CompetitorID < b.CompetitorID
	})

	for i, entry := range r.entries {
		entry.Rank = Rank(i + 1)
	}
}

// GetByID returns an entry by competitor ID, or nil.
func (r *Ranking) GetByID(id shared.CompetitorID) *Entry {
	return r.byID[id]
}

// Count returns the number of entries.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// All returns the entries in rank order.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// BuildRanking ranks a set of competitors for a scope: regional scopes only
// include their region's competitors, the global scope includes everyone.
func BuildRanking(scope Scope, competitors []*rating.Competitor) *Ranking {
	ranking := NewRanking()
	region := scope.Region()

	for _, c := range competitors {
		if !scope.IsGlobal() && c.Region != region {
			continue
		}
		// Duplicate IDs cannot occur in a repository listing.
		_ = ranking.Add(NewEntry(c))
	}

	ranking.Sort()
	return ranking
}

// SnapshotID generates a snapshot identifier.
func SnapshotID() string {
	return fmt.Sprintf("snap-%d", time.Now().UnixNano())
}
