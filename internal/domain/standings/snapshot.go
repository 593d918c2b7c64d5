package standings

import (
	"fmt"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the materialized standings of one scope at a point in time.
// Snapshots are the read model: every recompute replaces the previous
// snapshot wholesale, and rank movement is computed against it.
type Snapshot struct {
	// ID uniquely identifies the snapshot.
	ID string

	// Scope is the ranking universe this snapshot covers.
	Scope Scope

	// SnapshotAt is when the snapshot was taken.
	SnapshotAt time.Time

	// TotalCompetitors is the number of ranked competitors.
	TotalCompetitors int

	// TotalRP is the summed RP across all entries.
	TotalRP float64

	// AverageRP is the mean RP.
	AverageRP rating.RP

	// Entries holds the rows in rank order.
	Entries []*Entry

	// byID indexes entries for O(1) lookup.
	byID map[shared.CompetitorID]*Entry
}

// NewSnapshot builds a snapshot from a ranked Ranking.
func NewSnapshot(id string, scope Scope, ranking *Ranking) *Snapshot {
	if ranking == nil {
		return NewEmptySnapshot(id, scope)
	}

	entries := ranking.All()
	byID := make(map[shared.CompetitorID]*Entry, len(entries))

	var totalRP float64
	for _, entry := range entries {
		byID[entry.CompetitorID] = entry
		totalRP += float64(entry.RP)
	}

	var avgRP rating.RP
	if len(entries) > 0 {
		avgRP = rating.RP(totalRP / float64(len(entries)))
	}

	return &Snapshot{
		ID:               id,
		Scope:            scope,
		SnapshotAt:       time.Now().UTC(),
		TotalCompetitors: len(entries),
		TotalRP:          totalRP,
		AverageRP:        avgRP,
		Entries:          entries,
		byID:             byID,
	}
}

// NewEmptySnapshot creates a snapshot with no entries.
func NewEmptySnapshot(id string, scope Scope) *Snapshot {
	return &Snapshot{
		ID:         id,
		Scope:      scope,
		SnapshotAt: time.Now().UTC(),
		Entries:    make([]*Entry, 0),
		byID:       make(map[shared.CompetitorID]*Entry),
	}
}

// GetByID returns the entry for a competitor, or nil.
func (s *Snapshot) GetByID(id shared.CompetitorID) *Entry {
	if s.byID == nil {
		return nil
	}
	return s.byID[id]
}

// GetByRank returns the entry at a rank, or nil.
func (s *Snapshot) GetByRank(rank Rank) *Entry {
	if !rank.IsValid() || int(rank) > len(s.Entries) {
		return nil
	}
	// Ranks are dense, so rank N sits at index N-1.
	return s.Entries[rank-1]
}

// GetRank returns a competitor's rank, or 0 if unranked.
func (s *Snapshot) GetRank(id shared.CompetitorID) Rank {
	entry := s.GetByID(id)
	if entry == nil {
		return 0
	}
	return entry.Rank
}

// Top returns the first n entries.
func (s *Snapshot) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	result := make([]*Entry, n)
	copy(result, s.Entries[:n])
	return result
}

// Page returns one page of the standings. page starts at 1.
func (s *Snapshot) Page(page, pageSize int) []*Entry {
	if page < 1 || pageSize <= 0 {
		return nil
	}

	from := (page - 1) * pageSize
	to := from + pageSize

	if from >= len(s.Entries) {
		return nil
	}
	if to > len(s.Entries) {
		to = len(s.Entries)
	}

	result := make([]*Entry, to-from)
	copy(result, s.Entries[from:to])
	return result
}

// TotalPages returns the number of pages at the given page size.
func (s *Snapshot) TotalPages(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := len(s.Entries) / pageSize
	if len(s.Entries)%pageSize != 0 {
		pages++
	}
	return pages
}

// Neighbors returns the entries within ±rangeSize ranks of a competitor.
func (s *Snapshot) Neighbors(id shared.CompetitorID, rangeSize int) []*Entry {
	entry := s.GetByID(id)
	if entry == nil {
		return nil
	}

	idx := int(entry.Rank) - 1

	from := idx - rangeSize
	to := idx + rangeSize + 1

	if from < 0 {
		from = 0
	}
	if to > len(s.Entries) {
		to = len(s.Entries)
	}

	result := make([]*Entry, to-from)
	copy(result, s.Entries[from:to])
	return result
}

// IsEmpty returns true if the snapshot has no entries.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Count returns the number of entries.
func (s *Snapshot) Count() int {
	return len(s.Entries)
}

// Contains reports whether a competitor is ranked in this snapshot.
func (s *Snapshot) Contains(id shared.CompetitorID) bool {
	return s.GetByID(id) != nil
}

// RebuildIndex rebuilds the byID index after deserialization.
func (s *Snapshot) RebuildIndex() {
	s.byID = make(map[shared.CompetitorID]*Entry, len(s.Entries))
	for _, entry := range s.Entries {
		s.byID[entry.CompetitorID] = entry
	}
}

// String returns a compact representation for logging.
func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{ID: %s, Scope: %s, Competitors: %d, AvgRP: %.1f, At: %s}",
		s.ID, s.Scope.String(), s.TotalCompetitors, float64(s.AverageRP),
		s.SnapshotAt.Format(time.RFC3339),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT DIFF
// ══════════════════════════════════════════════════════════════════════════════

// Diff captures the differences between two consecutive snapshots of a scope.
type Diff struct {
	// OldSnapshot is the previous snapshot, nil on the first recompute.
	OldSnapshot *Snapshot

	// NewSnapshot is the freshly computed snapshot.
	NewSnapshot *Snapshot

	// RankChanges maps competitor ID to rank movement.
	RankChanges map[shared.CompetitorID]RankChange

	// NewEntries lists competitors absent from the old snapshot.
	NewEntries []*Entry

	// RemovedEntries lists competitors absent from the new snapshot.
	RemovedEntries []*Entry
}

// ComputeDiff compares two snapshots and annotates the new entries with
// PreviousRank, RankChange, and RPChange. oldSnapshot may be nil.
func ComputeDiff(oldSnapshot, newSnapshot *Snapshot) *Diff {
	diff := &Diff{
		OldSnapshot:    oldSnapshot,
		NewSnapshot:    newSnapshot,
		RankChanges:    make(map[shared.CompetitorID]RankChange),
		NewEntries:     make([]*Entry, 0),
		RemovedEntries: make([]*Entry, 0),
	}

	if newSnapshot == nil {
		return diff
	}

	if oldSnapshot == nil || oldSnapshot.IsEmpty() {
		for _, entry := range newSnapshot.Entries {
			entry.PreviousRank = 0
			entry.RankChange = 0
			diff.NewEntries = append(diff.NewEntries, entry)
		}
		return diff
	}

	for _, newEntry := range newSnapshot.Entries {
		oldEntry := oldSnapshot.GetByID(newEntry.CompetitorID)

		if oldEntry == nil {
			newEntry.PreviousRank = 0
			newEntry.RankChange = 0
			diff.NewEntries = append(diff.NewEntries, newEntry)
			continue
		}

		// Positive movement means the competitor climbed (rank 10 to 5 = +5).
		change := RankChange(int(oldEntry.Rank) - int(newEntry.Rank))
		newEntry.PreviousRank = oldEntry.Rank
		newEntry.RankChange = change
		newEntry.RPChange = float64(newEntry.RP) - float64(oldEntry.RP)
		diff.RankChanges[newEntry.CompetitorID] = change
	}

	for _, oldEntry := range oldSnapshot.Entries {
		if !newSnapshot.Contains(oldEntry.CompetitorID) {
			diff.RemovedEntries = append(diff.RemovedEntries, oldEntry)
		}
	}

	return diff
}

// GetRankChange returns a competitor's rank movement.
func (d *Diff) GetRankChange(id shared.CompetitorID) RankChange {
	return d.RankChanges[id]
}

// HasChanges reports whether anything moved between the snapshots.
func (d *Diff) HasChanges() bool {
	return len(d.RankChanges) > 0 || len(d.NewEntries) > 0 || len(d.RemovedEntries) > 0
}

// Climbed returns the competitors whose rank improved.
func (d *Diff) Climbed() []shared.CompetitorID {
	result := make([]shared.CompetitorID, 0)
	for id, change := range d.RankChanges {
		if change > 0 {
			result = append(result, id)
		}
	}
	return result
}

// Dropped returns the competitors whose rank worsened.
func (d *Diff) Dropped() []shared.CompetitorID {
	result := make([]shared.CompetitorID, 0)
	for id, change := range d.RankChanges {
		if change < 0 {
			result = append(result, id)
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT METADATA
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotMeta carries snapshot header data without the entries.
type SnapshotMeta struct {
	ID               string
	Scope            Scope
	SnapshotAt       time.Time
	TotalCompetitors int
	TotalRP          float64
	AverageRP        rating.RP
}

// ToMeta extracts the metadata of a snapshot.
func (s *Snapshot) ToMeta() SnapshotMeta {
	return SnapshotMeta{
		ID:               s.ID,
		Scope:            s.Scope,
		SnapshotAt:       s.SnapshotAt,
		TotalCompetitors: s.TotalCompetitors,
		TotalRP:          s.TotalRP,
		AverageRP:        s.AverageRP,
	}
}
