package query

import (
	"context"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCompetitorRepo struct {
	competitors map[shared.CompetitorID]*rating.Competitor
}

func (r *fakeCompetitorRepo) Create(ctx context.Context, c *rating.Competitor) error {
	r.competitors[c.ID] = c
	return nil
}

func (r *fakeCompetitorRepo) GetByID(ctx context.Context, id shared.CompetitorID) (*rating.Competitor, error) {
	c, ok := r.competitors[id]
	if !ok {
		return nil, shared.ErrCompetitorNotFound
	}
	return c, nil
}

func (r *fakeCompetitorRepo) GetByIDs(ctx context.Context, ids []shared.CompetitorID) (map[shared.CompetitorID]*rating.Competitor, error) {
	found := make(map[shared.CompetitorID]*rating.Competitor)
	for _, id := range ids {
		if c, ok := r.competitors[id]; ok {
			found[id] = c
		}
	}
	return found, nil
}

func (r *fakeCompetitorRepo) List(ctx context.Context, region rating.Region) ([]*rating.Competitor, error) {
	var out []*rating.Competitor
	for _, c := range r.competitors {
		if region == rating.RegionNone || c.Region == region {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCompetitorRepo) ListRegions(ctx context.Context) ([]rating.Region, error) {
	return nil, nil
}

func (r *fakeCompetitorRepo) Count(ctx context.Context) (int, error) {
	return len(r.competitors), nil
}

// fakeResultStore serves a canned result history.
type fakeResultStore struct {
	results map[shared.CompetitorID][]*rating.EventResult
}

func (s *fakeResultStore) ApplyOutcome(ctx context.Context, ref rating.OutcomeRef, apps []rating.Application) ([]*rating.EventResult, error) {
	return nil, shared.ErrStorageUnavailable
}

func (s *fakeResultStore) ApplyDecay(ctx context.Context, id shared.CompetitorID, policy rating.DecayPolicy, now time.Time) (int, error) {
	return 0, nil
}

func (s *fakeResultStore) ListResults(ctx context.Context, id shared.CompetitorID, limit int) ([]*rating.EventResult, error) {
	results := s.results[id]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *fakeResultStore) HasResult(ctx context.Context, eventID shared.EventID, id shared.CompetitorID) (bool, error) {
	return false, nil
}

// fakeStandingsRepo serves one page of entries per scope.
type fakeStandingsRepo struct {
	pages     map[standings.Scope][]*standings.Entry
	counts    map[standings.Scope]int
	pageCalls int
}

func (r *fakeStandingsRepo) SaveSnapshot(ctx context.Context, snapshot *standings.Snapshot) error {
	return nil
}

func (r *fakeStandingsRepo) GetLatestSnapshot(ctx context.Context, scope standings.Scope) (*standings.Snapshot, error) {
	return nil, shared.ErrSnapshotNotFound
}

func (r *fakeStandingsRepo) GetSnapshotByID(ctx context.Context, id string) (*standings.Snapshot, error) {
	return nil, shared.ErrSnapshotNotFound
}

func (r *fakeStandingsRepo) ListSnapshots(ctx context.Context, scope standings.Scope, from, to time.Time) ([]standings.SnapshotMeta, error) {
	return nil, nil
}

func (r *fakeStandingsRepo) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (r *fakeStandingsRepo) GetCompetitorRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	for _, entry := range r.pages[scope] {
		if entry.CompetitorID == id {
			return entry, nil
		}
	}
	return nil, nil
}

func (r *fakeStandingsRepo) GetPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	r.pageCalls++
	entries := r.pages[scope]
	offset := (page - 1) * pageSize
	if offset >= len(entries) {
		return nil, nil
	}
	end := offset + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], nil
}

func (r *fakeStandingsRepo) GetTotalCount(ctx context.Context, scope standings.Scope) (int, error) {
	return r.counts[scope], nil
}

// fakeStandingsCache serves one cached page, or misses when empty.
type fakeStandingsCache struct {
	page     []*standings.Entry
	ranks    map[shared.CompetitorID]*standings.Entry
	getCalls int
}

func (c *fakeStandingsCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	c.getCalls++
	return c.page, nil
}

func (c *fakeStandingsCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	return nil
}

func (c *fakeStandingsCache) GetCachedRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	return c.ranks[id], nil
}

func (c *fakeStandingsCache) Invalidate(ctx context.Context, scope standings.Scope) error {
	return nil
}

func (c *fakeStandingsCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// makeEntries builds n ranked entries for a scope.
func makeEntries(n int, region rating.Region) []*standings.Entry {
	entries := make([]*standings.Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = &standings.Entry{
			Rank:         standings.Rank(i + 1),
			CompetitorID: shared.CompetitorID(testUUIDs[i%len(testUUIDs)]),
			Name:         "Competitor",
			Kind:         rating.KindTeam,
			Region:       region,
			RP:           rating.RP(1000 - i*10),
			Elo:          1500,
			Tier:         rating.TierGold,
		}
	}
	return entries
}

var testUUIDs = []string{
	"11111111-1111-4111-8111-111111111111",
	"22222222-2222-4222-8222-222222222222",
	"33333333-3333-4333-8333-333333333333",
	"44444444-4444-4444-8444-444444444444",
	"55555555-5555-4555-8555-555555555555",
}
