package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

var testIDs = []string{
	"11111111-1111-4111-8111-111111111111",
	"22222222-2222-4222-8222-222222222222",
	"33333333-3333-4333-8333-333333333333",
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCompetitorRepo struct {
	competitors []*rating.Competitor
}

func (r *fakeCompetitorRepo) Create(ctx context.Context, c *rating.Competitor) error {
	r.competitors = append(r.competitors, c)
	return nil
}

func (r *fakeCompetitorRepo) GetByID(ctx context.Context, id shared.CompetitorID) (*rating.Competitor, error) {
	for _, c := range r.competitors {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.ErrCompetitorNotFound
}

func (r *fakeCompetitorRepo) GetByIDs(ctx context.Context, ids []shared.CompetitorID) (map[shared.CompetitorID]*rating.Competitor, error) {
	found := make(map[shared.CompetitorID]*rating.Competitor)
	for _, c := range r.competitors {
		for _, id := range ids {
			if c.ID == id {
				found[id] = c
			}
		}
	}
	return found, nil
}

func (r *fakeCompetitorRepo) List(ctx context.Context, region rating.Region) ([]*rating.Competitor, error) {
	if region == rating.RegionNone {
		return r.competitors, nil
	}
	var out []*rating.Competitor
	for _, c := range r.competitors {
		if c.Region == region {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCompetitorRepo) ListRegions(ctx context.Context) ([]rating.Region, error) {
	seen := make(map[rating.Region]bool)
	var out []rating.Region
	for _, c := range r.competitors {
		if c.Region != rating.RegionNone && !seen[c.Region] {
			seen[c.Region] = true
			out = append(out, c.Region)
		}
	}
	return out, nil
}

func (r *fakeCompetitorRepo) Count(ctx context.Context) (int, error) {
	return len(r.competitors), nil
}

// fakeDecayStore applies the decay plan to the in-memory competitor.
type fakeDecayStore struct {
	repo       *fakeCompetitorRepo
	decayCalls int
}

func (s *fakeDecayStore) ApplyOutcome(ctx context.Context, ref rating.OutcomeRef, apps []rating.Application) ([]*rating.EventResult, error) {
	return nil, shared.ErrStorageUnavailable
}

func (s *fakeDecayStore) ApplyDecay(ctx context.Context, id shared.CompetitorID, policy rating.DecayPolicy, now time.Time) (int, error) {
	s.decayCalls++
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	plan := policy.PlanFor(c, now)
	if plan.IsNoop() {
		return 0, nil
	}
	c.CurrentRP = rating.RP(float64(c.CurrentRP) * plan.Factor)
	c.LastDecayAt = now
	return plan.Periods, nil
}

func (s *fakeDecayStore) ListResults(ctx context.Context, id shared.CompetitorID, limit int) ([]*rating.EventResult, error) {
	return nil, nil
}

func (s *fakeDecayStore) HasResult(ctx context.Context, eventID shared.EventID, id shared.CompetitorID) (bool, error) {
	return false, nil
}

// fakeStandingsRepo keeps the latest snapshot per scope.
type fakeStandingsRepo struct {
	mu        sync.Mutex
	latest    map[standings.Scope]*standings.Snapshot
	deleted   int
	saveCalls int
}

func newFakeStandingsRepo() *fakeStandingsRepo {
	return &fakeStandingsRepo{latest: make(map[standings.Scope]*standings.Snapshot)}
}

func (r *fakeStandingsRepo) SaveSnapshot(ctx context.Context, snapshot *standings.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[snapshot.Scope] = snapshot
	r.saveCalls++
	return nil
}

func (r *fakeStandingsRepo) GetLatestSnapshot(ctx context.Context, scope standings.Scope) (*standings.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot, ok := r.latest[scope]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (r *fakeStandingsRepo) GetSnapshotByID(ctx context.Context, id string) (*standings.Snapshot, error) {
	return nil, shared.ErrSnapshotNotFound
}

func (r *fakeStandingsRepo) ListSnapshots(ctx context.Context, scope standings.Scope, from, to time.Time) ([]standings.SnapshotMeta, error) {
	return nil, nil
}

func (r *fakeStandingsRepo) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	r.deleted++
	return 0, nil
}

func (r *fakeStandingsRepo) GetCompetitorRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	return nil, nil
}

func (r *fakeStandingsRepo) GetPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	return nil, nil
}

func (r *fakeStandingsRepo) GetTotalCount(ctx context.Context, scope standings.Scope) (int, error) {
	return 0, nil
}

type fakeStandingsCache struct {
	mu            sync.Mutex
	setScopes     []standings.Scope
	invalidateAll int
}

func (c *fakeStandingsCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	return nil, nil
}

func (c *fakeStandingsCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setScopes = append(c.setScopes, scope)
	return nil
}

func (c *fakeStandingsCache) GetCachedRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	return nil, nil
}

func (c *fakeStandingsCache) Invalidate(ctx context.Context, scope standings.Scope) error {
	return nil
}

func (c *fakeStandingsCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateAll++
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) countByType(eventType shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

func makeCompetitor(t *testing.T, id string, region rating.Region, rp float64, lastEventAt time.Time) *rating.Competitor {
	t.Helper()
	c, err := rating.NewCompetitor(shared.CompetitorID(id), "Competitor "+id[:4], rating.KindTeam, region, lastEventAt)
	require.NoError(t, err)
	c.CurrentRP = rating.RP(rp)
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DECAY TICK JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestDecayTickJob_DecaysStaleCompetitors(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{
		// Inactive for 30 days: two full 14-day windows elapsed.
		makeCompetitor(t, testIDs[0], "na", 1000, now.Add(-30*24*time.Hour)),
		// Active yesterday: untouched.
		makeCompetitor(t, testIDs[1], "na", 800, now.Add(-24*time.Hour)),
	}}
	store := &fakeDecayStore{repo: repo}
	cache := &fakeStandingsCache{}
	publisher := &fakePublisher{}

	job := NewDecayTickJob(repo, store, cache, publisher, nil, DefaultDecayTickConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastTickStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 1, stats.Decayed)
	assert.Equal(t, 2, stats.PeriodsApplied)
	assert.InDelta(t, 1000-1000*0.9*0.9, stats.TotalRPLost, 0.001)

	// Only the stale competitor reached the store.
	assert.Equal(t, 1, store.decayCalls)
	assert.InDelta(t, 810, float64(repo.competitors[0].CurrentRP), 0.001)
	assert.InDelta(t, 800, float64(repo.competitors[1].CurrentRP), 0.001)

	assert.Equal(t, 1, cache.invalidateAll)
	assert.Equal(t, 1, publisher.countByType(shared.EventRatingDecayed))
	assert.Equal(t, 1, publisher.countByType(shared.EventDecayTickCompleted))
}

func TestDecayTickJob_SecondTickIsNoop(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{
		makeCompetitor(t, testIDs[0], "na", 1000, now.Add(-20*24*time.Hour)),
	}}
	store := &fakeDecayStore{repo: repo}
	cache := &fakeStandingsCache{}

	job := NewDecayTickJob(repo, store, cache, nil, nil, DefaultDecayTickConfig())
	require.NoError(t, job.Run(context.Background()))
	rpAfterFirst := float64(repo.competitors[0].CurrentRP)
	assert.InDelta(t, 900, rpAfterFirst, 0.001)

	// Same clock, same elapsed periods: nothing left to apply.
	require.NoError(t, job.Run(context.Background()))
	assert.InDelta(t, rpAfterFirst, float64(repo.competitors[0].CurrentRP), 0.001)
	assert.Equal(t, 0, job.LastTickStats().Decayed)
	assert.Equal(t, 1, cache.invalidateAll, "noop tick must not invalidate the cache")
}

func TestDecayTickJob_AllFreshCompetitors(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{
		makeCompetitor(t, testIDs[0], "na", 1000, now.Add(-time.Hour)),
		makeCompetitor(t, testIDs[1], "eu", 500, now.Add(-13*24*time.Hour)),
	}}
	store := &fakeDecayStore{repo: repo}
	publisher := &fakePublisher{}

	job := NewDecayTickJob(repo, store, nil, publisher, nil, DefaultDecayTickConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastTickStats()
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 0, stats.Decayed)
	assert.Equal(t, 0, store.decayCalls)
	// The tick summary still fires on a quiet run.
	assert.Equal(t, 1, publisher.countByType(shared.EventDecayTickCompleted))
}

func TestDecayTickJob_InvalidPolicyFallsBackToDefault(t *testing.T) {
	repo := &fakeCompetitorRepo{}
	store := &fakeDecayStore{repo: repo}

	config := DecayTickConfig{Policy: rating.DecayPolicy{Window: 0, Rate: 5}}
	job := NewDecayTickJob(repo, store, nil, nil, nil, config)

	assert.Equal(t, rating.DefaultDecayPolicy(), job.config.Policy)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STANDINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestRecomputeStandingsJob_BuildsGlobalAndRegionalSnapshots(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{
		makeCompetitor(t, testIDs[0], "na", 1000, now),
		makeCompetitor(t, testIDs[1], "na", 800, now),
		makeCompetitor(t, testIDs[2], "eu", 900, now),
	}}
	standingsRepo := newFakeStandingsRepo()
	cache := &fakeStandingsCache{}
	publisher := &fakePublisher{}

	job := NewRecomputeStandingsJob(repo, standingsRepo, cache, publisher, nil, DefaultRecomputeStandingsConfig())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRecomputeStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalCompetitors)
	assert.Equal(t, 3, stats.ScopesProcessed) // global + na + eu
	assert.Equal(t, 3, stats.SnapshotsCreated)
	assert.Equal(t, 3, stats.NewEntrants, "first recompute ranks everyone as new")

	global, err := standingsRepo.GetLatestSnapshot(context.Background(), standings.ScopeGlobal)
	require.NoError(t, err)
	require.Equal(t, 3, global.TotalCompetitors)
	assert.Equal(t, standings.Rank(1), global.Entries[0].Rank)
	assert.Equal(t, shared.CompetitorID(testIDs[0]), global.Entries[0].CompetitorID)

	na, err := standingsRepo.GetLatestSnapshot(context.Background(), standings.RegionScope("na"))
	require.NoError(t, err)
	assert.Equal(t, 2, na.TotalCompetitors)

	// Every scope got cached and announced.
	assert.Len(t, cache.setScopes, 3)
	assert.Equal(t, 3, publisher.countByType(shared.EventStandingsRecomputed))
}

func TestRecomputeStandingsJob_RankMovementEvents(t *testing.T) {
	now := time.Now().UTC()
	a := makeCompetitor(t, testIDs[0], "na", 1000, now)
	b := makeCompetitor(t, testIDs[1], "na", 800, now)
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{a, b}}
	standingsRepo := newFakeStandingsRepo()
	publisher := &fakePublisher{}

	config := DefaultRecomputeStandingsConfig()
	config.MinRankChangeForEvent = 1

	job := NewRecomputeStandingsJob(repo, standingsRepo, nil, publisher, nil, config)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, publisher.countByType(shared.EventRankChanged))

	// B overtakes A before the next recompute.
	b.CurrentRP = 1200
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRecomputeStats()
	assert.Equal(t, 4, stats.RankChangesFound, "both competitors moved in both scopes")
	assert.Greater(t, publisher.countByType(shared.EventRankChanged), 0)

	global, err := standingsRepo.GetLatestSnapshot(context.Background(), standings.ScopeGlobal)
	require.NoError(t, err)
	top := global.Entries[0]
	assert.Equal(t, b.ID, top.CompetitorID)
	assert.Equal(t, standings.Rank(2), top.PreviousRank)
	assert.Equal(t, standings.RankChange(1), top.RankChange)
	assert.InDelta(t, 400, top.RPChange, 0.001)
}

func TestRecomputeStandingsJob_SmallMovementsStaySilent(t *testing.T) {
	now := time.Now().UTC()
	a := makeCompetitor(t, testIDs[0], rating.RegionNone, 1000, now)
	b := makeCompetitor(t, testIDs[1], rating.RegionNone, 800, now)
	repo := &fakeCompetitorRepo{competitors: []*rating.Competitor{a, b}}
	publisher := &fakePublisher{}

	// Default threshold is 3; a one-place swap stays below it.
	job := NewRecomputeStandingsJob(repo, newFakeStandingsRepo(), nil, publisher, nil, DefaultRecomputeStandingsConfig())
	require.NoError(t, job.Run(context.Background()))

	b.CurrentRP = 1200
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 0, publisher.countByType(shared.EventRankChanged))
	assert.Greater(t, job.LastRecomputeStats().RankChangesFound, 0)
}

// fakeRankWriterRepo mirrors rank write-back onto the in-memory competitors
// like the Postgres repository does onto rows.
type fakeRankWriterRepo struct {
	fakeCompetitorRepo
	mu      sync.Mutex
	updates [][]rating.RankUpdate
}

func (r *fakeRankWriterRepo) UpdateRanks(ctx context.Context, updates []rating.RankUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := make([]rating.RankUpdate, len(updates))
	copy(copied, updates)
	r.updates = append(r.updates, copied)

	for _, u := range updates {
		for _, c := range r.competitors {
			if c.ID == u.CompetitorID {
				c.GlobalRank = u.GlobalRank
				c.PreviousRank = u.PreviousRank
				c.RPChange = u.RPChange
			}
		}
	}
	return nil
}

func TestRecomputeStandingsJob_WritesGlobalRanksBack(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRankWriterRepo{fakeCompetitorRepo: fakeCompetitorRepo{competitors: []*rating.Competitor{
		makeCompetitor(t, testIDs[0], "na", 900, now),
		makeCompetitor(t, testIDs[1], "eu", 700, now),
	}}}

	job := NewRecomputeStandingsJob(repo, newFakeStandingsRepo(), nil, nil, nil, DefaultRecomputeStandingsConfig())
	require.NoError(t, job.Run(context.Background()))

	// Only the global scope writes ranks back, once per run.
	require.Len(t, repo.updates, 1)
	require.Len(t, repo.updates[0], 2)

	leader, err := repo.GetByID(context.Background(), shared.CompetitorID(testIDs[0]))
	require.NoError(t, err)
	assert.Equal(t, 1, leader.GlobalRank)
	assert.True(t, leader.IsRanked())

	second, err := repo.GetByID(context.Background(), shared.CompetitorID(testIDs[1]))
	require.NoError(t, err)
	assert.Equal(t, 2, second.GlobalRank)
	assert.Equal(t, 0, second.PreviousRank, "first recompute has no previous rank")
}

func TestRecomputeStandingsJob_SnapshotRetention(t *testing.T) {
	repo := &fakeCompetitorRepo{}
	standingsRepo := newFakeStandingsRepo()

	config := DefaultRecomputeStandingsConfig()
	config.SnapshotRetentionDays = 7

	job := NewRecomputeStandingsJob(repo, standingsRepo, nil, nil, nil, config)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, standingsRepo.deleted)

	config.SnapshotRetentionDays = 0
	job = NewRecomputeStandingsJob(repo, standingsRepo, nil, nil, nil, config)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, standingsRepo.deleted, "retention disabled skips the cleanup")
}

func TestJobMetadata(t *testing.T) {
	decay := NewDecayTickJob(&fakeCompetitorRepo{}, &fakeDecayStore{}, nil, nil, nil, DefaultDecayTickConfig())
	assert.Equal(t, "decay_tick", decay.Name())
	assert.NotEmpty(t, decay.Description())

	recompute := NewRecomputeStandingsJob(&fakeCompetitorRepo{}, newFakeStandingsRepo(), nil, nil, nil, DefaultRecomputeStandingsConfig())
	assert.Equal(t, "recompute_standings", recompute.Name())
	assert.NotEmpty(t, recompute.Description())
}
