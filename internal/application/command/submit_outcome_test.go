package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/outcome"
	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

const (
	testEventID = "8f14e45f-ea1a-4b01-93bd-8d1c7b6f2a01"
	competitorA = "11111111-1111-4111-8111-111111111111"
	competitorB = "22222222-2222-4222-8222-222222222222"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCompetitorRepo struct {
	competitors map[shared.CompetitorID]*rating.Competitor
}

func newFakeCompetitorRepo(competitors ...*rating.Competitor) *fakeCompetitorRepo {
	repo := &fakeCompetitorRepo{competitors: make(map[shared.CompetitorID]*rating.Competitor)}
	for _, c := range competitors {
		repo.competitors[c.ID] = c
	}
	return repo
}

func (r *fakeCompetitorRepo) Create(ctx context.Context, c *rating.Competitor) error {
	if _, ok := r.competitors[c.ID]; ok {
		return shared.ErrCompetitorExists
	}
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

// fakeStore applies outcomes in memory with the store's transactional
// contract: an outcome commits for all participants or for none. failures
// is a queue of errors returned by successive ApplyOutcome calls before
// one succeeds.
type fakeStore struct {
	mu         sync.Mutex
	repo       *fakeCompetitorRepo
	applied    map[string]bool // eventID+competitorID
	results    []*rating.EventResult
	failures   []error
	applyCalls int
}

func newFakeStore(repo *fakeCompetitorRepo) *fakeStore {
	return &fakeStore{
		repo:    repo,
		applied: make(map[string]bool),
	}
}

func (s *fakeStore) failNext(errs ...error) {
	s.failures = append(s.failures, errs...)
}

func (s *fakeStore) ApplyOutcome(ctx context.Context, ref rating.OutcomeRef, apps []rating.Application) ([]*rating.EventResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyCalls++

	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}

	// All-or-nothing: validate every participant before touching state.
	for _, app := range apps {
		if s.applied[string(ref.EventID)+"/"+string(app.CompetitorID)] {
			return nil, shared.ErrDuplicateResult
		}
		if _, ok := s.repo.competitors[app.CompetitorID]; !ok {
			return nil, shared.ErrCompetitorNotFound
		}
	}

	results := make([]*rating.EventResult, 0, len(apps))
	for _, app := range apps {
		c := s.repo.competitors[app.CompetitorID]

		result := &rating.EventResult{
			EventID:      ref.EventID,
			CompetitorID: app.CompetitorID,
			Placement:    app.Placement,
			RPEarned:     app.RPDelta,
			RPBefore:     float64(c.CurrentRP),
			RPAfter:      float64(c.CurrentRP) + app.RPDelta,
			EloBefore:    float64(c.EloRating),
			EloAfter:     float64(c.EloRating) + app.EloDelta,
			CreatedAt:    ref.At,
		}
		if result.RPAfter < 0 {
			result.RPAfter = 0
			result.Clamped = true
		}

		c.CurrentRP = rating.RP(result.RPAfter)
		c.EloRating = rating.Elo(result.EloAfter)
		c.Tier = rating.TierFor(c.CurrentRP, c.EloRating)

		s.applied[string(ref.EventID)+"/"+string(app.CompetitorID)] = true
		s.results = append(s.results, result)
		results = append(results, result)
	}
	return results, nil
}

func (s *fakeStore) ApplyDecay(ctx context.Context, id shared.CompetitorID, policy rating.DecayPolicy, now time.Time) (int, error) {
	return 0, nil
}

func (s *fakeStore) ListResults(ctx context.Context, id shared.CompetitorID, limit int) ([]*rating.EventResult, error) {
	var out []*rating.EventResult
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		if s.results[i].CompetitorID == id {
			out = append(out, s.results[i])
		}
	}
	return out, nil
}

func (s *fakeStore) HasResult(ctx context.Context, eventID shared.EventID, id shared.CompetitorID) (bool, error) {
	return s.applied[string(eventID)+"/"+string(id)], nil
}

// fakeStandingsCache counts invalidations.
type fakeStandingsCache struct {
	mu            sync.Mutex
	invalidateAll int
	setCalls      int
	cachedEntries []*standings.Entry
}

func (c *fakeStandingsCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	return c.cachedEntries, nil
}

func (c *fakeStandingsCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
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

// fakePublisher captures published events.
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

func (p *fakePublisher) byType(eventType shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func newTestCompetitor(t *testing.T, id, name string, region rating.Region) *rating.Competitor {
	t.Helper()
	c, err := rating.NewCompetitor(shared.CompetitorID(id), name, rating.KindTeam, region, time.Now().UTC())
	require.NoError(t, err)
	return c
}

func newSubmitFixture(t *testing.T) (*SubmitOutcomeHandler, *fakeCompetitorRepo, *fakeStore, *fakeStandingsCache, *fakePublisher) {
	t.Helper()

	repo := newFakeCompetitorRepo(
		newTestCompetitor(t, competitorA, "Alpha", "na"),
		newTestCompetitor(t, competitorB, "Bravo", "eu"),
	)
	store := newFakeStore(repo)
	cache := &fakeStandingsCache{}
	publisher := &fakePublisher{}

	processor, err := outcome.NewProcessor(outcome.DefaultConfig())
	require.NoError(t, err)

	handler := NewSubmitOutcomeHandler(repo, store, processor, cache, publisher, nil)
	return handler, repo, store, cache, publisher
}

func twoTeamCommand() SubmitOutcomeCommand {
	return SubmitOutcomeCommand{
		EventID: testEventID,
		Tier:    string(outcome.EventTierT1),
		Type:    string(outcome.EventTypeTournament),
		Participants: []ParticipantInput{
			{CompetitorID: competitorA, Placement: 1},
			{CompetitorID: competitorB, Placement: 2},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestSubmitOutcome_HappyPath(t *testing.T) {
	handler, _, _, cache, publisher := newSubmitFixture(t)

	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	winner, loser := result.Results[0], result.Results[1]

	assert.Equal(t, shared.CompetitorID(competitorA), winner.CompetitorID)
	assert.Greater(t, winner.RPEarned, 0.0)
	assert.Greater(t, winner.EloAfter, winner.EloBefore)

	assert.Equal(t, shared.CompetitorID(competitorB), loser.CompetitorID)
	assert.Less(t, loser.EloAfter, loser.EloBefore)

	// Ratings moved, cached standings are stale.
	assert.Equal(t, 1, cache.invalidateAll)

	applied := publisher.byType(shared.EventRatingApplied)
	assert.Len(t, applied, 2)
}

func TestSubmitOutcome_ResubmissionReportsDuplicate(t *testing.T) {
	handler, _, store, cache, _ := newSubmitFixture(t)

	first, err := handler.Handle(context.Background(), twoTeamCommand())
	require.NoError(t, err)
	require.Len(t, first.Results, 2)

	// Same event again: the unique constraint rolls the replay back and
	// the caller learns it was a duplicate.
	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.Error(t, err)
	assert.True(t, shared.IsDuplicate(err))
	assert.Nil(t, result)

	// The replay applied nothing and left the first run's state intact.
	assert.Len(t, store.results, 2)
	assert.Equal(t, 1, cache.invalidateAll)
}

func TestSubmitOutcome_UnknownParticipantRejectsWholeOutcome(t *testing.T) {
	handler, _, store, _, _ := newSubmitFixture(t)

	cmd := twoTeamCommand()
	cmd.Participants[1].CompetitorID = "99999999-9999-4999-8999-999999999999"

	_, err := handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))

	// Nothing was written for the known participant either.
	assert.Empty(t, store.results)
}

func TestSubmitOutcome_InvalidTierRejected(t *testing.T) {
	handler, _, _, _, _ := newSubmitFixture(t)

	cmd := twoTeamCommand()
	cmd.Tier = "t9"

	_, err := handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestSubmitOutcome_RetriesTransientConflict(t *testing.T) {
	handler, _, store, _, _ := newSubmitFixture(t)

	// The first transaction hits a serialization conflict; the retry
	// replays the whole outcome with the same idempotency keys.
	store.failNext(shared.ErrStorageConflict)

	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 2, store.applyCalls)
}

func TestSubmitOutcome_DuplicateIsNotRetried(t *testing.T) {
	handler, _, store, _, _ := newSubmitFixture(t)

	store.failNext(shared.ErrDuplicateResult)

	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.Error(t, err)
	assert.True(t, shared.IsDuplicate(err))
	assert.Nil(t, result)

	// A duplicate is a terminal answer, not a transient failure.
	assert.Equal(t, 1, store.applyCalls)
	assert.Empty(t, store.results)
}

func TestSubmitOutcome_PermanentFailureAppliesNothing(t *testing.T) {
	handler, repo, store, cache, publisher := newSubmitFixture(t)

	winnerBefore := repo.competitors[shared.CompetitorID(competitorA)].CurrentRP

	store.failNext(shared.ErrStorageUnavailable)

	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.Error(t, err)
	assert.Nil(t, result)

	// The failed outcome committed no participant, published nothing and
	// left cached standings alone.
	assert.Empty(t, store.results)
	assert.Equal(t, winnerBefore, repo.competitors[shared.CompetitorID(competitorA)].CurrentRP)
	assert.Empty(t, publisher.events)
	assert.Equal(t, 0, cache.invalidateAll)
}

func TestSubmitOutcome_TierChangeReported(t *testing.T) {
	handler, repo, _, _, publisher := newSubmitFixture(t)

	// Park the winner just under a tier boundary so the win pushes it over.
	c := repo.competitors[shared.CompetitorID(competitorA)]
	boundary := tierBoundaryBelow(c)
	c.CurrentRP = boundary
	c.Tier = rating.TierFor(c.CurrentRP, c.EloRating)

	result, err := handler.Handle(context.Background(), twoTeamCommand())
	require.NoError(t, err)

	change, ok := result.TierChanges[competitorA]
	require.True(t, ok, "winner should have crossed a tier boundary")
	assert.Equal(t, "bronze->silver", change)
	assert.Len(t, publisher.byType(shared.EventTierChanged), 1)
}

// tierBoundaryBelow returns an RP value close enough to the next tier that a
// T1 tournament win (75 RP) crosses it.
func tierBoundaryBelow(c *rating.Competitor) rating.RP {
	current := rating.TierFor(c.CurrentRP, c.EloRating)
	for rp := c.CurrentRP; rp < c.CurrentRP+5000; rp += 10 {
		if rating.TierFor(rp, c.EloRating) != current {
			return rp - 50
		}
	}
	return c.CurrentRP
}
