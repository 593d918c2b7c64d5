package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

func cannedResults(id shared.CompetitorID, n int) []*rating.EventResult {
	results := make([]*rating.EventResult, n)
	for i := 0; i < n; i++ {
		results[i] = &rating.EventResult{
			EventID:      shared.EventID(testUUIDs[i%len(testUUIDs)]),
			CompetitorID: id,
			Placement:    i + 1,
			RPEarned:     50,
			RPAfter:      float64(100 + i*50),
			CreatedAt:    time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return results
}

func TestGetResults_UnknownCompetitor(t *testing.T) {
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{}}
	handler := NewGetResultsHandler(repo, &fakeResultStore{})

	// An unknown competitor is an error, not an empty history.
	_, err := handler.Handle(context.Background(), GetResultsQuery{CompetitorID: testUUIDs[0]})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetResults_ReturnsHistory(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}
	store := &fakeResultStore{
		results: map[shared.CompetitorID][]*rating.EventResult{c.ID: cannedResults(c.ID, 3)},
	}
	handler := NewGetResultsHandler(repo, store)

	result, err := handler.Handle(context.Background(), GetResultsQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, testUUIDs[0], result.CompetitorID)
	assert.Equal(t, 1, result.Results[0].Placement)
	assert.NotEmpty(t, result.Results[0].AppliedAgo)
}

func TestGetResults_LimitApplied(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}
	store := &fakeResultStore{
		results: map[shared.CompetitorID][]*rating.EventResult{c.ID: cannedResults(c.ID, 5)},
	}
	handler := NewGetResultsHandler(repo, store)

	result, err := handler.Handle(context.Background(), GetResultsQuery{CompetitorID: testUUIDs[0], Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
}

func TestGetResults_EmptyHistory(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}
	handler := NewGetResultsHandler(repo, &fakeResultStore{})

	result, err := handler.Handle(context.Background(), GetResultsQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestGetResults_NegativeLimitRejected(t *testing.T) {
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{}}
	handler := NewGetResultsHandler(repo, &fakeResultStore{})

	_, err := handler.Handle(context.Background(), GetResultsQuery{CompetitorID: testUUIDs[0], Limit: -1})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
