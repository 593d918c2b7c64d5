package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

func newRegisteredCompetitor(t *testing.T, id string, region rating.Region) *rating.Competitor {
	t.Helper()
	c, err := rating.NewCompetitor(shared.CompetitorID(id), "Gamer", rating.KindPlayer, region, time.Now().UTC())
	require.NoError(t, err)
	return c
}

func TestGetCompetitorRating_NotFound(t *testing.T) {
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{}}
	handler := NewGetCompetitorRatingHandler(repo, &fakeStandingsRepo{}, nil, 10)

	_, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetCompetitorRating_ProvisionalFlag(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	c.GamesPlayed = 3
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}
	handler := NewGetCompetitorRatingHandler(repo, &fakeStandingsRepo{}, nil, 10)

	result, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.True(t, result.Rating.Provisional)

	c.GamesPlayed = 15
	result, err = handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.False(t, result.Rating.Provisional)
}

func TestGetCompetitorRating_RanksFromSnapshots(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], "eu")
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}

	euScope := standings.RegionScope("eu")
	standingsRepo := &fakeStandingsRepo{
		pages: map[standings.Scope][]*standings.Entry{
			standings.ScopeGlobal: {{Rank: 7, CompetitorID: c.ID, RankChange: 2}},
			euScope:               {{Rank: 3, CompetitorID: c.ID}},
		},
	}
	handler := NewGetCompetitorRatingHandler(repo, standingsRepo, nil, 10)

	result, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Rating.GlobalRank)
	assert.Equal(t, 2, result.Rating.RankChange)
	assert.Equal(t, 3, result.Rating.RegionalRank)
}

func TestGetCompetitorRating_UnrankedCompetitor(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}
	handler := NewGetCompetitorRatingHandler(repo, &fakeStandingsRepo{}, nil, 10)

	// No snapshot yet: the rating reads fine, ranks stay at zero.
	result, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Rating.GlobalRank)
	assert.Equal(t, 0, result.Rating.RegionalRank)
	assert.Equal(t, "bronze", result.Rating.Tier)
}

func TestGetCompetitorRating_CachedRankPreferred(t *testing.T) {
	c := newRegisteredCompetitor(t, testUUIDs[0], rating.RegionNone)
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{c.ID: c}}

	standingsRepo := &fakeStandingsRepo{
		pages: map[standings.Scope][]*standings.Entry{
			standings.ScopeGlobal: {{Rank: 9, CompetitorID: c.ID}},
		},
	}
	cache := &fakeStandingsCache{
		ranks: map[shared.CompetitorID]*standings.Entry{
			c.ID: {Rank: 8, CompetitorID: c.ID},
		},
	}
	handler := NewGetCompetitorRatingHandler(repo, standingsRepo, cache, 10)

	result, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{CompetitorID: testUUIDs[0]})
	require.NoError(t, err)
	assert.Equal(t, 8, result.Rating.GlobalRank)
}

func TestGetCompetitorRating_EmptyIDRejected(t *testing.T) {
	repo := &fakeCompetitorRepo{competitors: map[shared.CompetitorID]*rating.Competitor{}}
	handler := NewGetCompetitorRatingHandler(repo, &fakeStandingsRepo{}, nil, 10)

	_, err := handler.Handle(context.Background(), GetCompetitorRatingQuery{})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}
