package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

func TestGetStandings_CacheHit(t *testing.T) {
	cache := &fakeStandingsCache{page: makeEntries(3, rating.RegionNone)}
	repo := &fakeStandingsRepo{
		counts: map[standings.Scope]int{standings.ScopeGlobal: 3},
	}
	handler := NewGetStandingsHandler(repo, cache, nil)

	result, err := handler.Handle(context.Background(), GetStandingsQuery{})
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.Len(t, result.Entries, 3)
	assert.Equal(t, 0, repo.pageCalls, "cached page must not touch the snapshot store")
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, "global", result.Scope)
}

func TestGetStandings_CacheMissFallsThroughToSnapshot(t *testing.T) {
	cache := &fakeStandingsCache{} // cold
	repo := &fakeStandingsRepo{
		pages:  map[standings.Scope][]*standings.Entry{standings.ScopeGlobal: makeEntries(5, rating.RegionNone)},
		counts: map[standings.Scope]int{standings.ScopeGlobal: 5},
	}
	handler := NewGetStandingsHandler(repo, cache, nil)

	result, err := handler.Handle(context.Background(), GetStandingsQuery{})
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, 1, repo.pageCalls)
	assert.Len(t, result.Entries, 5)
}

func TestGetStandings_NoCacheConfigured(t *testing.T) {
	repo := &fakeStandingsRepo{
		pages:  map[standings.Scope][]*standings.Entry{standings.ScopeGlobal: makeEntries(2, rating.RegionNone)},
		counts: map[standings.Scope]int{standings.ScopeGlobal: 2},
	}
	handler := NewGetStandingsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetStandingsQuery{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Len(t, result.Entries, 2)
}

func TestGetStandings_Pagination(t *testing.T) {
	repo := &fakeStandingsRepo{
		pages:  map[standings.Scope][]*standings.Entry{standings.ScopeGlobal: makeEntries(5, rating.RegionNone)},
		counts: map[standings.Scope]int{standings.ScopeGlobal: 5},
	}
	handler := NewGetStandingsHandler(repo, nil, nil)

	page1, err := handler.Handle(context.Background(), GetStandingsQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page1.Entries, 2)
	assert.True(t, page1.HasMore)
	assert.Equal(t, 5, page1.TotalCount)

	page3, err := handler.Handle(context.Background(), GetStandingsQuery{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page3.Entries, 1)
	assert.False(t, page3.HasMore)
}

func TestGetStandings_RegionalScope(t *testing.T) {
	naScope := standings.RegionScope("na")
	repo := &fakeStandingsRepo{
		pages:  map[standings.Scope][]*standings.Entry{naScope: makeEntries(2, "na")},
		counts: map[standings.Scope]int{naScope: 2},
	}
	handler := NewGetStandingsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetStandingsQuery{Region: "na"})
	require.NoError(t, err)
	assert.Equal(t, "region:na", result.Scope)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, "na", result.Entries[0].Region)
}

func TestGetStandings_NegativePageRejected(t *testing.T) {
	handler := NewGetStandingsHandler(&fakeStandingsRepo{}, nil, nil)

	_, err := handler.Handle(context.Background(), GetStandingsQuery{Page: -1})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestGetStandings_OversizedPageClamped(t *testing.T) {
	repo := &fakeStandingsRepo{
		pages:  map[standings.Scope][]*standings.Entry{standings.ScopeGlobal: makeEntries(3, rating.RegionNone)},
		counts: map[standings.Scope]int{standings.ScopeGlobal: 3},
	}
	handler := NewGetStandingsHandler(repo, nil, nil)

	result, err := handler.Handle(context.Background(), GetStandingsQuery{PageSize: 10_000})
	require.NoError(t, err)
	assert.Equal(t, 100, result.PageSize)
}
