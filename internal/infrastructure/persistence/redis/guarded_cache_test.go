package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type flakyCache struct {
	err       error
	pageCalls int
	setCalls  int
	entries   []*standings.Entry
}

func (f *flakyCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	f.pageCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *flakyCache) GetCachedRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.entries) == 0 {
		return nil, nil
	}
	return f.entries[0], nil
}

func (f *flakyCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	f.setCalls++
	if f.err != nil {
		return f.err
	}
	f.entries = entries
	return nil
}

func (f *flakyCache) Invalidate(ctx context.Context, scope standings.Scope) error {
	return f.err
}

func (f *flakyCache) InvalidateAll(ctx context.Context) error {
	f.entries = nil
	return f.err
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGuardedStandingsCache_PassesThroughWhenHealthy(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{entries: []*standings.Entry{{Rank: 1, Name: "Alpha"}}}
	guarded := NewGuardedStandingsCache(inner, nil)

	entries, err := guarded.GetCachedPage(ctx, standings.ScopeGlobal, 1, 25)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alpha", entries[0].Name)
	assert.Equal(t, circuitbreaker.StateClosed, guarded.BreakerState())
}

func TestGuardedStandingsCache_OpensAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{err: errors.New("connection refused")}
	guarded := NewGuardedStandingsCache(inner, nil)

	// Errors surface until the failure threshold trips the breaker.
	for i := 0; i < 5; i++ {
		_, err := guarded.GetCachedPage(ctx, standings.ScopeGlobal, 1, 25)
		assert.Error(t, err)
	}
	require.Equal(t, circuitbreaker.StateOpen, guarded.BreakerState())

	// Open circuit reads as a cache miss and never reaches Redis.
	callsBefore := inner.pageCalls
	entries, err := guarded.GetCachedPage(ctx, standings.ScopeGlobal, 1, 25)
	assert.NoError(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, callsBefore, inner.pageCalls)
}

func TestGuardedStandingsCache_SkipsWritesWhileOpen(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{err: errors.New("connection refused")}
	guarded := NewGuardedStandingsCache(inner, nil)

	for i := 0; i < 5; i++ {
		_ = guarded.SetStandings(ctx, standings.ScopeGlobal, nil, time.Minute)
	}
	require.Equal(t, circuitbreaker.StateOpen, guarded.BreakerState())

	callsBefore := inner.setCalls
	err := guarded.SetStandings(ctx, standings.ScopeGlobal, []*standings.Entry{{Rank: 1}}, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, callsBefore, inner.setCalls)
}

func TestGuardedStandingsCache_InvalidationSurfacesEarlyErrors(t *testing.T) {
	ctx := context.Background()
	inner := &flakyCache{err: errors.New("connection refused")}
	guarded := NewGuardedStandingsCache(inner, nil)

	assert.Error(t, guarded.Invalidate(ctx, standings.ScopeGlobal))
	assert.Error(t, guarded.InvalidateAll(ctx))
}
