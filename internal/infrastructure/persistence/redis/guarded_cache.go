package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// GuardedStandingsCache wraps a standings cache with a circuit breaker.
// While the breaker is open, reads report a cache miss so the query layer
// falls through to Postgres, and writes are skipped; the next successful
// recompute repopulates the cache.
type GuardedStandingsCache struct {
	inner   standings.Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedStandingsCache wraps the given cache. State transitions are
// logged at warn level when a logger is provided.
func NewGuardedStandingsCache(inner standings.Cache, logger *slog.Logger) *GuardedStandingsCache {
	var onChange func(name string, from, to circuitbreaker.State)
	if logger != nil {
		onChange = func(name string, from, to circuitbreaker.State) {
			logger.Warn("cache circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}
	}
	return &GuardedStandingsCache{
		inner:   inner,
		breaker: circuitbreaker.CacheBreaker(onChange),
	}
}

// BreakerState returns the current circuit state, for health reporting.
func (g *GuardedStandingsCache) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}

// tripped reports whether the error is the breaker refusing the call.
func tripped(err error) bool {
	return errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}

// GetCachedPage returns a cached page, or nil while the breaker is open.
func (g *GuardedStandingsCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	var entries []*standings.Entry
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		entries, innerErr = g.inner.GetCachedPage(ctx, scope, page, pageSize)
		return innerErr
	})
	if tripped(err) {
		return nil, nil
	}
	return entries, err
}

// GetCachedRank returns a cached entry, or nil while the breaker is open.
func (g *GuardedStandingsCache) GetCachedRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	var entry *standings.Entry
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		entry, innerErr = g.inner.GetCachedRank(ctx, id, scope)
		return innerErr
	})
	if tripped(err) {
		return nil, nil
	}
	return entry, err
}

// SetStandings replaces the cached standings of a scope. The write is
// skipped without error while the breaker is open.
func (g *GuardedStandingsCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.SetStandings(ctx, scope, entries, ttl)
	})
	if tripped(err) {
		return nil
	}
	return err
}

// Invalidate drops the cached standings of a scope.
func (g *GuardedStandingsCache) Invalidate(ctx context.Context, scope standings.Scope) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.Invalidate(ctx, scope)
	})
	if tripped(err) {
		return nil
	}
	return err
}

// InvalidateAll drops every cached scope.
func (g *GuardedStandingsCache) InvalidateAll(ctx context.Context) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.InvalidateAll(ctx)
	})
	if tripped(err) {
		return nil
	}
	return err
}
