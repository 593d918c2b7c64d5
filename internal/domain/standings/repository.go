package standings

import (
	"context"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the storage contract for standings snapshots.
// Implementations live in the infrastructure layer.
type Repository interface {
	// ──────────────────────────────────────────────────────────────────────────
	// SNAPSHOT OPERATIONS
	// ──────────────────────────────────────────────────────────────────────────

	// SaveSnapshot persists a snapshot with all of its entries.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetLatestSnapshot returns the most recent snapshot for a scope.
	// Returns shared.ErrSnapshotNotFound when no snapshot exists yet.
	GetLatestSnapshot(ctx context.Context, scope Scope) (*Snapshot, error)

	// GetSnapshotByID returns a snapshot by its identifier.
	GetSnapshotByID(ctx context.Context, id string) (*Snapshot, error)

	// ListSnapshots returns snapshot metadata for a scope within a period.
	ListSnapshots(ctx context.Context, scope Scope, from, to time.Time) ([]SnapshotMeta, error)

	// DeleteOldSnapshots removes snapshots older than the cutoff and
	// returns how many were deleted. The latest snapshot of each scope
	// is always retained.
	DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error)

	// ──────────────────────────────────────────────────────────────────────────
	// RANKING QUERIES (read model)
	// ──────────────────────────────────────────────────────────────────────────

	// GetCompetitorRank returns a competitor's entry in the latest snapshot
	// of the scope, or nil if the competitor is not ranked there.
	GetCompetitorRank(ctx context.Context, id shared.CompetitorID, scope Scope) (*Entry, error)

	// GetPage returns one page of the latest snapshot. page starts at 1.
	GetPage(ctx context.Context, scope Scope, page, pageSize int) ([]*Entry, error)

	// GetTotalCount returns the number of ranked competitors in the scope.
	GetTotalCount(ctx context.Context, scope Scope) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache is the hot-path read contract, kept separate from Repository so the
// serving layer can fall through to Postgres when the cache is unavailable.
type Cache interface {
	// GetCachedPage returns a cached page, or nil when the cache is cold.
	GetCachedPage(ctx context.Context, scope Scope, page, pageSize int) ([]*Entry, error)

	// SetStandings replaces the cached standings of a scope with the
	// snapshot's entries.
	SetStandings(ctx context.Context, scope Scope, entries []*Entry, ttl time.Duration) error

	// GetCachedRank returns a cached entry for one competitor, or nil.
	GetCachedRank(ctx context.Context, id shared.CompetitorID, scope Scope) (*Entry, error)

	// Invalidate drops the cached standings of a scope.
	Invalidate(ctx context.Context, scope Scope) error

	// InvalidateAll drops every cached scope.
	InvalidateAll(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// QueryOptions holds pagination parameters for standings queries.
type QueryOptions struct {
	// Scope selects the ranking universe.
	Scope Scope

	// Page is the page number, starting at 1.
	Page int

	// PageSize is the number of entries per page.
	PageSize int
}

// DefaultQueryOptions returns the defaults used by the HTTP layer.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		Scope:    ScopeGlobal,
		Page:     1,
		PageSize: 25,
	}
}

// WithScope sets the scope.
func (o QueryOptions) WithScope(scope Scope) QueryOptions {
	o.Scope = scope
	return o
}

// WithPage sets the page number.
func (o QueryOptions) WithPage(page int) QueryOptions {
	if page < 1 {
		page = 1
	}
	o.Page = page
	return o
}

// WithPageSize sets the page size, clamped to [1, 100].
func (o QueryOptions) WithPageSize(size int) QueryOptions {
	if size < 1 {
		size = 25
	}
	if size > 100 {
		size = 100
	}
	o.PageSize = size
	return o
}

// Offset returns the SQL offset for the page.
func (o QueryOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// Limit returns the SQL limit for the page.
func (o QueryOptions) Limit() int {
	return o.PageSize
}
