package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STANDINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeStandingsJob rebuilds the standings snapshots for the global scope
// and every regional scope, diffs each against the previous snapshot to
// annotate rank movement, and refreshes the Redis cache so serving reads stay
// warm. Ranks are dense: ties on RP break on Elo, then on competitor ID.
type RecomputeStandingsJob struct {
	// Dependencies
	competitorRepo rating.Repository
	standingsRepo  standings.Repository
	standingsCache standings.Cache
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	// Configuration
	config RecomputeStandingsConfig

	// State
	lastRecomputeStats atomic.Value // *RecomputeStats
}

// RankWriter persists recomputed global placements back onto competitor
// rows, keeping GlobalRank, PreviousRank, and RPChange in step with the
// latest snapshot. The Postgres competitor repository implements it.
type RankWriter interface {
	UpdateRanks(ctx context.Context, updates []rating.RankUpdate) error
}

// RecomputeStandingsConfig contains configuration for the recompute job.
type RecomputeStandingsConfig struct {
	// PublishRankChanges emits a RankChangedEvent per moved competitor.
	PublishRankChanges bool

	// MinRankChangeForEvent is the minimum absolute movement that emits a
	// per-competitor event. The scope-level summary event always fires.
	MinRankChangeForEvent int

	// SnapshotRetentionDays is how long superseded snapshots are kept.
	// The latest snapshot per scope is always retained as diff baseline.
	SnapshotRetentionDays int

	// CacheTTL is the TTL for cached standings pages.
	CacheTTL time.Duration

	// Timeout is the maximum duration for a full recompute.
	Timeout time.Duration
}

// DefaultRecomputeStandingsConfig returns sensible defaults.
func DefaultRecomputeStandingsConfig() RecomputeStandingsConfig {
	return RecomputeStandingsConfig{
		PublishRankChanges:    true,
		MinRankChangeForEvent: 3,
		SnapshotRetentionDays: 7,
		CacheTTL:              10 * time.Minute,
		Timeout:               5 * time.Minute,
	}
}

// RecomputeStats contains statistics from a recompute run.
type RecomputeStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	TotalCompetitors int
	ScopesProcessed  int
	SnapshotsCreated int
	RankChangesFound int
	NewEntrants      int
	Errors           []error
}

// NewRecomputeStandingsJob creates a new standings recompute job.
func NewRecomputeStandingsJob(
	competitorRepo rating.Repository,
	standingsRepo standings.Repository,
	standingsCache standings.Cache,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config RecomputeStandingsConfig,
) *RecomputeStandingsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecomputeStandingsJob{
		competitorRepo: competitorRepo,
		standingsRepo:  standingsRepo,
		standingsCache: standingsCache,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *RecomputeStandingsJob) Name() string {
	return "recompute_standings"
}

// Description returns a human-readable description.
func (j *RecomputeStandingsJob) Description() string {
	return "Rebuilds dense-rank standings snapshots for the global and regional scopes"
}

// Run executes the recompute job.
func (j *RecomputeStandingsJob) Run(ctx context.Context) error {
	startedAt := time.Now().UTC()
	stats := &RecomputeStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting recompute_standings job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// One listing feeds every scope: the global ranking uses all rows, each
	// regional ranking filters in memory.
	competitors, err := j.competitorRepo.List(ctx, rating.RegionNone)
	if err != nil {
		return fmt.Errorf("failed to list competitors: %w", err)
	}
	stats.TotalCompetitors = len(competitors)

	if err := j.recomputeScope(ctx, standings.ScopeGlobal, competitors, stats); err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to recompute global standings", "error", err)
	}
	stats.ScopesProcessed++

	regions, err := j.competitorRepo.ListRegions(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		j.logger.Error("failed to list regions", "error", err)
	}
	for _, region := range regions {
		scope := standings.RegionScope(region)
		if err := j.recomputeScope(ctx, scope, competitors, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to recompute regional standings",
				"scope", scope.String(),
				"error", err,
			)
		}
		stats.ScopesProcessed++
	}

	if j.config.SnapshotRetentionDays > 0 {
		threshold := time.Now().AddDate(0, 0, -j.config.SnapshotRetentionDays)
		deleted, err := j.standingsRepo.DeleteOldSnapshots(ctx, threshold)
		if err != nil {
			j.logger.Warn("failed to delete old snapshots", "error", err)
		} else if deleted > 0 {
			j.logger.Info("deleted old snapshots", "count", deleted)
		}
	}

	stats.CompletedAt = time.Now().UTC()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRecomputeStats.Store(stats)

	j.logger.Info("recompute_standings job completed",
		"duration", stats.Duration.String(),
		"total_competitors", stats.TotalCompetitors,
		"scopes", stats.ScopesProcessed,
		"snapshots_created", stats.SnapshotsCreated,
		"rank_changes", stats.RankChangesFound,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("recompute completed with %d errors", len(stats.Errors))
	}

	return nil
}

// recomputeScope rebuilds one scope: rank, diff, persist, cache.
func (j *RecomputeStandingsJob) recomputeScope(
	ctx context.Context,
	scope standings.Scope,
	competitors []*rating.Competitor,
	stats *RecomputeStats,
) error {
	prevSnapshot, err := j.standingsRepo.GetLatestSnapshot(ctx, scope)
	if err != nil && !shared.IsNotFound(err) {
		return fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	ranking := standings.BuildRanking(scope, competitors)
	newSnapshot := standings.NewSnapshot(standings.SnapshotID(), scope, ranking)

	diff := standings.ComputeDiff(prevSnapshot, newSnapshot)
	stats.NewEntrants += len(diff.NewEntries)

	for competitorID, change := range diff.RankChanges {
		if change == 0 {
			continue
		}
		stats.RankChangesFound++

		if !j.config.PublishRankChanges || j.eventPublisher == nil {
			continue
		}
		if change.Abs() < j.config.MinRankChangeForEvent {
			continue
		}

		entry := newSnapshot.GetByID(competitorID)
		if entry == nil {
			continue
		}
		event := shared.NewRankChangedEvent(
			string(competitorID),
			entry.PreviousRank.Int(),
			entry.Rank.Int(),
			scope.String(),
		)
		_ = j.eventPublisher.Publish(event)
	}

	if err := j.standingsRepo.SaveSnapshot(ctx, newSnapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	stats.SnapshotsCreated++

	// The global ranking is also written back onto competitor rows so direct
	// competitor reads see their current placement without a snapshot join.
	if scope.IsGlobal() {
		if writer, ok := j.competitorRepo.(RankWriter); ok {
			updates := make([]rating.RankUpdate, 0, len(newSnapshot.Entries))
			for _, entry := range newSnapshot.Entries {
				updates = append(updates, rating.RankUpdate{
					CompetitorID: entry.CompetitorID,
					GlobalRank:   entry.Rank.Int(),
					PreviousRank: entry.PreviousRank.Int(),
					RPChange:     entry.RPChange,
				})
			}
			if err := writer.UpdateRanks(ctx, updates); err != nil {
				return fmt.Errorf("failed to write ranks back: %w", err)
			}
		}
	}

	if j.standingsCache != nil {
		if err := j.standingsCache.SetStandings(ctx, scope, newSnapshot.Entries, j.config.CacheTTL); err != nil {
			j.logger.Warn("failed to cache standings",
				"scope", scope.String(),
				"error", err,
			)
		}
	}

	if j.eventPublisher != nil {
		event := shared.NewStandingsRecomputedEvent(
			scope.String(),
			newSnapshot.ID,
			newSnapshot.TotalCompetitors,
			len(diff.RankChanges),
		)
		_ = j.eventPublisher.Publish(event)
	}

	j.logger.Debug("standings recomputed",
		"scope", scope.String(),
		"competitors", newSnapshot.TotalCompetitors,
		"average_rp", float64(newSnapshot.AverageRP),
	)

	return nil
}

// LastRecomputeStats returns statistics from the last recompute.
func (j *RecomputeStandingsJob) LastRecomputeStats() *RecomputeStats {
	stats := j.lastRecomputeStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RecomputeStats)
}
