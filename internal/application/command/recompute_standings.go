package command

import (
	"context"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/infrastructure/metrics"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE STANDINGS COMMAND
// Triggers a full standings recompute out of schedule, covering the global
// scope and every regional scope.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeStandingsCommand triggers an immediate standings recompute.
type RecomputeStandingsCommand struct {
	// CorrelationID for tracing.
	CorrelationID string
}

// RecomputeStandingsResult contains the outcome of a manual recompute.
type RecomputeStandingsResult struct {
	// TotalCompetitors is the number of competitors ranked.
	TotalCompetitors int

	// ScopesProcessed counts the global scope plus each region.
	ScopesProcessed int

	// SnapshotsCreated is the number of snapshots written.
	SnapshotsCreated int

	// RankChangesFound is the number of competitors whose rank moved.
	RankChangesFound int

	// Duration is how long the recompute took.
	Duration time.Duration
}

// RecomputeStandingsHandler handles the RecomputeStandingsCommand by driving
// the same job the scheduler runs.
type RecomputeStandingsHandler struct {
	job     *jobs.RecomputeStandingsJob
	metrics metrics.Metrics
}

// NewRecomputeStandingsHandler creates a new RecomputeStandingsHandler.
func NewRecomputeStandingsHandler(job *jobs.RecomputeStandingsJob, m metrics.Metrics) *RecomputeStandingsHandler {
	if m == nil {
		m = metrics.Noop{}
	}
	return &RecomputeStandingsHandler{job: job, metrics: m}
}

// Handle executes the standings recompute.
func (h *RecomputeStandingsHandler) Handle(ctx context.Context, cmd RecomputeStandingsCommand) (*RecomputeStandingsResult, error) {
	if err := h.job.Run(ctx); err != nil {
		return nil, err
	}

	stats := h.job.LastRecomputeStats()
	if stats == nil {
		return &RecomputeStandingsResult{}, nil
	}

	h.metrics.IncRecomputeRuns()
	h.metrics.ObserveRecomputeDuration(stats.Duration.Seconds())

	return &RecomputeStandingsResult{
		TotalCompetitors: stats.TotalCompetitors,
		ScopesProcessed:  stats.ScopesProcessed,
		SnapshotsCreated: stats.SnapshotsCreated,
		RankChangesFound: stats.RankChangesFound,
		Duration:         stats.Duration,
	}, nil
}
