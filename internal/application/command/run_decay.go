package command

import (
	"context"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/infrastructure/metrics"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN DECAY COMMAND
// Triggers a decay tick out of schedule. The tick itself is idempotent, so an
// admin re-running it against the same clock changes nothing.
// ══════════════════════════════════════════════════════════════════════════════

// RunDecayCommand triggers an immediate decay tick.
type RunDecayCommand struct {
	// CorrelationID for tracing.
	CorrelationID string
}

// RunDecayResult contains the outcome of a manual decay tick.
type RunDecayResult struct {
	// Checked is the number of competitors examined.
	Checked int

	// Decayed is the number of competitors that lost RP.
	Decayed int

	// PeriodsApplied is the total decay periods applied across competitors.
	PeriodsApplied int

	// TotalRPLost is the summed RP removed.
	TotalRPLost float64

	// Duration is how long the tick took.
	Duration time.Duration
}

// RunDecayHandler handles the RunDecayCommand by driving the same job the
// scheduler runs.
type RunDecayHandler struct {
	job     *jobs.DecayTickJob
	metrics metrics.Metrics
}

// NewRunDecayHandler creates a new RunDecayHandler.
func NewRunDecayHandler(job *jobs.DecayTickJob, m metrics.Metrics) *RunDecayHandler {
	if m == nil {
		m = metrics.Noop{}
	}
	return &RunDecayHandler{job: job, metrics: m}
}

// Handle executes the decay tick.
func (h *RunDecayHandler) Handle(ctx context.Context, cmd RunDecayCommand) (*RunDecayResult, error) {
	if err := h.job.Run(ctx); err != nil {
		return nil, err
	}

	stats := h.job.LastTickStats()
	if stats == nil {
		return &RunDecayResult{}, nil
	}

	h.metrics.IncDecayTicks()
	h.metrics.AddCompetitorsDecayed(stats.Decayed)

	return &RunDecayResult{
		Checked:        stats.Checked,
		Decayed:        stats.Decayed,
		PeriodsApplied: stats.PeriodsApplied,
		TotalRPLost:    stats.TotalRPLost,
		Duration:       stats.Duration,
	}, nil
}
