// Package jobs contains implementations of scheduled jobs for the rankings
// platform.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// DECAY TICK JOB
// ══════════════════════════════════════════════════════════════════════════════

// DecayTickJob walks all competitors and applies RP decay to those whose last
// qualifying event is older than the policy window. The store re-plans under
// the row lock, so a tick that races with an outcome submission degrades to a
// no-op for that competitor rather than double-decaying.
type DecayTickJob struct {
	// Dependencies
	competitorRepo rating.Repository
	store          rating.Store
	standingsCache standings.Cache
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	// Configuration
	config DecayTickConfig

	// State
	lastTickStats atomic.Value // *DecayTickStats
}

// DecayTickConfig contains configuration for the decay tick job.
type DecayTickConfig struct {
	// Policy governs the decay window and per-period rate.
	Policy rating.DecayPolicy

	// PublishPerCompetitor emits a RatingDecayedEvent for every decayed
	// competitor in addition to the tick summary event.
	PublishPerCompetitor bool

	// InvalidateStandings drops cached standings pages when at least one
	// competitor decayed, forcing the next read through Postgres.
	InvalidateStandings bool

	// Timeout is the maximum duration for a full tick.
	Timeout time.Duration
}

// DefaultDecayTickConfig returns sensible defaults.
func DefaultDecayTickConfig() DecayTickConfig {
	return DecayTickConfig{
		Policy:               rating.DefaultDecayPolicy(),
		PublishPerCompetitor: true,
		InvalidateStandings:  true,
		Timeout:              5 * time.Minute,
	}
}

// DecayTickStats contains statistics from a decay tick run.
type DecayTickStats struct {
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	Checked        int
	Decayed        int
	PeriodsApplied int
	TotalRPLost    float64
	Errors         []error
}

// NewDecayTickJob creates a new decay tick job.
func NewDecayTickJob(
	competitorRepo rating.Repository,
	store rating.Store,
	standingsCache standings.Cache,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config DecayTickConfig,
) *DecayTickJob {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.Policy.IsValid() {
		config.Policy = rating.DefaultDecayPolicy()
	}

	return &DecayTickJob{
		competitorRepo: competitorRepo,
		store:          store,
		standingsCache: standingsCache,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *DecayTickJob) Name() string {
	return "decay_tick"
}

// Description returns a human-readable description.
func (j *DecayTickJob) Description() string {
	return "Applies RP decay to competitors inactive beyond the decay window"
}

// Run executes a decay tick against the current clock.
func (j *DecayTickJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	stats := &DecayTickStats{
		StartedAt: now,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting decay_tick job",
		"window", j.config.Policy.Window.String(),
		"rate", j.config.Policy.Rate,
	)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	competitors, err := j.competitorRepo.List(ctx, rating.RegionNone)
	if err != nil {
		return fmt.Errorf("failed to list competitors: %w", err)
	}

	for _, c := range competitors {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats.Checked++

		// Cheap pre-check on the read copy. The authoritative plan is
		// recomputed under the row lock inside the store.
		if j.config.Policy.PlanFor(c, now).IsNoop() {
			continue
		}

		rpBefore := float64(c.CurrentRP)

		periods, err := j.store.ApplyDecay(ctx, c.ID, j.config.Policy, now)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to apply decay",
				"competitor_id", string(c.ID),
				"error", err,
			)
			continue
		}
		if periods == 0 {
			continue
		}

		factor := math.Pow(1-j.config.Policy.Rate, float64(periods))
		rpAfter := rpBefore * factor

		stats.Decayed++
		stats.PeriodsApplied += periods
		stats.TotalRPLost += rpBefore - rpAfter

		if j.config.PublishPerCompetitor && j.eventPublisher != nil {
			event := shared.NewRatingDecayedEvent(string(c.ID), rpBefore, rpAfter, periods)
			_ = j.eventPublisher.Publish(event)
		}

		j.logger.Debug("competitor decayed",
			"competitor_id", string(c.ID),
			"periods", periods,
			"rp_before", rpBefore,
			"rp_after", rpAfter,
		)
	}

	// Decayed RP means cached standings pages are stale until the next
	// recompute. Dropping them forces reads through Postgres.
	if stats.Decayed > 0 && j.config.InvalidateStandings && j.standingsCache != nil {
		if err := j.standingsCache.InvalidateAll(ctx); err != nil {
			j.logger.Warn("failed to invalidate standings cache", "error", err)
		}
	}

	stats.CompletedAt = time.Now().UTC()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastTickStats.Store(stats)

	if j.eventPublisher != nil {
		event := shared.NewDecayTickCompletedEvent(stats.Checked, stats.Decayed, now, stats.TotalRPLost)
		_ = j.eventPublisher.Publish(event)
	}

	j.logger.Info("decay_tick job completed",
		"duration", stats.Duration.String(),
		"checked", stats.Checked,
		"decayed", stats.Decayed,
		"periods_applied", stats.PeriodsApplied,
		"total_rp_lost", stats.TotalRPLost,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("decay tick completed with %d errors", len(stats.Errors))
	}

	return nil
}

// LastTickStats returns statistics from the last decay tick.
func (j *DecayTickJob) LastTickStats() *DecayTickStats {
	stats := j.lastTickStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DecayTickStats)
}
