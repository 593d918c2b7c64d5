// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/outcome"
	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/metrics"
	"github.com/proam-rankings/rankings-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT OUTCOME COMMAND
// Applies a finalized event outcome: computes RP/Elo deltas for every
// participant and persists the whole outcome in one atomic unit.
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantInput is one participant of a submitted outcome.
type ParticipantInput struct {
	// CompetitorID is the participant's competitor ID (UUID).
	CompetitorID string

	// Placement is the final position, 1..N.
	Placement int
}

// SubmitOutcomeCommand contains a finalized, verified event outcome.
type SubmitOutcomeCommand struct {
	// EventID identifies the finalized event. Together with each
	// competitor ID it forms the idempotency key.
	EventID string

	// Tier is the event tier (t1..t4).
	Tier string

	// Type is the event type (tournament, league, draft, byot).
	Type string

	// Participants holds the final ranking.
	Participants []ParticipantInput

	// OccurredAt is when the event finished (defaults to now if zero).
	OccurredAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// ToOutcome converts the command into the domain outcome.
func (c SubmitOutcomeCommand) ToOutcome() *outcome.Outcome {
	participants := make([]outcome.Participant, len(c.Participants))
	for i, p := range c.Participants {
		participants[i] = outcome.Participant{
			CompetitorID: shared.CompetitorID(p.CompetitorID),
			Placement:    p.Placement,
		}
	}
	return &outcome.Outcome{
		EventID:      shared.EventID(c.EventID),
		Tier:         outcome.EventTier(c.Tier),
		Type:         outcome.EventType(c.Type),
		Participants: participants,
	}
}

// Validate validates the command.
func (c SubmitOutcomeCommand) Validate() error {
	return c.ToOutcome().Validate()
}

// SubmitOutcomeResult contains the result of applying an outcome.
type SubmitOutcomeResult struct {
	// EventID is the processed event.
	EventID string

	// Results holds the per-participant audit records in placement order.
	Results []*rating.EventResult

	// TierChanges maps competitor ID to "old->new" for participants whose
	// tier moved.
	TierChanges map[string]string

	// AppliedAt is when the application completed.
	AppliedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitOutcomeHandler handles the SubmitOutcomeCommand.
//
// The whole outcome is applied in one storage transaction: either every
// participant's deltas commit or none do, so a crash mid-outcome never
// leaves a half-applied event. The unique (event_id, competitor_id)
// constraint makes resubmission detectable: replaying an applied outcome
// rolls back and surfaces shared.ErrDuplicateResult.
type SubmitOutcomeHandler struct {
	competitorRepo rating.Repository
	store          rating.Store
	processor      *outcome.Processor
	standingsCache standings.Cache
	eventPublisher shared.EventPublisher
	metrics        metrics.Metrics
	retrier        *retry.Retrier
}

// NewSubmitOutcomeHandler creates a new SubmitOutcomeHandler.
func NewSubmitOutcomeHandler(
	competitorRepo rating.Repository,
	store rating.Store,
	processor *outcome.Processor,
	standingsCache standings.Cache,
	eventPublisher shared.EventPublisher,
	m metrics.Metrics,
) *SubmitOutcomeHandler {
	if m == nil {
		m = metrics.Noop{}
	}

	return &SubmitOutcomeHandler{
		competitorRepo: competitorRepo,
		store:          store,
		processor:      processor,
		standingsCache: standingsCache,
		eventPublisher: eventPublisher,
		metrics:        m,
		retrier:        retry.ConflictRetrier(),
	}
}

// Handle executes the submit outcome command.
func (h *SubmitOutcomeHandler) Handle(ctx context.Context, cmd SubmitOutcomeCommand) (*SubmitOutcomeResult, error) {
	started := time.Now()

	o := cmd.ToOutcome()
	if err := o.Validate(); err != nil {
		h.metrics.IncOutcomesRejected()
		return nil, err
	}

	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	// Load all participants up front: an unknown competitor rejects the
	// whole outcome before anything is written.
	competitors, err := h.competitorRepo.GetByIDs(ctx, o.CompetitorIDs())
	if err != nil {
		return nil, fmt.Errorf("submit_outcome: failed to load competitors: %w", err)
	}
	for _, id := range o.CompetitorIDs() {
		if _, ok := competitors[id]; !ok {
			h.metrics.IncOutcomesRejected()
			return nil, shared.WrapError("command", "SubmitOutcome", shared.ErrCompetitorNotFound,
				fmt.Sprintf("participant %s is not registered", id), nil)
		}
	}

	deltas, err := h.processor.ComputeDeltas(o, competitors)
	if err != nil {
		h.metrics.IncOutcomesRejected()
		return nil, err
	}

	apps := make([]rating.Application, 0, len(o.Participants))
	for _, p := range o.Participants {
		delta := deltas[p.CompetitorID]
		apps = append(apps, rating.Application{
			CompetitorID: p.CompetitorID,
			Placement:    p.Placement,
			RPDelta:      delta.RP,
			EloDelta:     delta.Elo,
		})
	}
	ref := rating.OutcomeRef{EventID: o.EventID, At: occurredAt}

	var eventResults []*rating.EventResult
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var applyErr error
		eventResults, applyErr = h.store.ApplyOutcome(ctx, ref, apps)
		if applyErr == nil {
			return nil
		}
		// Serialization conflicts retry the whole transaction with the
		// same idempotency keys; everything else is permanent.
		if shared.IsRetryable(applyErr) {
			return retry.Retryable(applyErr)
		}
		return retry.Permanent(applyErr)
	})
	if err != nil {
		if shared.IsDuplicate(err) {
			// The outcome was already applied; nothing changed this time.
			h.metrics.IncOutcomesDuplicate()
			return nil, fmt.Errorf("submit_outcome: outcome %s already applied: %w", o.EventID, err)
		}
		return nil, fmt.Errorf("submit_outcome: failed to apply outcome %s: %w", o.EventID, err)
	}

	result := &SubmitOutcomeResult{
		EventID:     string(o.EventID),
		Results:     eventResults,
		TierChanges: make(map[string]string),
	}

	for _, eventResult := range eventResults {
		oldTier := competitors[eventResult.CompetitorID].Tier

		if h.eventPublisher != nil {
			event := shared.NewRatingAppliedEvent(
				string(eventResult.CompetitorID),
				string(o.EventID),
				eventResult.Placement,
				eventResult.RPEarned,
				eventResult.RPAfter,
				eventResult.EloAfter,
			)
			if cmd.CorrelationID != "" {
				event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
			}
			_ = h.eventPublisher.Publish(event)
		}

		newTier := rating.TierFor(rating.RP(eventResult.RPAfter), rating.Elo(eventResult.EloAfter))
		if newTier != oldTier {
			result.TierChanges[string(eventResult.CompetitorID)] = fmt.Sprintf("%s->%s", oldTier, newTier)
			if h.eventPublisher != nil {
				event := shared.NewTierChangedEvent(string(eventResult.CompetitorID), string(oldTier), string(newTier))
				_ = h.eventPublisher.Publish(event)
			}
		}
	}

	// Ratings moved, so cached standings pages are stale until the next
	// recompute.
	if len(result.Results) > 0 && h.standingsCache != nil {
		_ = h.standingsCache.InvalidateAll(ctx)
	}

	result.AppliedAt = time.Now().UTC()

	h.metrics.IncOutcomesSubmitted()
	h.metrics.ObserveOutcomeDuration(time.Since(started).Seconds())

	return result, nil
}
