package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER COMPETITOR COMMAND
// Onboards a player or team with baseline rating state. Rating changes only
// ever flow through outcomes and decay after this point.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCompetitorCommand contains the data to register a competitor.
type RegisterCompetitorCommand struct {
	// ID is the competitor UUID. Generated when empty.
	ID string

	// Name is the gamertag or team name.
	Name string

	// Kind is "player" or "team".
	Kind string

	// Region is the optional regional scope.
	Region string

	// CorrelationID for tracing.
	CorrelationID string
}

// RegisterCompetitorResult contains the registered competitor.
type RegisterCompetitorResult struct {
	Competitor   *rating.Competitor
	RegisteredAt time.Time
}

// RegisterCompetitorHandler handles the RegisterCompetitorCommand.
type RegisterCompetitorHandler struct {
	competitorRepo rating.Repository
	eventPublisher shared.EventPublisher
}

// NewRegisterCompetitorHandler creates a new RegisterCompetitorHandler.
func NewRegisterCompetitorHandler(
	competitorRepo rating.Repository,
	eventPublisher shared.EventPublisher,
) *RegisterCompetitorHandler {
	return &RegisterCompetitorHandler{
		competitorRepo: competitorRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the register competitor command.
func (h *RegisterCompetitorHandler) Handle(ctx context.Context, cmd RegisterCompetitorCommand) (*RegisterCompetitorResult, error) {
	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	c, err := rating.NewCompetitor(
		shared.CompetitorID(id),
		cmd.Name,
		rating.Kind(cmd.Kind),
		rating.Region(cmd.Region),
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := h.competitorRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("register_competitor: %w", err)
	}

	if h.eventPublisher != nil {
		event := shared.NewCompetitorRegisteredEvent(string(c.ID), c.Name, string(c.Kind), string(c.Region))
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(event)
	}

	return &RegisterCompetitorResult{
		Competitor:   c,
		RegisteredAt: now,
	}, nil
}
