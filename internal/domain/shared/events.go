// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Competitor events
	EventCompetitorRegistered EventType = "competitor.registered"
	EventCompetitorRetired    EventType = "competitor.retired"

	// Rating events
	EventRatingApplied EventType = "rating.applied"
	EventRatingDecayed EventType = "rating.decayed"
	EventTierChanged   EventType = "rating.tier_changed"

	// Standings events
	EventRankChanged         EventType = "standings.rank_changed"
	EventStandingsRecomputed EventType = "standings.recomputed"

	// System events
	EventDecayTickCompleted EventType = "system.decay_tick_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Competitor Events
// ═══════════════════════════════════════════════════════════════════════════

// CompetitorRegisteredEvent is emitted when a competitor is onboarded.
type CompetitorRegisteredEvent struct {
	BaseEvent
	CompetitorID string `json:"competitor_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Region       string `json:"region,omitempty"`
}

// Payload implements Event interface.
func (e CompetitorRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competitor_id": e.CompetitorID,
		"name":          e.Name,
		"kind":          e.Kind,
		"region":        e.Region,
	}
}

// NewCompetitorRegisteredEvent creates a new CompetitorRegisteredEvent.
func NewCompetitorRegisteredEvent(competitorID, name, kind, region string) CompetitorRegisteredEvent {
	return CompetitorRegisteredEvent{
		BaseEvent:    NewBaseEvent(EventCompetitorRegistered, competitorID),
		CompetitorID: competitorID,
		Name:         name,
		Kind:         kind,
		Region:       region,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Events
// ═══════════════════════════════════════════════════════════════════════════

// RatingAppliedEvent is emitted when an event outcome changes a competitor's rating.
type RatingAppliedEvent struct {
	BaseEvent
	CompetitorID string  `json:"competitor_id"`
	EventID      string  `json:"event_id"`
	Placement    int     `json:"placement"`
	RPEarned     float64 `json:"rp_earned"`
	RPAfter      float64 `json:"rp_after"`
	EloAfter     float64 `json:"elo_after"`
}

// Payload implements Event interface.
func (e RatingAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competitor_id": e.CompetitorID,
		"event_id":      e.EventID,
		"placement":     e.Placement,
		"rp_earned":     e.RPEarned,
		"rp_after":      e.RPAfter,
		"elo_after":     e.EloAfter,
	}
}

// NewRatingAppliedEvent creates a new RatingAppliedEvent.
func NewRatingAppliedEvent(competitorID, eventID string, placement int, rpEarned, rpAfter, eloAfter float64) RatingAppliedEvent {
	return RatingAppliedEvent{
		BaseEvent:    NewBaseEvent(EventRatingApplied, competitorID),
		CompetitorID: competitorID,
		EventID:      eventID,
		Placement:    placement,
		RPEarned:     rpEarned,
		RPAfter:      rpAfter,
		EloAfter:     eloAfter,
	}
}

// RatingDecayedEvent is emitted when scheduled decay reduces a competitor's RP.
type RatingDecayedEvent struct {
	BaseEvent
	CompetitorID string  `json:"competitor_id"`
	RPBefore     float64 `json:"rp_before"`
	RPAfter      float64 `json:"rp_after"`
	Periods      int     `json:"periods"`
}

// Payload implements Event interface.
func (e RatingDecayedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competitor_id": e.CompetitorID,
		"rp_before":     e.RPBefore,
		"rp_after":      e.RPAfter,
		"periods":       e.Periods,
	}
}

// NewRatingDecayedEvent creates a new RatingDecayedEvent.
func NewRatingDecayedEvent(competitorID string, rpBefore, rpAfter float64, periods int) RatingDecayedEvent {
	return RatingDecayedEvent{
		BaseEvent:    NewBaseEvent(EventRatingDecayed, competitorID),
		CompetitorID: competitorID,
		RPBefore:     rpBefore,
		RPAfter:      rpAfter,
		Periods:      periods,
	}
}

// TierChangedEvent is emitted when a rating change moves a competitor
// into a different leaderboard tier.
type TierChangedEvent struct {
	BaseEvent
	CompetitorID string `json:"competitor_id"`
	OldTier      string `json:"old_tier"`
	NewTier      string `json:"new_tier"`
}

// Payload implements Event interface.
func (e TierChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competitor_id": e.CompetitorID,
		"old_tier":      e.OldTier,
		"new_tier":      e.NewTier,
	}
}

// NewTierChangedEvent creates a new TierChangedEvent.
func NewTierChangedEvent(competitorID, oldTier, newTier string) TierChangedEvent {
	return TierChangedEvent{
		BaseEvent:    NewBaseEvent(EventTierChanged, competitorID),
		CompetitorID: competitorID,
		OldTier:      oldTier,
		NewTier:      newTier,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Standings Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a recompute pass moves a competitor's rank.
type RankChangedEvent struct {
	BaseEvent
	CompetitorID string `json:"competitor_id"`
	OldRank      int    `json:"old_rank"`
	NewRank      int    `json:"new_rank"`
	Scope        string `json:"scope"`
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competitor_id": e.CompetitorID,
		"old_rank":      e.OldRank,
		"new_rank":      e.NewRank,
		"scope":         e.Scope,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(competitorID string, oldRank, newRank int, scope string) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:    NewBaseEvent(EventRankChanged, competitorID),
		CompetitorID: competitorID,
		OldRank:      oldRank,
		NewRank:      newRank,
		Scope:        scope,
	}
}

// StandingsRecomputedEvent is emitted after a full recompute pass for a scope.
type StandingsRecomputedEvent struct {
	BaseEvent
	Scope       string `json:"scope"`
	SnapshotID  string `json:"snapshot_id"`
	Competitors int    `json:"competitors"`
	RankChanges int    `json:"rank_changes"`
}

// Payload implements Event interface.
func (e StandingsRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scope":        e.Scope,
		"snapshot_id":  e.SnapshotID,
		"competitors":  e.Competitors,
		"rank_changes": e.RankChanges,
	}
}

// NewStandingsRecomputedEvent creates a new StandingsRecomputedEvent.
func NewStandingsRecomputedEvent(scope, snapshotID string, competitors, rankChanges int) StandingsRecomputedEvent {
	return StandingsRecomputedEvent{
		BaseEvent:   NewBaseEvent(EventStandingsRecomputed, snapshotID),
		Scope:       scope,
		SnapshotID:  snapshotID,
		Competitors: competitors,
		RankChanges: rankChanges,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// DecayTickCompletedEvent is emitted after a scheduled decay pass over
// the full competitor set.
type DecayTickCompletedEvent struct {
	BaseEvent
	Checked   int       `json:"checked"`
	Decayed   int       `json:"decayed"`
	TickedAt  time.Time `json:"ticked_at"`
	TotalLost float64   `json:"total_rp_lost"`
}

// Payload implements Event interface.
func (e DecayTickCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"checked":       e.Checked,
		"decayed":       e.Decayed,
		"ticked_at":     e.TickedAt.Format(time.RFC3339),
		"total_rp_lost": e.TotalLost,
	}
}

// NewDecayTickCompletedEvent creates a new DecayTickCompletedEvent.
func NewDecayTickCompletedEvent(checked, decayed int, tickedAt time.Time, totalLost float64) DecayTickCompletedEvent {
	return DecayTickCompletedEvent{
		BaseEvent: NewBaseEvent(EventDecayTickCompleted, "decay"),
		Checked:   checked,
		Decayed:   decayed,
		TickedAt:  tickedAt,
		TotalLost: totalLost,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
