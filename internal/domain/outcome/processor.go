package outcome

import (
	"fmt"
	"math"
	"sort"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESSOR CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// PairwisePolicy states how Elo is updated for events with more than two
// participants. The policy is explicit configuration, never inferred.
type PairwisePolicy string

const (
	// PairwiseAverage computes Elo pairwise against every other participant
	// and averages the deltas.
	PairwiseAverage PairwisePolicy = "pairwise_average"

	// PairwiseNone leaves Elo untouched for non-head-to-head events.
	PairwiseNone PairwisePolicy = "none"
)

// IsValid checks that the policy is one of the known values.
func (p PairwisePolicy) IsValid() bool {
	return p == PairwiseAverage || p == PairwiseNone
}

// Config holds the award tables and Elo parameters for the processor.
// Exact constants are deployment configuration, not domain rules.
type Config struct {
	// BaseAwards is the base RP award per event tier.
	BaseAwards map[EventTier]float64

	// PlacementCurve scales the base award by final placement: index 0 is
	// 1st place. Placements beyond the curve get ParticipationFloor.
	PlacementCurve []float64

	// ParticipationFloor is the multiplier for placements past the curve.
	ParticipationFloor float64

	// TypeMultipliers scales the award by competition format.
	TypeMultipliers map[EventType]float64

	// EloSpread is the rating difference giving 10-to-1 expected odds
	// (conventionally 400).
	EloSpread float64

	// KByTier is the Elo K-factor per event tier for established competitors.
	KByTier map[EventTier]float64

	// KProvisional is the K-factor while a competitor has fewer than
	// ProvisionalGames applied results, for faster convergence.
	KProvisional     float64
	ProvisionalGames int

	// MultiPolicy is the Elo policy for events with more than two sides.
	MultiPolicy PairwisePolicy
}

// DefaultConfig returns the standard award tables.
func DefaultConfig() Config {
	return Config{
		BaseAwards: map[EventTier]float64{
			EventTierT1: 50,
			EventTierT2: 30,
			EventTierT3: 20,
			EventTierT4: 10,
		},
		PlacementCurve:     []float64{1.0, 0.6, 0.4, 0.25},
		ParticipationFloor: 0.1,
		TypeMultipliers: map[EventType]float64{
			EventTypeTournament: 1.5,
			EventTypeLeague:     1.0,
			EventTypeDraft:      1.0,
			EventTypeBYOT:       0.8,
		},
		EloSpread: 400,
		KByTier: map[EventTier]float64{
			EventTierT1: 32,
			EventTierT2: 26,
			EventTierT3: 20,
			EventTierT4: 16,
		},
		KProvisional:     40,
		ProvisionalGames: 10,
		MultiPolicy:      PairwiseAverage,
	}
}

// Validate checks that the configuration is complete.
func (c Config) Validate() error {
	for _, tier := range []EventTier{EventTierT1, EventTierT2, EventTierT3, EventTierT4} {
		if _, ok := c.BaseAwards[tier]; !ok {
			return fmt.Errorf("outcome config: missing base award for tier %s", tier)
		}
		if _, ok := c.KByTier[tier]; !ok {
			return fmt.Errorf("outcome config: missing K-factor for tier %s", tier)
		}
	}
	if len(c.PlacementCurve) == 0 || c.PlacementCurve[0] <= 0 {
		return fmt.Errorf("outcome config: placement curve must start with a positive multiplier")
	}
	if c.EloSpread <= 0 {
		return fmt.Errorf("outcome config: elo spread must be positive")
	}
	if !c.MultiPolicy.IsValid() {
		return fmt.Errorf("outcome config: unknown pairwise policy %q", c.MultiPolicy)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROCESSOR
// ══════════════════════════════════════════════════════════════════════════════

// Delta is the computed rating change for one participant.
type Delta struct {
	RP  float64
	Elo float64
}

// Processor computes rating deltas from finalized outcomes. It has no side
// effects: the returned deltas are applied atomically by the rating store.
type Processor struct {
	cfg Config
}

// NewProcessor creates a processor with the given configuration.
func NewProcessor(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg}, nil
}

// ComputeDeltas validates the outcome against the known participants and
// returns the per-participant rating deltas.
//
// Fails with ErrInvalidOutcome for structural violations and with
// ErrCompetitorNotFound when a participant has no competitor record.
func (p *Processor) ComputeDeltas(o *Outcome, competitors map[shared.CompetitorID]*rating.Competitor) (map[shared.CompetitorID]Delta, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	for _, part := range o.Participants {
		if _, ok := competitors[part.CompetitorID]; !ok {
			return nil, shared.WrapError("outcome", "ComputeDeltas", shared.ErrCompetitorNotFound,
				fmt.Sprintf("participant %s is not a registered competitor", part.CompetitorID), nil)
		}
	}

	// Work on a placement-ordered copy so the Elo math can index neighbours.
	ordered := make([]Participant, len(o.Participants))
	copy(ordered, o.Participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Placement < ordered[j].Placement })

	deltas := make(map[shared.CompetitorID]Delta, len(ordered))
	for _, part := range ordered {
		deltas[part.CompetitorID] = Delta{RP: p.rpAward(o, part.Placement)}
	}

	p.applyElo(o, ordered, competitors, deltas)
	return deltas, nil
}

// rpAward is the RP delta for one placement:
// base award for the event tier × placement multiplier × type multiplier.
func (p *Processor) rpAward(o *Outcome, placement int) float64 {
	base := p.cfg.BaseAwards[o.Tier]

	mult := p.cfg.ParticipationFloor
	if idx := placement - 1; idx < len(p.cfg.PlacementCurve) {
		mult = p.cfg.PlacementCurve[idx]
	}

	typeMult := 1.0
	if m, ok := p.cfg.TypeMultipliers[o.Type]; ok {
		typeMult = m
	}

	return base * mult * typeMult
}

// kFor picks the K-factor for a competitor in this event.
func (p *Processor) kFor(o *Outcome, c *rating.Competitor) float64 {
	if c.IsProvisional(p.cfg.ProvisionalGames) {
		return p.cfg.KProvisional
	}
	return p.cfg.KByTier[o.Tier]
}

// expectedScore is the standard Elo expectation of own against opponent:
// 1 / (1 + 10^((opponent-own)/spread)).
func (p *Processor) expectedScore(own, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-own)/p.cfg.EloSpread))
}

// pairScore is the actual score of a against b given their placements:
// 1 for a better placement, 0 for worse, 0.5 for a shared placement.
func pairScore(aPlacement, bPlacement int) float64 {
	switch {
	case aPlacement < bPlacement:
		return 1
	case aPlacement > bPlacement:
		return 0
	default:
		return 0.5
	}
}

// applyElo fills in the Elo components of the deltas.
//
// Head-to-head: one paired update, delta = K × (actual − expected); with
// equal K-factors the exchange is zero-sum. Multi-sided events follow
// MultiPolicy: pairwise against every other participant with the deltas
// averaged, or no Elo movement at all.
func (p *Processor) applyElo(o *Outcome, ordered []Participant, competitors map[shared.CompetitorID]*rating.Competitor, deltas map[shared.CompetitorID]Delta) {
	if len(ordered) > 2 && p.cfg.MultiPolicy == PairwiseNone {
		return
	}

	n := len(ordered)
	for i, a := range ordered {
		ca := competitors[a.CompetitorID]
		k := p.kFor(o, ca)

		var sum float64
		for j, b := range ordered {
			if i == j {
				continue
			}
			cb := competitors[b.CompetitorID]
			expected := p.expectedScore(ca.EloRating.Float64(), cb.EloRating.Float64())
			actual := pairScore(a.Placement, b.Placement)
			sum += k * (actual - expected)
		}

		d := deltas[a.CompetitorID]
		d.Elo = sum / float64(n-1)
		deltas[a.CompetitorID] = d
	}
}
