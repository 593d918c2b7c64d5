package rating

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RP DECAY POLICY
// ══════════════════════════════════════════════════════════════════════════════

// DecayPolicy defines how inactivity erodes ranking points.
//
// Decay is exponential per elapsed whole period: a competitor whose last
// qualifying event is older than one Window loses Rate of their RP for every
// complete Window elapsed since that event. Periods already applied (tracked
// through the competitor's LastDecayAt) are never re-applied, so running a
// decay tick twice with the same clock is a no-op the second time, and a
// competitor inactive for two windows loses exactly two periods' worth.
// Decay never touches Elo and never creates an event result.
type DecayPolicy struct {
	// Window is the length of one decay period.
	Window time.Duration

	// Rate is the fraction of RP lost per period, in (0,1).
	Rate float64
}

// DefaultDecayPolicy loses 10% of RP per 14 days of inactivity.
func DefaultDecayPolicy() DecayPolicy {
	return DecayPolicy{
		Window: 14 * 24 * time.Hour,
		Rate:   0.10,
	}
}

// IsValid checks the policy parameters.
func (p DecayPolicy) IsValid() bool {
	return p.Window > 0 && p.Rate > 0 && p.Rate < 1
}

// periodsBetween returns the number of complete windows between from and to.
func (p DecayPolicy) periodsBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / p.Window)
}

// Plan describes the decay that a tick at a given instant would apply.
type Plan struct {
	// Periods is the number of new whole periods to decay for.
	Periods int

	// Factor is the multiplicative RP factor, (1-Rate)^Periods.
	Factor float64
}

// IsNoop reports whether the plan changes nothing.
func (pl Plan) IsNoop() bool {
	return pl.Periods == 0
}

// PlanFor computes the decay a tick at now should apply to the competitor.
// Returns a no-op plan when the competitor has had a qualifying event within
// the window, or when all elapsed periods were already applied by an earlier
// tick.
func (p DecayPolicy) PlanFor(c *Competitor, now time.Time) Plan {
	elapsed := p.periodsBetween(c.LastEventAt, now)
	if elapsed == 0 {
		return Plan{}
	}

	applied := 0
	if c.LastDecayAt.After(c.LastEventAt) {
		applied = p.periodsBetween(c.LastEventAt, c.LastDecayAt)
	}

	periods := elapsed - applied
	if periods <= 0 {
		return Plan{}
	}

	return Plan{
		Periods: periods,
		Factor:  math.Pow(1-p.Rate, float64(periods)),
	}
}
