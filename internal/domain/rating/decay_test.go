package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

const testCompetitorID = shared.CompetitorID("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b")

func newTestCompetitor(t *testing.T, lastEventAt time.Time) *Competitor {
	t.Helper()
	c, err := NewCompetitor(testCompetitorID, "Test Squad", KindTeam, "na", lastEventAt)
	assert.NoError(t, err)
	c.CurrentRP = 1000
	return c
}

func TestDecayPlan_NoopWithinWindow(t *testing.T) {
	policy := DefaultDecayPolicy()
	lastEvent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCompetitor(t, lastEvent)

	// 13 days elapsed, window is 14 days.
	plan := policy.PlanFor(c, lastEvent.Add(13*24*time.Hour))
	assert.True(t, plan.IsNoop())
}

func TestDecayPlan_TwoFullPeriods(t *testing.T) {
	policy := DefaultDecayPolicy()
	lastEvent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCompetitor(t, lastEvent)

	// 30 days of inactivity with a 14-day window is two complete periods.
	now := lastEvent.Add(30 * 24 * time.Hour)
	plan := policy.PlanFor(c, now)

	assert.Equal(t, 2, plan.Periods)
	assert.InDelta(t, 0.81, plan.Factor, 1e-9)

	err := c.ApplyDecay(plan.Factor, now)
	assert.NoError(t, err)
	assert.InDelta(t, 810, float64(c.CurrentRP), 1e-9)
}

func TestDecayPlan_SecondTickIsIdempotent(t *testing.T) {
	policy := DefaultDecayPolicy()
	lastEvent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCompetitor(t, lastEvent)

	now := lastEvent.Add(30 * 24 * time.Hour)
	plan := policy.PlanFor(c, now)
	assert.NoError(t, c.ApplyDecay(plan.Factor, now))

	// Re-running the tick with the same clock finds nothing new to apply.
	again := policy.PlanFor(c, now)
	assert.True(t, again.IsNoop())
	assert.InDelta(t, 810, float64(c.CurrentRP), 1e-9)
}

func TestDecayPlan_OnlyNewPeriodsAfterPartialApplication(t *testing.T) {
	policy := DefaultDecayPolicy()
	lastEvent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCompetitor(t, lastEvent)

	// First tick after one window.
	tick1 := lastEvent.Add(15 * 24 * time.Hour)
	plan1 := policy.PlanFor(c, tick1)
	assert.Equal(t, 1, plan1.Periods)
	assert.NoError(t, c.ApplyDecay(plan1.Factor, tick1))
	assert.InDelta(t, 900, float64(c.CurrentRP), 1e-9)

	// Second tick two windows after the event applies only the new period.
	tick2 := lastEvent.Add(29 * 24 * time.Hour)
	plan2 := policy.PlanFor(c, tick2)
	assert.Equal(t, 1, plan2.Periods)
	assert.NoError(t, c.ApplyDecay(plan2.Factor, tick2))
	assert.InDelta(t, 810, float64(c.CurrentRP), 1e-9)
}

func TestDecayPlan_NewEventResetsBaseline(t *testing.T) {
	policy := DefaultDecayPolicy()
	lastEvent := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCompetitor(t, lastEvent)

	tick := lastEvent.Add(15 * 24 * time.Hour)
	assert.NoError(t, c.ApplyDecay(policy.PlanFor(c, tick).Factor, tick))

	// A fresh result moves LastEventAt past LastDecayAt.
	eventAt := lastEvent.Add(16 * 24 * time.Hour)
	c.ApplyResult(30, 5, eventAt)

	plan := policy.PlanFor(c, eventAt.Add(13*24*time.Hour))
	assert.True(t, plan.IsNoop())
}

func TestApplyDecay_RejectsFactorOutOfRange(t *testing.T) {
	c := newTestCompetitor(t, time.Now().UTC())

	assert.Error(t, c.ApplyDecay(0, time.Now().UTC()))
	assert.Error(t, c.ApplyDecay(1.5, time.Now().UTC()))
	assert.NoError(t, c.ApplyDecay(1, time.Now().UTC()))
}

func TestApplyDecay_NeverTouchesElo(t *testing.T) {
	c := newTestCompetitor(t, time.Now().UTC())
	c.EloRating = 1720

	assert.NoError(t, c.ApplyDecay(0.9, time.Now().UTC()))
	assert.Equal(t, Elo(1720), c.EloRating)
}
