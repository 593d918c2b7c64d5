package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

func TestNewCompetitor_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewCompetitor(testCompetitorID, "  HoopStars  ", KindTeam, "eu", now)

	assert.NoError(t, err)
	assert.Equal(t, "HoopStars", c.Name)
	assert.Equal(t, RP(0), c.CurrentRP)
	assert.Equal(t, Elo(EloBaseline), c.EloRating)
	assert.Equal(t, TierBronze, c.Tier)
	assert.Equal(t, now, c.LastEventAt)
	assert.True(t, c.LastDecayAt.IsZero())
	assert.Equal(t, 0, c.GamesPlayed)
}

func TestNewCompetitor_Validation(t *testing.T) {
	now := time.Now().UTC()

	_, err := NewCompetitor("not-a-uuid", "Team", KindTeam, "na", now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = NewCompetitor(testCompetitorID, "   ", KindTeam, "na", now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewCompetitor(testCompetitorID, "Team", Kind("guild"), "na", now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewCompetitor(testCompetitorID, "Team", KindTeam, "x", now)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestApplyResult_UpdatesRatingState(t *testing.T) {
	now := time.Now().UTC()
	c := newTestCompetitor(t, now)

	eventAt := now.Add(time.Hour)
	newRP, clamped := c.ApplyResult(45, 12.5, eventAt)

	assert.False(t, clamped)
	assert.Equal(t, RP(1045), newRP)
	assert.Equal(t, RP(1045), c.CurrentRP)
	assert.Equal(t, Elo(1512.5), c.EloRating)
	assert.Equal(t, 1, c.GamesPlayed)
	assert.Equal(t, eventAt, c.LastEventAt)
	assert.Equal(t, TierGold, c.Tier)
}

func TestApplyResult_ClampsRPAtZero(t *testing.T) {
	now := time.Now().UTC()
	c := newTestCompetitor(t, now)
	c.CurrentRP = 10

	newRP, clamped := c.ApplyResult(-25, -8, now.Add(time.Hour))

	assert.True(t, clamped)
	assert.Equal(t, RP(0), newRP)
	assert.Equal(t, RP(0), c.CurrentRP)
	// Elo is unclamped by outcome application; only the floor stops it.
	assert.Equal(t, Elo(1492), c.EloRating)
}

func TestApplyResult_RefreshesTierDownward(t *testing.T) {
	now := time.Now().UTC()
	c := newTestCompetitor(t, now)
	c.CurrentRP = 1020
	c.Tier = TierGold

	c.ApplyResult(-50, -4, now.Add(time.Hour))

	assert.Equal(t, RP(970), c.CurrentRP)
	assert.Equal(t, TierSilver, c.Tier)
}

func TestIsProvisional(t *testing.T) {
	c := newTestCompetitor(t, time.Now().UTC())

	assert.True(t, c.IsProvisional(10))
	c.GamesPlayed = 9
	assert.True(t, c.IsProvisional(10))
	c.GamesPlayed = 10
	assert.False(t, c.IsProvisional(10))
}

func TestRPAdd_Clamping(t *testing.T) {
	rp, clamped := RP(100).Add(-150)
	assert.True(t, clamped)
	assert.Equal(t, RP(0), rp)

	rp, clamped = RP(100).Add(-100)
	assert.False(t, clamped)
	assert.Equal(t, RP(0), rp)

	rp, clamped = RP(100).Add(50)
	assert.False(t, clamped)
	assert.Equal(t, RP(150), rp)
}
