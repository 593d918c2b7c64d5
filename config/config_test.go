package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proam-rankings/rankings-hub/internal/domain/outcome"
	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rankings-hub", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 120, cfg.HTTP.RateLimit)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.DecayTickInterval)
	assert.Equal(t, 7, cfg.Scheduler.SnapshotRetentionDays)
	assert.NotNil(t, cfg.Features)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RATING_DECAY_RATE", "0.25")
	t.Setenv("RATING_BASE_AWARDS", "100, 60, 40, 20")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 0.25, cfg.Rating.DecayRate)
	assert.Equal(t, []float64{100, 60, 40, 20}, cfg.Rating.BaseAwards)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_ProductionRequiresDatabaseURL(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_USER", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_RejectsBadRatingTables(t *testing.T) {
	t.Setenv("RATING_BASE_AWARDS", "50,30")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATING_BASE_AWARDS")
}

func TestValidate_RejectsBadDecayRate(t *testing.T) {
	t.Setenv("RATING_DECAY_RATE", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATING_DECAY_RATE")
}

func TestValidate_RejectsUnknownMultiPolicy(t *testing.T) {
	t.Setenv("RATING_MULTI_POLICY", "round_robin")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATING_MULTI_POLICY")
}

func TestToOutcomeConfig(t *testing.T) {
	r := RatingConfig{
		BaseAwards:         []float64{100, 60, 40, 20},
		PlacementCurve:     []float64{1.0, 0.5},
		ParticipationFloor: 0.2,
		TypeMultipliers:    []float64{2.0, 1.0, 1.0, 0.5},
		EloSpread:          350,
		KByTier:            []float64{40, 30, 20, 10},
		KProvisional:       50,
		ProvisionalGames:   5,
		MultiPolicy:        "none",
	}

	cfg := r.ToOutcomeConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100.0, cfg.BaseAwards[outcome.EventTierT1])
	assert.Equal(t, 20.0, cfg.BaseAwards[outcome.EventTierT4])
	assert.Equal(t, 2.0, cfg.TypeMultipliers[outcome.EventTypeTournament])
	assert.Equal(t, 0.5, cfg.TypeMultipliers[outcome.EventTypeBYOT])
	assert.Equal(t, []float64{1.0, 0.5}, cfg.PlacementCurve)
	assert.Equal(t, 0.2, cfg.ParticipationFloor)
	assert.Equal(t, 350.0, cfg.EloSpread)
	assert.Equal(t, 40.0, cfg.KByTier[outcome.EventTierT1])
	assert.Equal(t, 50.0, cfg.KProvisional)
	assert.Equal(t, 5, cfg.ProvisionalGames)
	assert.Equal(t, outcome.PairwiseNone, cfg.MultiPolicy)
}

func TestToOutcomeConfig_PartialFallsBackToDefaults(t *testing.T) {
	// A wrong-length award table keeps the built-in values.
	r := RatingConfig{BaseAwards: []float64{100, 60}}
	cfg := r.ToOutcomeConfig()

	defaults := outcome.DefaultConfig()
	assert.Equal(t, defaults.BaseAwards[outcome.EventTierT1], cfg.BaseAwards[outcome.EventTierT1])
	assert.Equal(t, defaults.KByTier, cfg.KByTier)
}

func TestToDecayPolicy(t *testing.T) {
	r := RatingConfig{DecayWindow: 7 * 24 * time.Hour, DecayRate: 0.05}
	policy := r.ToDecayPolicy()
	assert.Equal(t, 7*24*time.Hour, policy.Window)
	assert.Equal(t, 0.05, policy.Rate)

	// Invalid settings fall back to the default policy.
	invalid := RatingConfig{DecayWindow: 0, DecayRate: 2}
	assert.Equal(t, rating.DefaultDecayPolicy(), invalid.ToDecayPolicy())
}

func TestGetEnvFloatSlice(t *testing.T) {
	t.Setenv("TEST_FLOATS", "1.5, 2, ,3.25")
	assert.Equal(t, []float64{1.5, 2, 3.25}, getEnvFloatSlice("TEST_FLOATS", nil))

	t.Setenv("TEST_FLOATS", "1.5,abc")
	assert.Equal(t, []float64{9}, getEnvFloatSlice("TEST_FLOATS", []float64{9}))

	assert.Equal(t, []float64{1, 2}, getEnvFloatSlice("TEST_FLOATS_UNSET", []float64{1, 2}))
}

func TestEnvironmentHelpers(t *testing.T) {
	dev := &Config{App: AppConfig{Environment: EnvDevelopment}}
	assert.True(t, dev.IsDevelopment())
	assert.False(t, dev.IsProduction())

	prod := &Config{App: AppConfig{Environment: EnvProduction}}
	assert.True(t, prod.IsProduction())
}
