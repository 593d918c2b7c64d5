package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout keyed by competitor ID, region targeting, and
// time-based activation, so a ranking-format change can be trialled on a
// slice of the ladder before going global.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	overrides map[string]map[string]bool // competitorID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Competitors are assigned based on hash of their ID
	RolloutPercent int

	// Region targeting (e.g., "na-east", "eu")
	// Empty means all regions
	TargetRegions []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	CompetitorID string // competitor UUID
	Region       string // competitor region
	IsAdmin      bool   // request authenticated with an admin API key
}

// Predefined feature flag names.
const (
	// === Standings Features ===
	FeatureStandingsRankChange = "standings.rank_change" // Annotate rank movement (+2, -1)
	FeatureStandingsRegional   = "standings.regional"    // Regional scopes alongside global
	FeatureStandingsCache      = "standings.cache"       // Serve pages from Redis
	FeatureStandingsNeighbors  = "standings.neighbors"   // Entries around a competitor

	// === Rating Features ===
	FeatureRatingDecay      = "rating.decay"       // Scheduled RP decay
	FeatureRatingMultiElo   = "rating.multi_elo"   // Elo movement for N>2 events
	FeatureRatingTierEvents = "rating.tier_events" // Publish tier change events
	FeatureRatingAuditTrail = "rating.audit_trail" // Expose per-event results over HTTP

	// === API Features ===
	FeatureAPIRegistration = "api.registration" // Competitor registration endpoint
	FeatureAPIRateLimit    = "api.rate_limit"   // Per-key request throttling

	// === Experimental Features ===
	FeatureExperimentalSeasons  = "experimental.seasons"  // Seasonal rating resets
	FeatureExperimentalWebhooks = "experimental.webhooks" // Push standings updates
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:  make(map[string]*Feature),
		overrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Standings features - enabled by default
	ff.features[FeatureStandingsRankChange] = &Feature{
		Name:           FeatureStandingsRankChange,
		Description:    "Annotate rank movement in standings",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStandingsRegional] = &Feature{
		Name:           FeatureStandingsRegional,
		Description:    "Regional standings scopes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStandingsCache] = &Feature{
		Name:           FeatureStandingsCache,
		Description:    "Serve standings pages from Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureStandingsNeighbors] = &Feature{
		Name:           FeatureStandingsNeighbors,
		Description:    "Entries around a competitor",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Rating features
	ff.features[FeatureRatingDecay] = &Feature{
		Name:           FeatureRatingDecay,
		Description:    "Scheduled RP decay for inactivity",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRatingMultiElo] = &Feature{
		Name:           FeatureRatingMultiElo,
		Description:    "Pairwise Elo for multi-sided events",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRatingTierEvents] = &Feature{
		Name:           FeatureRatingTierEvents,
		Description:    "Publish tier change events",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRatingAuditTrail] = &Feature{
		Name:           FeatureRatingAuditTrail,
		Description:    "Expose per-event results over HTTP",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// API features
	ff.features[FeatureAPIRegistration] = &Feature{
		Name:           FeatureAPIRegistration,
		Description:    "Competitor registration endpoint",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAPIRateLimit] = &Feature{
		Name:           FeatureAPIRateLimit,
		Description:    "Per-key request throttling",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalSeasons] = &Feature{
		Name:           FeatureExperimentalSeasons,
		Description:    "Seasonal rating resets",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalWebhooks] = &Feature{
		Name:           FeatureExperimentalWebhooks,
		Description:    "Push standings updates to subscribers",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_RATING_DECAY=false
// Example: FEATURE_EXPERIMENTAL_SEASONS=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "standings.rank_change" -> "FEATURE_STANDINGS_RANK_CHANGE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check per-competitor overrides first
	if ctx != nil && ctx.CompetitorID != "" {
		if overrides, ok := ff.overrides[ctx.CompetitorID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin keys get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check region targeting
	if len(feature.TargetRegions) > 0 && ctx != nil && ctx.Region != "" {
		regionMatch := false
		for _, r := range feature.TargetRegions {
			if r == ctx.Region {
				regionMatch = true
				break
			}
		}
		if !regionMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.CompetitorID != "" {
		return ff.isInRollout(ctx.CompetitorID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a competitor is in the rollout percentage.
// Uses consistent hashing so competitors stay in their bucket.
func (ff *FeatureFlags) isInRollout(competitorID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(competitorID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetOverride sets a feature override for a specific competitor.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetOverride(competitorID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.overrides[competitorID]; !ok {
		ff.overrides[competitorID] = make(map[string]bool)
	}
	ff.overrides[competitorID][featureName] = enabled
}

// ClearOverrides removes all overrides for a competitor.
func (ff *FeatureFlags) ClearOverrides(competitorID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.overrides, competitorID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
