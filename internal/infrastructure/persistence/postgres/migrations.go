package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE COMPETITORS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create competitors table
-- Version: 001

-- Rating-bearing competitors (players and teams).
CREATE TABLE IF NOT EXISTS competitors (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL,
    kind VARCHAR(10) NOT NULL,
    region VARCHAR(20) NOT NULL DEFAULT '',
    current_rp DOUBLE PRECISION NOT NULL DEFAULT 0,
    elo_rating DOUBLE PRECISION NOT NULL DEFAULT 1500,
    tier VARCHAR(20) NOT NULL DEFAULT 'bronze',
    global_rank INTEGER NOT NULL DEFAULT 0,
    previous_rank INTEGER NOT NULL DEFAULT 0,
    rp_change DOUBLE PRECISION NOT NULL DEFAULT 0,
    games_played INTEGER NOT NULL DEFAULT 0,
    last_event_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_decay_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Rating state invariants
    CONSTRAINT valid_kind CHECK (kind IN ('player', 'team')),
    CONSTRAINT valid_tier CHECK (tier IN ('bronze', 'silver', 'gold', 'platinum', 'diamond')),
    CONSTRAINT valid_rp CHECK (current_rp >= 0),
    CONSTRAINT valid_elo CHECK (elo_rating >= 0),
    CONSTRAINT valid_games CHECK (games_played >= 0)
);

-- Indexes for standings and decay queries
CREATE INDEX IF NOT EXISTS idx_competitors_rp ON competitors(current_rp DESC, elo_rating DESC, id ASC);
CREATE INDEX IF NOT EXISTS idx_competitors_region ON competitors(region) WHERE region != '';
CREATE INDEX IF NOT EXISTS idx_competitors_region_rp ON competitors(region, current_rp DESC);
CREATE INDEX IF NOT EXISTS idx_competitors_last_event_at ON competitors(last_event_at);
CREATE INDEX IF NOT EXISTS idx_competitors_tier ON competitors(tier);
`

const migration001Down = `
DROP TABLE IF EXISTS competitors CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE EVENT RESULTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create event_results table
-- Version: 002

-- Immutable ledger of applied rating changes. The unique (event_id,
-- competitor_id) pair is the idempotency key for outcome application.
CREATE TABLE IF NOT EXISTS event_results (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    event_id VARCHAR(64) NOT NULL,
    competitor_id UUID NOT NULL REFERENCES competitors(id) ON DELETE CASCADE,
    placement INTEGER NOT NULL,
    rp_earned DOUBLE PRECISION NOT NULL,
    rp_before DOUBLE PRECISION NOT NULL,
    rp_after DOUBLE PRECISION NOT NULL,
    elo_before DOUBLE PRECISION NOT NULL,
    elo_after DOUBLE PRECISION NOT NULL,
    clamped BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_placement CHECK (placement >= 1),
    CONSTRAINT valid_rp_after CHECK (rp_after >= 0),

    UNIQUE(event_id, competitor_id)
);

CREATE INDEX IF NOT EXISTS idx_event_results_competitor ON event_results(competitor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_event_results_event ON event_results(event_id);
`

const migration002Down = `
DROP TABLE IF EXISTS event_results CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE STANDINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create standings snapshot tables
-- Version: 003

-- One row per recompute of one scope.
CREATE TABLE IF NOT EXISTS standings_snapshots (
    id VARCHAR(64) PRIMARY KEY,
    scope VARCHAR(30) NOT NULL,
    snapshot_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    total_competitors INTEGER NOT NULL DEFAULT 0,
    total_rp DOUBLE PRECISION NOT NULL DEFAULT 0,
    average_rp DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_snapshots_scope_at ON standings_snapshots(scope, snapshot_at DESC);

-- Ranked rows of a snapshot.
CREATE TABLE IF NOT EXISTS standings_entries (
    id SERIAL PRIMARY KEY,
    snapshot_id VARCHAR(64) NOT NULL REFERENCES standings_snapshots(id) ON DELETE CASCADE,
    competitor_id UUID NOT NULL,
    name VARCHAR(100) NOT NULL,
    kind VARCHAR(10) NOT NULL,
    region VARCHAR(20) NOT NULL DEFAULT '',
    rank INTEGER NOT NULL,
    rp DOUBLE PRECISION NOT NULL,
    elo DOUBLE PRECISION NOT NULL,
    tier VARCHAR(20) NOT NULL,
    previous_rank INTEGER NOT NULL DEFAULT 0,
    rank_change INTEGER NOT NULL DEFAULT 0,
    rp_change DOUBLE PRECISION NOT NULL DEFAULT 0,

    CONSTRAINT valid_rank CHECK (rank >= 1),

    UNIQUE(snapshot_id, competitor_id),
    UNIQUE(snapshot_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_entries_snapshot_rank ON standings_entries(snapshot_id, rank);
CREATE INDEX IF NOT EXISTS idx_entries_competitor ON standings_entries(competitor_id);
`

const migration003Down = `
DROP TABLE IF EXISTS standings_entries CASCADE;
DROP TABLE IF EXISTS standings_snapshots CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE API KEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create api_keys table
-- Version: 004

-- API keys for write endpoints. Only the bcrypt hash is stored.
CREATE TABLE IF NOT EXISTS api_keys (
    id SERIAL PRIMARY KEY,
    name VARCHAR(100) NOT NULL UNIQUE,
    key_hash VARCHAR(60) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'submitter',
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('submitter', 'admin'))
);
`

const migration004Down = `
DROP TABLE IF EXISTS api_keys CASCADE;
`
