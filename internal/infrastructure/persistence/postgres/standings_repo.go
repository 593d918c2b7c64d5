package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StandingsRepository implements standings.Repository for PostgreSQL.
type StandingsRepository struct {
	conn *Connection
}

// NewStandingsRepository creates a new StandingsRepository.
func NewStandingsRepository(conn *Connection) *StandingsRepository {
	return &StandingsRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// SNAPSHOT OPERATIONS
// ─────────────────────────────────────────────────────────────────────────────

// SaveSnapshot persists a snapshot with all of its entries in one transaction.
func (r *StandingsRepository) SaveSnapshot(ctx context.Context, snapshot *standings.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO standings_snapshots (id, scope, snapshot_at, total_competitors, total_rp, average_rp)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			snapshot.ID,
			string(snapshot.Scope),
			snapshot.SnapshotAt,
			snapshot.TotalCompetitors,
			snapshot.TotalRP,
			float64(snapshot.AverageRP),
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		if len(snapshot.Entries) > 0 {
			batch := &pgx.Batch{}
			for _, entry := range snapshot.Entries {
				batch.Queue(`
					INSERT INTO standings_entries
					(snapshot_id, competitor_id, name, kind, region, rank, rp, elo, tier,
					 previous_rank, rank_change, rp_change)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				`,
					snapshot.ID,
					string(entry.CompetitorID),
					entry.Name,
					string(entry.Kind),
					string(entry.Region),
					int(entry.Rank),
					float64(entry.RP),
					float64(entry.Elo),
					string(entry.Tier),
					int(entry.PreviousRank),
					int(entry.RankChange),
					entry.RPChange,
				)
			}

			br := tx.SendBatch(ctx, batch)
			defer br.Close()

			for range snapshot.Entries {
				if _, err := br.Exec(); err != nil {
					return fmt.Errorf("failed to insert entry: %w", err)
				}
			}
		}

		return nil
	})
}

// GetLatestSnapshot returns the most recent snapshot for a scope.
func (r *StandingsRepository) GetLatestSnapshot(ctx context.Context, scope standings.Scope) (*standings.Snapshot, error) {
	return r.querySnapshot(ctx, `
		SELECT id, scope, snapshot_at, total_competitors, total_rp, average_rp
		FROM standings_snapshots
		WHERE scope = $1
		ORDER BY snapshot_at DESC
		LIMIT 1
	`, string(scope))
}

// GetSnapshotByID returns a snapshot by ID.
func (r *StandingsRepository) GetSnapshotByID(ctx context.Context, id string) (*standings.Snapshot, error) {
	return r.querySnapshot(ctx, `
		SELECT id, scope, snapshot_at, total_competitors, total_rp, average_rp
		FROM standings_snapshots
		WHERE id = $1
	`, id)
}

// querySnapshot loads one snapshot header plus its entries.
func (r *StandingsRepository) querySnapshot(ctx context.Context, query string, arg interface{}) (*standings.Snapshot, error) {
	var snapshot standings.Snapshot
	var scopeStr string
	var avgRP float64

	err := r.conn.QueryRow(ctx, query, arg).Scan(
		&snapshot.ID,
		&scopeStr,
		&snapshot.SnapshotAt,
		&snapshot.TotalCompetitors,
		&snapshot.TotalRP,
		&avgRP,
	)
	if IsNoRows(err) {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.Scope = standings.Scope(scopeStr)
	snapshot.AverageRP = rating.RP(avgRP)

	entries, err := r.getSnapshotEntries(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Entries = entries
	snapshot.RebuildIndex()

	return &snapshot, nil
}

// getSnapshotEntries loads the entries of a snapshot in rank order.
func (r *StandingsRepository) getSnapshotEntries(ctx context.Context, snapshotID string) ([]*standings.Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT competitor_id, name, kind, region, rank, rp, elo, tier,
			   previous_rank, rank_change, rp_change
		FROM standings_entries
		WHERE snapshot_id = $1
		ORDER BY rank ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*standings.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListSnapshots returns snapshot metadata for a scope within a period.
func (r *StandingsRepository) ListSnapshots(ctx context.Context, scope standings.Scope, from, to time.Time) ([]standings.SnapshotMeta, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, scope, snapshot_at, total_competitors, total_rp, average_rp
		FROM standings_snapshots
		WHERE scope = $1 AND snapshot_at >= $2 AND snapshot_at <= $3
		ORDER BY snapshot_at DESC
	`, string(scope), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	metas := make([]standings.SnapshotMeta, 0)
	for rows.Next() {
		var meta standings.SnapshotMeta
		var scopeStr string
		var avgRP float64
		if err := rows.Scan(&meta.ID, &scopeStr, &meta.SnapshotAt,
			&meta.TotalCompetitors, &meta.TotalRP, &avgRP); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot meta: %w", err)
		}
		meta.Scope = standings.Scope(scopeStr)
		meta.AverageRP = rating.RP(avgRP)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// DeleteOldSnapshots removes snapshots older than the cutoff, keeping the
// latest snapshot of each scope as the diff baseline.
func (r *StandingsRepository) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.conn.Exec(ctx, `
		DELETE FROM standings_snapshots
		WHERE snapshot_at < $1
		  AND id NOT IN (
			SELECT DISTINCT ON (scope) id
			FROM standings_snapshots
			ORDER BY scope, snapshot_at DESC
		  )
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old snapshots: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RANKING QUERIES (read model)
// ─────────────────────────────────────────────────────────────────────────────

// GetCompetitorRank returns a competitor's entry in the latest snapshot.
func (r *StandingsRepository) GetCompetitorRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT e.competitor_id, e.name, e.kind, e.region, e.rank, e.rp, e.elo, e.tier,
			   e.previous_rank, e.rank_change, e.rp_change
		FROM standings_entries e
		JOIN standings_snapshots s ON s.id = e.snapshot_id
		WHERE e.competitor_id = $1 AND s.scope = $2
		ORDER BY s.snapshot_at DESC
		LIMIT 1
	`, string(id), string(scope))

	entry, err := scanEntry(row)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetPage returns one page of the latest snapshot for a scope.
func (r *StandingsRepository) GetPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	opts := standings.DefaultQueryOptions().WithScope(scope).WithPage(page).WithPageSize(pageSize)

	rows, err := r.conn.Query(ctx, `
		SELECT e.competitor_id, e.name, e.kind, e.region, e.rank, e.rp, e.elo, e.tier,
			   e.previous_rank, e.rank_change, e.rp_change
		FROM standings_entries e
		WHERE e.snapshot_id = (
			SELECT id FROM standings_snapshots
			WHERE scope = $1
			ORDER BY snapshot_at DESC
			LIMIT 1
		)
		ORDER BY e.rank ASC
		LIMIT $2 OFFSET $3
	`, string(scope), opts.Limit(), opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query standings page: %w", err)
	}
	defer rows.Close()

	entries := make([]*standings.Entry, 0, opts.Limit())
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetTotalCount returns the number of ranked competitors in the scope.
func (r *StandingsRepository) GetTotalCount(ctx context.Context, scope standings.Scope) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `
		SELECT total_competitors FROM standings_snapshots
		WHERE scope = $1
		ORDER BY snapshot_at DESC
		LIMIT 1
	`, string(scope)).Scan(&count)
	if IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count standings: %w", err)
	}
	return count, nil
}

// scanEntry scans one standings entry row.
func scanEntry(row pgx.Row) (*standings.Entry, error) {
	entry := &standings.Entry{}
	var competitorID, name, kind, region, tier string
	var rank, previousRank, rankChange int
	var rp, elo float64

	err := row.Scan(
		&competitorID, &name, &kind, &region, &rank, &rp, &elo, &tier,
		&previousRank, &rankChange, &entry.RPChange,
	)
	if err != nil {
		return nil, err
	}

	entry.CompetitorID = shared.CompetitorID(competitorID)
	entry.Name = name
	entry.Kind = rating.Kind(kind)
	entry.Region = rating.Region(region)
	entry.Rank = standings.Rank(rank)
	entry.RP = rating.RP(rp)
	entry.Elo = rating.Elo(elo)
	entry.Tier = rating.Tier(tier)
	entry.PreviousRank = standings.Rank(previousRank)
	entry.RankChange = standings.RankChange(rankChange)
	return entry, nil
}
