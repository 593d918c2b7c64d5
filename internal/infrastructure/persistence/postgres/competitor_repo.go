package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITOR REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const competitorColumns = `id, name, kind, region, current_rp, elo_rating, tier,
	   global_rank, previous_rank, rp_change, games_played,
	   last_event_at, last_decay_at, created_at, updated_at`

// CompetitorRepository implements rating.Repository and rating.Store for
// PostgreSQL. All rating mutations go through ApplyOutcome and ApplyDecay,
// which serialize per competitor with a row lock: an outcome application
// and a decay tick can never interleave on the same row.
type CompetitorRepository struct {
	conn *Connection
}

// NewCompetitorRepository creates a new CompetitorRepository.
func NewCompetitorRepository(conn *Connection) *CompetitorRepository {
	return &CompetitorRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create registers a new competitor.
func (r *CompetitorRepository) Create(ctx context.Context, c *rating.Competitor) error {
	query := `
		INSERT INTO competitors (
			id, name, kind, region, current_rp, elo_rating, tier,
			global_rank, previous_rank, rp_change, games_played,
			last_event_at, last_decay_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.conn.Exec(ctx, query,
		string(c.ID),
		c.Name,
		string(c.Kind),
		string(c.Region),
		float64(c.CurrentRP),
		float64(c.EloRating),
		string(c.Tier),
		c.GlobalRank,
		c.PreviousRank,
		c.RPChange,
		c.GamesPlayed,
		c.LastEventAt,
		nullableTime(c.LastDecayAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrCompetitorExists
		}
		return fmt.Errorf("failed to create competitor: %w", err)
	}

	return nil
}

// GetByID returns a competitor by ID.
func (r *CompetitorRepository) GetByID(ctx context.Context, id shared.CompetitorID) (*rating.Competitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM competitors WHERE id = $1`, competitorColumns)

	row := r.conn.QueryRow(ctx, query, string(id))
	c, err := scanCompetitor(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetitorNotFound
		}
		return nil, fmt.Errorf("failed to get competitor: %w", err)
	}
	return c, nil
}

// GetByIDs returns competitors keyed by ID; missing IDs are absent.
func (r *CompetitorRepository) GetByIDs(ctx context.Context, ids []shared.CompetitorID) (map[shared.CompetitorID]*rating.Competitor, error) {
	if len(ids) == 0 {
		return map[shared.CompetitorID]*rating.Competitor{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(id)
	}

	query := fmt.Sprintf(`SELECT %s FROM competitors WHERE id IN (%s)`,
		competitorColumns, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors by ids: %w", err)
	}
	defer rows.Close()

	result := make(map[shared.CompetitorID]*rating.Competitor, len(ids))
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		result[c.ID] = c
	}
	return result, rows.Err()
}

// List returns all competitors, optionally filtered by region.
func (r *CompetitorRepository) List(ctx context.Context, region rating.Region) ([]*rating.Competitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM competitors`, competitorColumns)
	args := []interface{}{}
	if region != rating.RegionNone {
		query += ` WHERE region = $1`
		args = append(args, string(region))
	}
	query += ` ORDER BY current_rp DESC, elo_rating DESC, id ASC`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	competitors := make([]*rating.Competitor, 0)
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		competitors = append(competitors, c)
	}
	return competitors, rows.Err()
}

// ListRegions returns the distinct non-empty regions.
func (r *CompetitorRepository) ListRegions(ctx context.Context) ([]rating.Region, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT DISTINCT region FROM competitors WHERE region != '' ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	regions := make([]rating.Region, 0)
	for rows.Next() {
		var region string
		if err := rows.Scan(&region); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, rating.Region(region))
	}
	return regions, rows.Err()
}

// Count returns the total number of competitors.
func (r *CompetitorRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM competitors").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count competitors: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rating Store (atomic mutations)
// ─────────────────────────────────────────────────────────────────────────────

// ApplyOutcome applies a whole outcome in one transaction: lock every
// participant row, mutate each rating state, persist them, and append all
// audit records. A failure on any participant rolls everything back, so a
// resubmission after a crash never meets a half-applied outcome. The unique
// (event_id, competitor_id) index enforces idempotency; a replay of an
// already applied outcome rolls the transaction back as a duplicate.
func (r *CompetitorRepository) ApplyOutcome(ctx context.Context, ref rating.OutcomeRef, apps []rating.Application) ([]*rating.EventResult, error) {
	if len(apps) == 0 {
		return nil, nil
	}

	var results []*rating.EventResult

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		results = results[:0]

		// Lock rows in ascending competitor ID order so two concurrent
		// outcomes sharing participants cannot deadlock on each other.
		lockOrder := make([]shared.CompetitorID, 0, len(apps))
		for _, app := range apps {
			lockOrder = append(lockOrder, app.CompetitorID)
		}
		sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i] < lockOrder[j] })

		locked := make(map[shared.CompetitorID]*rating.Competitor, len(apps))
		for _, id := range lockOrder {
			c, err := lockCompetitor(ctx, tx, id)
			if err != nil {
				return err
			}
			locked[id] = c
		}

		for _, app := range apps {
			c := locked[app.CompetitorID]

			rpBefore := float64(c.CurrentRP)
			eloBefore := float64(c.EloRating)
			_, clamped := c.ApplyResult(app.RPDelta, app.EloDelta, ref.At)

			if err := updateRatingState(ctx, tx, c); err != nil {
				return err
			}

			result := &rating.EventResult{
				ID:           uuid.NewString(),
				EventID:      ref.EventID,
				CompetitorID: app.CompetitorID,
				Placement:    app.Placement,
				RPEarned:     app.RPDelta,
				RPBefore:     rpBefore,
				RPAfter:      float64(c.CurrentRP),
				EloBefore:    eloBefore,
				EloAfter:     float64(c.EloRating),
				Clamped:      clamped,
				CreatedAt:    ref.At,
			}

			insertQuery := `
				INSERT INTO event_results (
					id, event_id, competitor_id, placement, rp_earned,
					rp_before, rp_after, elo_before, elo_after, clamped, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`
			_, err := tx.Exec(ctx, insertQuery,
				result.ID,
				string(result.EventID),
				string(result.CompetitorID),
				result.Placement,
				result.RPEarned,
				result.RPBefore,
				result.RPAfter,
				result.EloBefore,
				result.EloAfter,
				result.Clamped,
				result.CreatedAt,
			)
			if err != nil {
				if IsUniqueViolation(err) {
					return shared.ErrDuplicateResult
				}
				return fmt.Errorf("failed to insert event result: %w", err)
			}

			results = append(results, result)
		}

		return nil
	})
	if err != nil {
		return nil, mapStoreError("ApplyOutcome", err)
	}

	return results, nil
}

// ApplyDecay applies the decay a tick at now should produce, re-planning
// under the row lock so a result that committed after the caller's read
// turns the call into a no-op.
func (r *CompetitorRepository) ApplyDecay(ctx context.Context, id shared.CompetitorID, policy rating.DecayPolicy, now time.Time) (int, error) {
	periods := 0

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		c, err := lockCompetitor(ctx, tx, id)
		if err != nil {
			return err
		}

		plan := policy.PlanFor(c, now)
		if plan.IsNoop() {
			return nil
		}

		if err := c.ApplyDecay(plan.Factor, now); err != nil {
			return err
		}

		periods = plan.Periods
		return updateRatingState(ctx, tx, c)
	})
	if err != nil {
		return 0, mapStoreError("ApplyDecay", err)
	}

	return periods, nil
}

// ListResults returns a competitor's most recent event results.
func (r *CompetitorRepository) ListResults(ctx context.Context, id shared.CompetitorID, limit int) ([]*rating.EventResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, event_id, competitor_id, placement, rp_earned,
			   rp_before, rp_after, elo_before, elo_after, clamped, created_at
		FROM event_results
		WHERE competitor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list event results: %w", err)
	}
	defer rows.Close()

	results := make([]*rating.EventResult, 0, limit)
	for rows.Next() {
		res := &rating.EventResult{}
		var eventID, competitorID string
		if err := rows.Scan(
			&res.ID, &eventID, &competitorID, &res.Placement, &res.RPEarned,
			&res.RPBefore, &res.RPAfter, &res.EloBefore, &res.EloAfter,
			&res.Clamped, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event result: %w", err)
		}
		res.EventID = shared.EventID(eventID)
		res.CompetitorID = shared.CompetitorID(competitorID)
		results = append(results, res)
	}
	return results, rows.Err()
}

// HasResult reports whether a result exists for (eventID, id).
func (r *CompetitorRepository) HasResult(ctx context.Context, eventID shared.EventID, id shared.CompetitorID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM event_results WHERE event_id = $1 AND competitor_id = $2)`,
		string(eventID), string(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event result: %w", err)
	}
	return exists, nil
}

// UpdateRanks writes recomputed global placements back onto competitor rows
// in one transaction. Ranks are cleared first, so a competitor that dropped
// out of the ranking does not keep a stale position.
func (r *CompetitorRepository) UpdateRanks(ctx context.Context, updates []rating.RankUpdate) error {
	now := time.Now().UTC()

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE competitors
			 SET global_rank = 0, previous_rank = 0, rp_change = 0, updated_at = $1
			 WHERE global_rank <> 0`,
			now,
		); err != nil {
			return fmt.Errorf("failed to clear ranks: %w", err)
		}

		for _, u := range updates {
			if _, err := tx.Exec(ctx,
				`UPDATE competitors
				 SET global_rank = $2, previous_rank = $3, rp_change = $4, updated_at = $5
				 WHERE id = $1`,
				string(u.CompetitorID), u.GlobalRank, u.PreviousRank, u.RPChange, now,
			); err != nil {
				return fmt.Errorf("failed to update rank for %s: %w", u.CompetitorID, err)
			}
		}
		return nil
	})
	if err != nil {
		return mapStoreError("UpdateRanks", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// lockCompetitor reads a competitor under FOR UPDATE within tx.
func lockCompetitor(ctx context.Context, tx pgx.Tx, id shared.CompetitorID) (*rating.Competitor, error) {
	query := fmt.Sprintf(`SELECT %s FROM competitors WHERE id = $1 FOR UPDATE`, competitorColumns)

	c, err := scanCompetitor(tx.QueryRow(ctx, query, string(id)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCompetitorNotFound
		}
		return nil, fmt.Errorf("failed to lock competitor: %w", err)
	}
	return c, nil
}

// updateRatingState writes back the mutable rating columns.
func updateRatingState(ctx context.Context, tx pgx.Tx, c *rating.Competitor) error {
	query := `
		UPDATE competitors SET
			current_rp = $1,
			elo_rating = $2,
			tier = $3,
			games_played = $4,
			last_event_at = $5,
			last_decay_at = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := tx.Exec(ctx, query,
		float64(c.CurrentRP),
		float64(c.EloRating),
		string(c.Tier),
		c.GamesPlayed,
		c.LastEventAt,
		nullableTime(c.LastDecayAt),
		c.UpdatedAt,
		string(c.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update rating state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCompetitorNotFound
	}
	return nil
}

// scanCompetitor scans one competitor row.
func scanCompetitor(row pgx.Row) (*rating.Competitor, error) {
	c := &rating.Competitor{}
	var id, name, kind, region, tier string
	var currentRP, eloRating float64
	var lastDecayAt *time.Time

	err := row.Scan(
		&id, &name, &kind, &region, &currentRP, &eloRating, &tier,
		&c.GlobalRank, &c.PreviousRank, &c.RPChange, &c.GamesPlayed,
		&c.LastEventAt, &lastDecayAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = shared.CompetitorID(id)
	c.Name = name
	c.Kind = rating.Kind(kind)
	c.Region = rating.Region(region)
	c.CurrentRP = rating.RP(currentRP)
	c.EloRating = rating.Elo(eloRating)
	c.Tier = rating.Tier(tier)
	if lastDecayAt != nil {
		c.LastDecayAt = *lastDecayAt
	}
	return c, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapStoreError translates storage failures into the domain error contract.
// Domain errors pass through untouched.
func mapStoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case shared.IsDuplicate(err), shared.IsNotFound(err), shared.IsValidation(err):
		return err
	case IsSerializationFailure(err):
		return shared.WrapError("rating", op, shared.ErrStorageConflict, "transaction conflict", err)
	default:
		return shared.WrapError("rating", op, shared.ErrStorageUnavailable, "storage failure", err)
	}
}
