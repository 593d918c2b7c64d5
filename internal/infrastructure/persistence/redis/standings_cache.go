package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCache serves hot standings pages from Redis Sorted Sets.
//
// Architecture:
//   - Sorted Set "standings:rank:{scope}" stores competitorID -> rank
//   - Hash "standings:info:{scope}" stores competitorID -> entry JSON
//   - String "standings:meta:{scope}" stores rebuild metadata
//
// Ranks are dense and precomputed by the recompute pass, so the sorted set
// scores ARE the ranks; Redis is a page server here, not a rank authority.
// This gives O(log N + M) page reads and O(1) per-competitor lookups.
type StandingsCache struct {
	cache *Cache
}

// Key patterns for the standings cache.
const (
	// keyStandingsRank is the sorted set of ranks.
	keyStandingsRank = "standings:rank:"

	// keyStandingsInfo is the hash of entry details.
	keyStandingsInfo = "standings:info:"

	// keyStandingsMeta is the metadata key.
	keyStandingsMeta = "standings:meta:"
)

// ErrCompetitorIDEmpty is returned for empty competitor IDs.
var ErrCompetitorIDEmpty = errors.New("cache: competitor ID cannot be empty")

// StandingsMeta describes the cached standings of one scope.
type StandingsMeta struct {
	RebuiltAt        time.Time `json:"rebuilt_at"`
	SnapshotID       string    `json:"snapshot_id"`
	TotalCompetitors int64     `json:"total_competitors"`
	Scope            string    `json:"scope"`
}

// cachedEntry is the JSON shape of a standings entry in the info hash.
type cachedEntry struct {
	CompetitorID string  `json:"competitor_id"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Region       string  `json:"region"`
	Rank         int     `json:"rank"`
	RP           float64 `json:"rp"`
	Elo          float64 `json:"elo"`
	Tier         string  `json:"tier"`
	PreviousRank int     `json:"previous_rank"`
	RankChange   int     `json:"rank_change"`
	RPChange     float64 `json:"rp_change"`
}

func toCachedEntry(e *standings.Entry) cachedEntry {
	return cachedEntry{
		CompetitorID: string(e.CompetitorID),
		Name:         e.Name,
		Kind:         string(e.Kind),
		Region:       string(e.Region),
		Rank:         int(e.Rank),
		RP:           float64(e.RP),
		Elo:          float64(e.Elo),
		Tier:         string(e.Tier),
		PreviousRank: int(e.PreviousRank),
		RankChange:   int(e.RankChange),
		RPChange:     e.RPChange,
	}
}

func (ce cachedEntry) toDomain() *standings.Entry {
	return &standings.Entry{
		CompetitorID: shared.CompetitorID(ce.CompetitorID),
		Name:         ce.Name,
		Kind:         rating.Kind(ce.Kind),
		Region:       rating.Region(ce.Region),
		Rank:         standings.Rank(ce.Rank),
		RP:           rating.RP(ce.RP),
		Elo:          rating.Elo(ce.Elo),
		Tier:         rating.Tier(ce.Tier),
		PreviousRank: standings.Rank(ce.PreviousRank),
		RankChange:   standings.RankChange(ce.RankChange),
		RPChange:     ce.RPChange,
	}
}

// NewStandingsCache creates a new StandingsCache instance.
func NewStandingsCache(cache *Cache) *StandingsCache {
	return &StandingsCache{cache: cache}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SetStandings replaces the cached standings of a scope with the given
// entries. The rebuild is a transactional pipeline: readers see either the
// old standings or the new ones, never a mix.
func (s *StandingsCache) SetStandings(ctx context.Context, scope standings.Scope, entries []*standings.Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLStandingsCache
	}

	rankKey := keyStandingsRank + string(scope)
	infoKey := keyStandingsInfo + string(scope)
	metaKey := keyStandingsMeta + string(scope)

	pipe := s.cache.Client().TxPipeline()

	pipe.Del(ctx, rankKey, infoKey)

	if len(entries) > 0 {
		zMembers := make([]redis.Z, 0, len(entries))
		hashData := make(map[string]interface{}, len(entries))

		for _, entry := range entries {
			if entry.CompetitorID.IsEmpty() {
				continue
			}

			zMembers = append(zMembers, redis.Z{
				Score:  float64(entry.Rank),
				Member: string(entry.CompetitorID),
			})

			data, err := json.Marshal(toCachedEntry(entry))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			hashData[string(entry.CompetitorID)] = data
		}

		pipe.ZAdd(ctx, rankKey, zMembers...)
		pipe.HSet(ctx, infoKey, hashData)
	}

	meta := StandingsMeta{
		RebuiltAt:        time.Now().UTC(),
		TotalCompetitors: int64(len(entries)),
		Scope:            string(scope),
	}
	metaData, _ := json.Marshal(meta)
	pipe.Set(ctx, metaKey, metaData, ttl)

	pipe.Expire(ctx, rankKey, ttl)
	pipe.Expire(ctx, infoKey, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetCachedPage returns one page of the cached standings, or nil when the
// scope is not cached. page starts at 1.
func (s *StandingsCache) GetCachedPage(ctx context.Context, scope standings.Scope, page, pageSize int) ([]*standings.Entry, error) {
	if page < 1 || pageSize <= 0 {
		return nil, nil
	}

	rankKey := keyStandingsRank + string(scope)

	exists, err := s.cache.Exists(ctx, rankKey)
	if err != nil || !exists {
		return nil, err
	}

	from := int64((page - 1) * pageSize)
	to := from + int64(pageSize) - 1

	// Scores are ranks, so ascending range order is standings order.
	ids, err := s.cache.Client().ZRange(ctx, rankKey, from, to).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read standings range: %w", err)
	}
	if len(ids) == 0 {
		return []*standings.Entry{}, nil
	}

	return s.loadEntries(ctx, scope, ids)
}

// GetCachedRank returns the cached entry for one competitor, or nil when
// the competitor (or the scope) is not cached.
func (s *StandingsCache) GetCachedRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) (*standings.Entry, error) {
	if id.IsEmpty() {
		return nil, ErrCompetitorIDEmpty
	}

	infoKey := keyStandingsInfo + string(scope)

	data, err := s.cache.Client().HGet(ctx, infoKey, string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached rank: %w", err)
	}

	var ce cachedEntry
	if err := json.Unmarshal(data, &ce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return ce.toDomain(), nil
}

// GetCount returns the number of cached competitors for a scope.
func (s *StandingsCache) GetCount(ctx context.Context, scope standings.Scope) (int64, error) {
	return s.cache.Client().ZCard(ctx, keyStandingsRank+string(scope)).Result()
}

// GetMeta returns the rebuild metadata for a scope, or nil when uncached.
func (s *StandingsCache) GetMeta(ctx context.Context, scope standings.Scope) (*StandingsMeta, error) {
	var meta StandingsMeta
	err := s.cache.Get(ctx, keyStandingsMeta+string(scope), &meta)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// loadEntries resolves competitor IDs to entries via the info hash.
func (s *StandingsCache) loadEntries(ctx context.Context, scope standings.Scope, ids []string) ([]*standings.Entry, error) {
	infoKey := keyStandingsInfo + string(scope)

	fields := make([]string, len(ids))
	copy(fields, ids)

	values, err := s.cache.Client().HMGet(ctx, infoKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load standings entries: %w", err)
	}

	entries := make([]*standings.Entry, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var ce cachedEntry
		if err := json.Unmarshal([]byte(str), &ce); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entries = append(entries, ce.toDomain())
	}
	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Invalidate drops the cached standings of a scope.
func (s *StandingsCache) Invalidate(ctx context.Context, scope standings.Scope) error {
	return s.cache.Delete(ctx,
		keyStandingsRank+string(scope),
		keyStandingsInfo+string(scope),
		keyStandingsMeta+string(scope),
	)
}

// InvalidateAll drops every cached scope.
func (s *StandingsCache) InvalidateAll(ctx context.Context) error {
	for _, pattern := range []string{
		keyStandingsRank + "*",
		keyStandingsInfo + "*",
		keyStandingsMeta + "*",
	} {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}
