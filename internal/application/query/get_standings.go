// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
	"github.com/proam-rankings/rankings-hub/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STANDINGS QUERY
// Получает страницу таблицы рейтинга для глобального или регионального скоупа.
// Сначала пробует Redis-кеш, при промахе читает последний снапшот из Postgres.
// ══════════════════════════════════════════════════════════════════════════════

// GetStandingsQuery содержит параметры запроса таблицы рейтинга.
type GetStandingsQuery struct {
	// Region - региональный скоуп (пустая строка = глобальный рейтинг).
	Region string

	// Page - номер страницы (начиная с 1).
	Page int

	// PageSize - размер страницы (по умолчанию 25, максимум 100).
	PageSize int
}

// Validate проверяет корректность параметров запроса.
func (q *GetStandingsQuery) Validate() error {
	if q.Page < 0 {
		return errors.New("page cannot be negative")
	}
	if q.PageSize < 0 {
		return errors.New("page size cannot be negative")
	}
	return nil
}

// Scope возвращает доменный скоуп запроса.
func (q *GetStandingsQuery) Scope() standings.Scope {
	if q.Region == "" {
		return standings.ScopeGlobal
	}
	return standings.RegionScope(rating.Region(q.Region))
}

// Options возвращает нормализованные параметры пагинации.
func (q *GetStandingsQuery) Options() standings.QueryOptions {
	return standings.DefaultQueryOptions().
		WithScope(q.Scope()).
		WithPage(q.Page).
		WithPageSize(q.PageSize)
}

// StandingsEntryDTO - DTO для строки таблицы рейтинга.
type StandingsEntryDTO struct {
	// Rank - плотный ранг (начиная с 1, без пропусков).
	Rank int `json:"rank"`

	// CompetitorID - ID участника.
	CompetitorID string `json:"competitor_id"`

	// Name - геймертег или название команды.
	Name string `json:"name"`

	// Kind - "player" или "team".
	Kind string `json:"kind"`

	// Region - регион участника.
	Region string `json:"region,omitempty"`

	// RP - текущие ranking points.
	RP float64 `json:"rp"`

	// Elo - текущий Elo-рейтинг.
	Elo float64 `json:"elo"`

	// Tier - текущий тир.
	Tier string `json:"tier"`

	// PreviousRank - ранг на предыдущем пересчёте (0 = новичок).
	PreviousRank int `json:"previous_rank,omitempty"`

	// RankChange - изменение ранга (+ вверх, - вниз, 0 стабильно).
	RankChange int `json:"rank_change"`

	// RPChange - изменение RP с предыдущего пересчёта.
	RPChange float64 `json:"rp_change"`
}

// GetStandingsResult содержит результат запроса таблицы рейтинга.
type GetStandingsResult struct {
	// Entries - строки таблицы в порядке рангов.
	Entries []StandingsEntryDTO `json:"entries"`

	// Scope - скоуп, по которому строилась таблица.
	Scope string `json:"scope"`

	// TotalCount - общее количество участников в скоупе.
	TotalCount int `json:"total_count"`

	// Page - текущая страница (1-based).
	Page int `json:"page"`

	// PageSize - размер страницы.
	PageSize int `json:"page_size"`

	// HasMore - есть ли ещё записи после текущей страницы.
	HasMore bool `json:"has_more"`

	// FromCache - получен ли результат из кеша.
	FromCache bool `json:"-"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStandingsHandler обрабатывает запросы таблицы рейтинга.
type GetStandingsHandler struct {
	standingsRepo  standings.Repository
	standingsCache standings.Cache
	metrics        metrics.Metrics
}

// NewGetStandingsHandler создаёт новый обработчик запроса таблицы.
func NewGetStandingsHandler(
	standingsRepo standings.Repository,
	standingsCache standings.Cache,
	m metrics.Metrics,
) *GetStandingsHandler {
	if m == nil {
		m = metrics.Noop{}
	}
	return &GetStandingsHandler{
		standingsRepo:  standingsRepo,
		standingsCache: standingsCache,
		metrics:        m,
	}
}

// Handle выполняет запрос таблицы рейтинга.
func (h *GetStandingsHandler) Handle(ctx context.Context, query GetStandingsQuery) (*GetStandingsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStandings", shared.ErrValidation, err.Error(), err)
	}

	opts := query.Options()
	scope := opts.Scope

	// Сначала кеш: промах или недоступный Redis уводит чтение в Postgres.
	entries, fromCache := h.tryGetFromCache(ctx, opts)
	if fromCache {
		h.metrics.IncStandingsCacheHit()
	} else {
		h.metrics.IncStandingsCacheMiss()

		var err error
		entries, err = h.standingsRepo.GetPage(ctx, scope, opts.Page, opts.PageSize)
		if err != nil {
			return nil, shared.WrapError("query", "GetStandings", shared.ErrStorageUnavailable,
				"failed to read standings page", err)
		}
	}

	totalCount, err := h.standingsRepo.GetTotalCount(ctx, scope)
	if err != nil {
		// Страница уже есть; без точного количества оцениваем снизу.
		totalCount = opts.Offset() + len(entries)
	}

	result := &GetStandingsResult{
		Entries:     make([]StandingsEntryDTO, 0, len(entries)),
		Scope:       scope.String(),
		TotalCount:  totalCount,
		Page:        opts.Page,
		PageSize:    opts.PageSize,
		HasMore:     opts.Offset()+len(entries) < totalCount,
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
	}
	for _, entry := range entries {
		result.Entries = append(result.Entries, toStandingsEntryDTO(entry))
	}

	return result, nil
}

// tryGetFromCache пытается получить страницу из Redis.
func (h *GetStandingsHandler) tryGetFromCache(ctx context.Context, opts standings.QueryOptions) ([]*standings.Entry, bool) {
	if h.standingsCache == nil {
		return nil, false
	}

	entries, err := h.standingsCache.GetCachedPage(ctx, opts.Scope, opts.Page, opts.PageSize)
	if err != nil || entries == nil {
		return nil, false
	}
	return entries, true
}

// toStandingsEntryDTO конвертирует доменную запись в DTO.
func toStandingsEntryDTO(entry *standings.Entry) StandingsEntryDTO {
	return StandingsEntryDTO{
		Rank:         entry.Rank.Int(),
		CompetitorID: string(entry.CompetitorID),
		Name:         entry.Name,
		Kind:         string(entry.Kind),
		Region:       string(entry.Region),
		RP:           float64(entry.RP),
		Elo:          float64(entry.Elo),
		Tier:         string(entry.Tier),
		PreviousRank: entry.PreviousRank.Int(),
		RankChange:   int(entry.RankChange),
		RPChange:     entry.RPChange,
	}
}
