package query

import (
	"context"
	"errors"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/internal/domain/standings"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPETITOR RATING QUERY
// Получает текущее состояние рейтинга участника: RP, Elo, тир и позиции
// в глобальном и региональном рейтингах.
// ══════════════════════════════════════════════════════════════════════════════

// GetCompetitorRatingQuery содержит параметры запроса рейтинга участника.
type GetCompetitorRatingQuery struct {
	// CompetitorID - ID участника (UUID).
	CompetitorID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetCompetitorRatingQuery) Validate() error {
	if q.CompetitorID == "" {
		return errors.New("competitor_id is required")
	}
	return nil
}

// CompetitorRatingDTO - DTO текущего рейтинга участника.
type CompetitorRatingDTO struct {
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

	// GlobalRank - позиция в глобальном рейтинге (0 = не ранжирован).
	GlobalRank int `json:"global_rank,omitempty"`

	// RegionalRank - позиция в региональном рейтинге (0 = не ранжирован).
	RegionalRank int `json:"regional_rank,omitempty"`

	// RankChange - изменение глобальной позиции с прошлого пересчёта.
	RankChange int `json:"rank_change"`

	// GamesPlayed - количество сыгранных событий.
	GamesPlayed int `json:"games_played"`

	// Provisional - действует ли ещё повышенный K-фактор.
	Provisional bool `json:"provisional"`

	// LastEventAt - время последнего квалифицирующего события.
	LastEventAt time.Time `json:"last_event_at"`
}

// GetCompetitorRatingResult содержит результат запроса.
type GetCompetitorRatingResult struct {
	Rating      CompetitorRatingDTO `json:"rating"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// GetCompetitorRatingHandler обрабатывает запрос рейтинга участника.
type GetCompetitorRatingHandler struct {
	competitorRepo rating.Repository
	standingsRepo  standings.Repository
	standingsCache standings.Cache

	// provisionalGames - порог повышенного K-фактора.
	provisionalGames int
}

// NewGetCompetitorRatingHandler создаёт новый обработчик.
func NewGetCompetitorRatingHandler(
	competitorRepo rating.Repository,
	standingsRepo standings.Repository,
	standingsCache standings.Cache,
	provisionalGames int,
) *GetCompetitorRatingHandler {
	if provisionalGames <= 0 {
		provisionalGames = 10
	}
	return &GetCompetitorRatingHandler{
		competitorRepo:   competitorRepo,
		standingsRepo:    standingsRepo,
		standingsCache:   standingsCache,
		provisionalGames: provisionalGames,
	}
}

// Handle выполняет запрос рейтинга участника.
func (h *GetCompetitorRatingHandler) Handle(ctx context.Context, query GetCompetitorRatingQuery) (*GetCompetitorRatingResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetCompetitorRating", shared.ErrValidation, err.Error(), err)
	}

	id := shared.CompetitorID(query.CompetitorID)
	c, err := h.competitorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := CompetitorRatingDTO{
		CompetitorID: string(c.ID),
		Name:         c.Name,
		Kind:         string(c.Kind),
		Region:       string(c.Region),
		RP:           float64(c.CurrentRP),
		Elo:          float64(c.EloRating),
		Tier:         string(c.Tier),
		GamesPlayed:  c.GamesPlayed,
		Provisional:  c.IsProvisional(h.provisionalGames),
		LastEventAt:  c.LastEventAt,
	}

	// Позиции берутся из последних снапшотов; их отсутствие не является
	// ошибкой - участник просто ещё не ранжирован.
	if entry := h.lookupRank(ctx, id, standings.ScopeGlobal); entry != nil {
		dto.GlobalRank = entry.Rank.Int()
		dto.RankChange = int(entry.RankChange)
	}
	if c.Region != rating.RegionNone {
		if entry := h.lookupRank(ctx, id, standings.RegionScope(c.Region)); entry != nil {
			dto.RegionalRank = entry.Rank.Int()
		}
	}

	return &GetCompetitorRatingResult{
		Rating:      dto,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// lookupRank ищет запись участника: сначала кеш, затем снапшот в Postgres.
func (h *GetCompetitorRatingHandler) lookupRank(ctx context.Context, id shared.CompetitorID, scope standings.Scope) *standings.Entry {
	if h.standingsCache != nil {
		if entry, err := h.standingsCache.GetCachedRank(ctx, id, scope); err == nil && entry != nil {
			return entry
		}
	}

	entry, err := h.standingsRepo.GetCompetitorRank(ctx, id, scope)
	if err != nil {
		return nil
	}
	return entry
}
