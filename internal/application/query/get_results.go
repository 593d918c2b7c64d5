package query

import (
	"context"
	"errors"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/domain/rating"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
	"github.com/proam-rankings/rankings-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RESULTS QUERY
// Получает последние результаты событий участника (audit trail применённых
// изменений рейтинга), от новых к старым.
// ══════════════════════════════════════════════════════════════════════════════

// GetResultsQuery содержит параметры запроса истории результатов.
type GetResultsQuery struct {
	// CompetitorID - ID участника (UUID).
	CompetitorID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetResultsQuery) Validate() error {
	if q.CompetitorID == "" {
		return errors.New("competitor_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// EventResultDTO - DTO одного применённого результата.
type EventResultDTO struct {
	// EventID - идентификатор события.
	EventID string `json:"event_id"`

	// Placement - финальная позиция участника в событии.
	Placement int `json:"placement"`

	// RPEarned - начисленный RP (отрицательный при поражении).
	RPEarned float64 `json:"rp_earned"`

	// RPBefore / RPAfter - RP до и после применения.
	RPBefore float64 `json:"rp_before"`
	RPAfter  float64 `json:"rp_after"`

	// EloBefore / EloAfter - Elo до и после применения.
	EloBefore float64 `json:"elo_before"`
	EloAfter  float64 `json:"elo_after"`

	// Clamped - сработал ли нулевой пол по RP.
	Clamped bool `json:"clamped"`

	// AppliedAt - когда результат был записан.
	AppliedAt time.Time `json:"applied_at"`

	// AppliedAgo - человекочитаемое относительное время.
	AppliedAgo string `json:"applied_ago"`
}

// GetResultsResult содержит результат запроса истории.
type GetResultsResult struct {
	// CompetitorID - участник, чья история запрошена.
	CompetitorID string `json:"competitor_id"`

	// Results - результаты от новых к старым.
	Results []EventResultDTO `json:"results"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetResultsHandler обрабатывает запрос истории результатов.
type GetResultsHandler struct {
	competitorRepo rating.Repository
	store          rating.Store
}

// NewGetResultsHandler создаёт новый обработчик истории результатов.
func NewGetResultsHandler(competitorRepo rating.Repository, store rating.Store) *GetResultsHandler {
	return &GetResultsHandler{
		competitorRepo: competitorRepo,
		store:          store,
	}
}

// Handle выполняет запрос истории результатов.
func (h *GetResultsHandler) Handle(ctx context.Context, query GetResultsQuery) (*GetResultsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetResults", shared.ErrValidation, err.Error(), err)
	}

	id := shared.CompetitorID(query.CompetitorID)

	// Несуществующий участник должен давать 404, а не пустую историю.
	if _, err := h.competitorRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	results, err := h.store.ListResults(ctx, id, query.Limit)
	if err != nil {
		return nil, shared.WrapError("query", "GetResults", shared.ErrStorageUnavailable,
			"failed to read event results", err)
	}

	out := &GetResultsResult{
		CompetitorID: query.CompetitorID,
		Results:      make([]EventResultDTO, 0, len(results)),
		GeneratedAt:  time.Now().UTC(),
	}
	for _, r := range results {
		out.Results = append(out.Results, EventResultDTO{
			EventID:    string(r.EventID),
			Placement:  r.Placement,
			RPEarned:   r.RPEarned,
			RPBefore:   r.RPBefore,
			RPAfter:    r.RPAfter,
			EloBefore:  r.EloBefore,
			EloAfter:   r.EloAfter,
			Clamped:    r.Clamped,
			AppliedAt:  r.CreatedAt,
			AppliedAgo: timeutil.FormatRelative(r.CreatedAt),
		})
	}

	return out, nil
}
