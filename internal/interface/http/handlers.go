// Package http implements the REST API for the rankings platform.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/proam-rankings/rankings-hub/internal/application/command"
	"github.com/proam-rankings/rankings-hub/internal/application/query"
	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Rankings Hub API",
		"version":     "v1",
		"description": "Competitive rating and standings service",
		"endpoints": map[string]string{
			"health":    "/health",
			"standings": "/api/v1/standings",
			"rating":    "/api/v1/competitors/{id}/rating",
			"results":   "/api/v1/competitors/{id}/results",
			"outcomes":  "/api/v1/outcomes",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStandings handles GET /api/v1/standings
func (s *Server) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	s.handleStandingsInternal(w, r, "")
}

// handleGetRegionalStandings handles GET /api/v1/standings/{region}
func (s *Server) handleGetRegionalStandings(w http.ResponseWriter, r *http.Request) {
	region := r.PathValue("region")
	s.handleStandingsInternal(w, r, region)
}

// handleStandingsInternal is the internal implementation for standings handlers.
func (s *Server) handleStandingsInternal(w http.ResponseWriter, r *http.Request, region string) {
	if s.deps.GetStandingsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Standings handler not configured")
		return
	}

	q := query.GetStandingsQuery{
		Region:   region,
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", 25),
	}

	result, err := s.deps.GetStandingsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get standings")
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		Page:       result.Page,
		PageSize:   result.PageSize,
		HasMore:    result.HasMore,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPETITOR HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCompetitorRating handles GET /api/v1/competitors/{id}/rating
func (s *Server) handleGetCompetitorRating(w http.ResponseWriter, r *http.Request) {
	competitorID := r.PathValue("id")
	if competitorID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Competitor ID is required")
		return
	}

	if s.deps.GetCompetitorRatingHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rating handler not configured")
		return
	}

	q := query.GetCompetitorRatingQuery{CompetitorID: competitorID}

	result, err := s.deps.GetCompetitorRatingHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get competitor rating")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetResults handles GET /api/v1/competitors/{id}/results
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	competitorID := r.PathValue("id")
	if competitorID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Competitor ID is required")
		return
	}

	if s.deps.GetResultsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Results handler not configured")
		return
	}

	q := query.GetResultsQuery{
		CompetitorID: competitorID,
		Limit:        getQueryParamInt(r, "limit", 20),
	}

	result, err := s.deps.GetResultsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get results")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// registerCompetitorRequest is the payload for POST /api/v1/competitors.
type registerCompetitorRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Region string `json:"region,omitempty"`
}

// handleRegisterCompetitor handles POST /api/v1/competitors
func (s *Server) handleRegisterCompetitor(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterCompetitorHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Registration handler not configured")
		return
	}

	var req registerCompetitorRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.RegisterCompetitorCommand{
		ID:            req.ID,
		Name:          req.Name,
		Kind:          req.Kind,
		Region:        req.Region,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.RegisterCompetitorHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to register competitor")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"competitor_id": string(result.Competitor.ID),
		"name":          result.Competitor.Name,
		"kind":          string(result.Competitor.Kind),
		"region":        string(result.Competitor.Region),
		"rp":            float64(result.Competitor.CurrentRP),
		"elo":           float64(result.Competitor.EloRating),
		"tier":          string(result.Competitor.Tier),
		"registered_at": result.RegisteredAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOME HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// submitOutcomeRequest is the payload for POST /api/v1/outcomes.
type submitOutcomeRequest struct {
	EventID      string             `json:"event_id"`
	Tier         string             `json:"tier"`
	Type         string             `json:"type"`
	Participants []participantInput `json:"participants"`
	OccurredAt   time.Time          `json:"occurred_at,omitempty"`
}

type participantInput struct {
	CompetitorID string `json:"competitor_id"`
	Placement    int    `json:"placement"`
}

// appliedResult is one participant's entry in the submission response.
type appliedResult struct {
	CompetitorID string  `json:"competitor_id"`
	Placement    int     `json:"placement"`
	RPEarned     float64 `json:"rp_earned"`
	RPAfter      float64 `json:"rp_after"`
	EloAfter     float64 `json:"elo_after"`
	Clamped      bool    `json:"clamped"`
}

// handleSubmitOutcome handles POST /api/v1/outcomes
func (s *Server) handleSubmitOutcome(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitOutcomeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Outcome handler not configured")
		return
	}

	var req submitOutcomeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	participants := make([]command.ParticipantInput, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = command.ParticipantInput{
			CompetitorID: p.CompetitorID,
			Placement:    p.Placement,
		}
	}

	cmd := command.SubmitOutcomeCommand{
		EventID:       req.EventID,
		Tier:          req.Tier,
		Type:          req.Type,
		Participants:  participants,
		OccurredAt:    req.OccurredAt,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SubmitOutcomeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to submit outcome")
		return
	}

	applied := make([]appliedResult, len(result.Results))
	for i, res := range result.Results {
		applied[i] = appliedResult{
			CompetitorID: string(res.CompetitorID),
			Placement:    res.Placement,
			RPEarned:     res.RPEarned,
			RPAfter:      res.RPAfter,
			EloAfter:     res.EloAfter,
			Clamped:      res.Clamped,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":     result.EventID,
		"results":      applied,
		"tier_changes": result.TierChanges,
		"applied_at":   result.AppliedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRunDecay handles POST /api/v1/admin/decay
func (s *Server) handleRunDecay(w http.ResponseWriter, r *http.Request) {
	if s.deps.RunDecayHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Decay handler not configured")
		return
	}

	cmd := command.RunDecayCommand{CorrelationID: getRequestID(r.Context())}

	result, err := s.deps.RunDecayHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "decay tick failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checked":         result.Checked,
		"decayed":         result.Decayed,
		"periods_applied": result.PeriodsApplied,
		"total_rp_lost":   result.TotalRPLost,
		"duration":        result.Duration.String(),
	})
}

// handleRecompute handles POST /api/v1/admin/recompute
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecomputeHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Recompute handler not configured")
		return
	}

	cmd := command.RecomputeStandingsCommand{CorrelationID: getRequestID(r.Context())}

	result, err := s.deps.RecomputeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "standings recompute failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_competitors":  result.TotalCompetitors,
		"scopes_processed":   result.ScopesProcessed,
		"snapshots_created":  result.SnapshotsCreated,
		"rank_changes_found": result.RankChangesFound,
		"duration":           result.Duration.String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps a domain error onto an HTTP status and response body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	status, code := httpStatusFor(err)

	if status >= 500 {
		s.logger.Error(logMsg,
			slog.Any("error", err),
			slog.String("request_id", getRequestID(r.Context())),
		)
	} else {
		s.logger.Debug(logMsg,
			slog.Any("error", err),
			slog.String("request_id", getRequestID(r.Context())),
		)
	}

	writeJSONError(w, status, code, err.Error())
}

// httpStatusFor translates the domain error taxonomy into HTTP semantics.
// Duplicate submissions get 409 so the submitter can tell a replay from a
// rejection; transient storage failures get 503 with no body detail lost.
func httpStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsDuplicate(err), shared.IsAlreadyExists(err):
		return http.StatusConflict, "conflict"
	case shared.IsValidation(err), errors.Is(err, shared.ErrInvalidEntity), errors.Is(err, shared.ErrFutureTimestamp):
		return http.StatusUnprocessableEntity, "validation_failed"
	case shared.IsRetryable(err), errors.Is(err, shared.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSONBody decodes a request body, rejecting unknown fields.
func decodeJSONBody(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
