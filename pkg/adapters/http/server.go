// Package http exposes the orchestrator over a thin JSON API. No business
// logic lives here; it only maps requests to ProcessTurn and the audit
// queries.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tellerflow/tellerflow"
	"github.com/tellerflow/tellerflow/internal/logging"
	"github.com/tellerflow/tellerflow/pkg/domain"
)

// Orchestrator defines the core surface the HTTP layer depends on.
type Orchestrator interface {
	ProcessTurn(ctx context.Context, input tellerflow.TurnInput) (*tellerflow.TurnResult, error)
	AuditTrail(ctx context.Context, sessionID string) ([]*domain.IdempotencyRecord, error)
	History(ctx context.Context, userID string, limit int) ([]*domain.IdempotencyRecord, error)
}

// Server maps HTTP requests onto the orchestrator.
type Server struct {
	orch     Orchestrator
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets a structured logger for request failures.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsGatherer exposes the given registry on GET /metrics.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for the orchestrator.
func NewHandler(orch Orchestrator, opts ...ServerOption) http.Handler {
	s := &Server{
		orch:   orch,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Post("/v1/turns", s.processTurn)
	r.Get("/v1/sessions/{sessionID}/audit", s.sessionAudit)
	r.Get("/v1/users/{userID}/history", s.userHistory)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) processTurn(w http.ResponseWriter, r *http.Request) {
	var input tellerflow.TurnInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.SessionID == "" || input.UserID == "" {
		http.Error(w, "session_id and user_id are required", http.StatusBadRequest)
		return
	}

	result, err := s.orch.ProcessTurn(r.Context(), input)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "turn processing failed",
			"session_id", input.SessionID, "err", err)
		http.Error(w, "turn processing failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) sessionAudit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	records, err := s.orch.AuditTrail(r.Context(), sessionID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "audit trail query failed",
			"session_id", sessionID, "err", err)
		http.Error(w, "audit trail query failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) userHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.orch.History(r.Context(), userID, limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history query failed",
			"user_id", userID, "err", err)
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}
