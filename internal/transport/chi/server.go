// Package chi exposes the answer pipeline over HTTP: batch and streamed
// question answering, source lookup, health, and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
	healthuc "github.com/spacehacks/bioatlas/internal/usecase/health"
)

// Error codes on the wire.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUpstreamError    = "upstream_error"
	codeInternalError    = "internal_error"
)

// Depend on narrow interfaces so handlers are testable without the full pipeline.

type answerService interface {
	Ask(ctx context.Context, question, persona string) (domain.Answer, error)
	AskStream(ctx context.Context, question, persona string, emit func(domain.StreamEvent) error) error
	Sources(ctx context.Context, question string, k int) ([]domain.Source, error)
}

type healthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements the HTTP API handlers.
type Server struct {
	answers answerService
	health  healthService
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(answers answerService, health healthService, logger *zap.Logger) *Server {
	return &Server{answers: answers, health: health, logger: logger}
}

// Mount registers all routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/api/v1/ask", s.Ask)
	r.Post("/api/v1/ask/stream", s.AskStream)
	r.Get("/api/v1/sources", s.Sources)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Ask handles POST /api/v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	question := req.question()
	if question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "A question or a user message is required")
		return
	}

	answer, err := s.answers.Ask(r.Context(), question, req.Persona)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:    answer.Text,
		Citations: citationsToDTO(answer.Citations),
	})
}

// AskStream handles POST /api/v1/ask/stream as a Server-Sent Events stream:
// one citations event, sanitized chunk events in order, then done or error.
func (s *Server) AskStream(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	question := req.question()
	if question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "A question or a user message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.answers.AskStream(r.Context(), question, req.Persona, func(ev domain.StreamEvent) error {
		return writeSSE(w, flusher, ev)
	})
	if err != nil {
		// The consumer went away mid-stream; nothing left to write to.
		s.logger.Debug("stream consumer gone", zap.Error(err))
	}
}

// writeSSE writes one event as an SSE data line and flushes it downstream
// before the next upstream chunk is pulled.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev domain.StreamEvent) error {
	data, err := json.Marshal(eventToDTO(ev))
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// Sources handles GET /api/v1/sources.
func (s *Server) Sources(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("q")
	if question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query parameter q is required")
		return
	}

	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "Query parameter k must be a positive integer")
			return
		}
		k = parsed
	}

	sources, err := s.answers.Sources(r.Context(), question, k)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]sourceDTO, len(sources))
	for i, src := range sources {
		out[i] = sourceDTO{Title: src.Title, URL: src.URL}
	}
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: out})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": string(report.Status),
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// handleDomainError maps pipeline failures to coarse user-facing responses.
// Full detail stays in the logs.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		s.logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid request")
	case errors.Is(err, domain.ErrGenerationFailed):
		s.logger.Error("generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeUpstreamError, "failed to generate answer")
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrMalformedResponse):
		s.logger.Error("retrieval failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeUpstreamError, "failed to retrieve documents")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
