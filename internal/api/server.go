// Package api exposes the analysis pipeline over HTTP: start a run,
// poll its status, and read the aggregate views once it completes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/citescope/citescope/internal/application"
	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// maxQueriesPerRequest bounds the batch size a caller may request.
const maxQueriesPerRequest = 50

// analysisService is the slice of application.Analyzer the handlers use.
type analysisService interface {
	Start(ctx context.Context, url string, numQueries int) error
	Status() application.Status
	URL() string
	Err() error
	Queries() []domain.Query
	QueryTypeSummary() application.QueryTypeSummary
	QueryDetails(query string) (application.QueryDetail, bool)
	PercentageAnalysis() (application.PercentageAnalysis, bool)
	RawTotals() (application.RawTotals, bool)
	DomainBreakdown() (application.BreakdownView, bool)
}

// Server is the HTTP API over one Analyzer.
type Server struct {
	svc            analysisService
	log            *zap.Logger
	metricsHandler http.Handler
	router         chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetricsHandler mounts handler at /metrics, typically promhttp.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) { s.metricsHandler = handler }
}

// NewServer creates the HTTP API for svc.
func NewServer(svc analysisService, opts ...Option) *Server {
	s := &Server{
		svc: svc,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/start-analysis", s.handleStartAnalysis)
		r.Get("/status", s.handleStatus)
		r.Get("/queries", s.handleQueries)
		r.Get("/aggregate-results", s.handleAggregateResults)
		r.Get("/raw-totals", s.handleRawTotals)
		r.Get("/domain-breakdown", s.handleDomainBreakdown)
		r.Post("/query-details", s.handleQueryDetails)
	})

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "API is running",
	})
}

type startAnalysisRequest struct {
	URL        string `json:"url"`
	NumQueries int    `json:"numQueries"`
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req startAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required in request body")
		return
	}
	if req.NumQueries < 0 || req.NumQueries > maxQueriesPerRequest {
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("numQueries must be between 1 and %d", maxQueriesPerRequest))
		return
	}

	if err := s.svc.Start(r.Context(), req.URL, req.NumQueries); err != nil {
		if errors.Is(err, ports.ErrAlreadyAnalyzing) {
			s.respondError(w, http.StatusConflict, "analysis is already running")
			return
		}
		s.log.Error("failed to start analysis", zap.String("url", req.URL), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"url":    req.URL,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.svc.Status()
	resp := map[string]any{
		"status":     string(status),
		"url":        s.svc.URL(),
		"numQueries": len(s.svc.Queries()),
	}
	if status == application.StatusError {
		if err := s.svc.Err(); err != nil {
			resp["error"] = err.Error()
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueries(w http.ResponseWriter, _ *http.Request) {
	queries := s.svc.Queries()
	structured := make([]map[string]string, 0, len(queries))
	for _, q := range queries {
		structured = append(structured, map[string]string{
			"query": q.Text,
			"type":  string(q.Classification),
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"queries":      structured,
		"queryTypes":   s.svc.QueryTypeSummary(),
		"numOfQueries": len(queries),
	})
}

func (s *Server) handleAggregateResults(w http.ResponseWriter, _ *http.Request) {
	view, ok := s.svc.PercentageAnalysis()
	if !ok || s.svc.Status() != application.StatusComplete {
		s.respondError(w, http.StatusBadRequest, "analysis not complete yet")
		return
	}

	queries := s.svc.Queries()
	texts := make([]string, 0, len(queries))
	for _, q := range queries {
		texts = append(texts, q.Text)
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":            "complete",
		"url":               s.svc.URL(),
		"queries":           texts,
		"domainPercentages": view.DomainPercentages,
		"numOfQueries":      view.NumOfQueries,
	})
}

func (s *Server) handleRawTotals(w http.ResponseWriter, _ *http.Request) {
	view, ok := s.svc.RawTotals()
	if !ok || s.svc.Status() != application.StatusComplete {
		s.respondError(w, http.StatusBadRequest, "analysis not complete yet")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":          "complete",
		"url":             s.svc.URL(),
		"totalLinkCounts": view.TotalLinkCounts,
		"numOfQueries":    view.NumOfQueries,
	})
}

func (s *Server) handleDomainBreakdown(w http.ResponseWriter, _ *http.Request) {
	view, ok := s.svc.DomainBreakdown()
	if !ok || s.svc.Status() != application.StatusComplete {
		s.respondError(w, http.StatusBadRequest, "analysis not complete yet")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":          "complete",
		"url":             s.svc.URL(),
		"domainBreakdown": view.DomainBreakdown,
	})
}

type queryDetailsRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQueryDetails(w http.ResponseWriter, r *http.Request) {
	if s.svc.Status() != application.StatusComplete {
		s.respondError(w, http.StatusBadRequest, "analysis not complete yet")
		return
	}

	var req queryDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required in request body")
		return
	}

	detail, ok := s.svc.QueryDetails(req.Query)
	if !ok {
		s.respondError(w, http.StatusNotFound, "query not found in analysis results")
		return
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
