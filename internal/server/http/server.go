// Package httpserver provides the HTTP REST API over the paper repository.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-feed-service/internal/database"
	"github.com/helixir/paper-feed-service/internal/domain"
	"github.com/helixir/paper-feed-service/internal/observability"
)

// PaperService is the repository surface the HTTP API serves.
// *repository.PaperRepository satisfies it.
type PaperService interface {
	SourceName() string
	GetFeed(ctx context.Context, sort domain.FeedSort) []domain.Paper
	GetPaperDetails(ctx context.Context, id string) domain.Paper
	SearchPapers(ctx context.Context, query string) []domain.Paper
	GetBlog(ctx context.Context, id, lang string) string
	GetBookmarks(ctx context.Context) []domain.Paper
	IsBookmarked(id string) bool
	ToggleBookmark(ctx context.Context, id string) (bool, error)
	OverviewLanguage() string
	SetOverviewLanguage(ctx context.Context, lang string) error
}

// HealthChecker reports database health. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	papers     PaperService
	health     HealthChecker
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server. health may be nil when no database is
// configured; metrics may be nil.
func NewServer(
	cfg Config,
	papers PaperService,
	health HealthChecker,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		papers:   papers,
		health:   health,
		validate: newValidator(),
		metrics:  metrics,
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(middleware.Recoverer)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/feed", s.getFeed)
		r.Get("/search", s.searchPapers)

		r.Get("/papers/{paperID}", s.getPaper)
		r.Get("/papers/{paperID}/overview", s.getOverview)

		r.Get("/bookmarks", s.listBookmarks)
		r.Get("/bookmarks/{paperID}", s.getBookmark)
		r.Post("/bookmarks/{paperID}/toggle", s.toggleBookmark)

		r.Get("/preferences/language", s.getLanguage)
		r.Put("/preferences/language", s.setLanguage)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"source": s.papers.SourceName(),
	})
}

// readinessHandler reports ready once the database, if any, is healthy.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ready",
			"database": "disabled",
		})
		return
	}

	health := s.health.Health(r.Context())
	if health.Status != database.StatusHealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": database.StatusHealthy,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
