package chi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/deskindex/internal/logger"
	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/settings"
	healthuc "github.com/kailas-cloud/deskindex/internal/usecase/health"
	"github.com/kailas-cloud/deskindex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/deskindex/internal/usecase/search"
)

// Search query limits.
const (
	MaxQueryLength  = 500
	DefaultLimit    = 20
	MaxLimit        = 50
	DefaultMinScore = 0.5
)

// Searcher runs semantic search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, minScore float64) ([]searchuc.Result, error)
}

// Rebuilder starts and reports index rebuilds.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
	Status() rebuild.State
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// ConfigSource returns the current settings snapshot.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
}

// SearchResponse is the body of GET /api/v2/search.
type SearchResponse struct {
	Results []searchuc.Result `json:"results"`
}

// StatusResponse is the body of GET /api/v2/search/status.
type StatusResponse struct {
	rebuild.State
	Enabled bool `json:"enabled"`
}

// Server serves the search API.
type Server struct {
	search  Searcher
	rebuild Rebuilder
	health  HealthChecker
	config  ConfigSource
	logger  *zap.Logger
	apiKeys []string
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, rebuilder Rebuilder, health HealthChecker, config ConfigSource, logger *zap.Logger) *Server {
	return &Server{
		search:  search,
		rebuild: rebuilder,
		health:  health,
		config:  config,
		logger:  logger,
	}
}

// WithAPIKeys enables Bearer authentication for the API routes.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// Router builds the chi router with the middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/api/v2/search", s.Search)
	r.Post("/api/v2/search/rebuild", s.Rebuild)
	r.Get("/api/v2/search/status", s.Status)
	r.Get("/healthz", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// Search handles GET /api/v2/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"query must be at most "+strconv.Itoa(MaxQueryLength)+" characters")
		return
	}

	limit := DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxLimit {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				"limit must be an integer between 1 and "+strconv.Itoa(MaxLimit))
			return
		}
		limit = v
	}

	minScore := DefaultMinScore
	if raw := q.Get("score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "score must be a number between 0 and 1")
			return
		}
		minScore = v
	}

	results, err := s.search.Search(r.Context(), query, limit, minScore)
	if err != nil {
		handleDomainError(w, logpkg.FromContextOr(r.Context(), s.logger), err)
		return
	}
	if results == nil {
		results = []searchuc.Result{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Rebuild handles POST /api/v2/search/rebuild. The rebuild continues after the response.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	// the worker outlives the request
	if err := s.rebuild.Rebuild(context.WithoutCancel(r.Context())); err != nil {
		handleDomainError(w, logpkg.FromContextOr(r.Context(), s.logger), err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.rebuild.Status())
}

// Status handles GET /api/v2/search/status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := s.config.Get(r.Context())
	if err != nil {
		handleDomainError(w, logpkg.FromContextOr(r.Context(), s.logger), err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{State: s.rebuild.Status(), Enabled: snap.Enabled})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}
