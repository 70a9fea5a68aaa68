// Package httpserver provides the HTTP REST API for the research digest
// service: workflow submission, status polling, the SSE progress stream,
// and static serving of narration artifacts.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/heliograph/research-digest/internal/domain"
	"github.com/heliograph/research-digest/internal/observability"
	"github.com/heliograph/research-digest/internal/pipeline"
)

// serviceVersion is reported by the health endpoint.
const serviceVersion = "1.0.0"

// WorkflowStarter is the coordinator surface the submission handlers use.
type WorkflowStarter interface {
	StartSearch(workflowID string, req pipeline.SearchRequest) *domain.WorkflowRecord
	StartUpload(workflowID string, req pipeline.UploadRequest) *domain.WorkflowRecord
}

// WorkflowReader is the registry surface the status handlers use.
type WorkflowReader interface {
	Get(id string) (*domain.WorkflowRecord, bool)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// UploadsDir is where uploaded files are stored before extraction.
	UploadsDir string
	// AudioDir is served read-only under /audio/.
	AudioDir string

	MetricsEnabled bool
	MetricsPath    string

	// StreamSampleInterval is the registry sampling cadence of the SSE
	// progress stream.
	StreamSampleInterval time.Duration
	// StreamGraceDelay is the pause after the terminal snapshot before
	// the stream closes.
	StreamGraceDelay time.Duration
	// StreamMaxDuration bounds how long one stream may stay open.
	StreamMaxDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.StreamSampleInterval <= 0 {
		c.StreamSampleInterval = time.Second
	}
	if c.StreamGraceDelay <= 0 {
		c.StreamGraceDelay = 500 * time.Millisecond
	}
	if c.StreamMaxDuration <= 0 {
		c.StreamMaxDuration = 30 * time.Minute
	}
}

// Server is the HTTP REST API server.
type Server struct {
	config      Config
	router      chi.Router
	httpServer  *http.Server
	coordinator WorkflowStarter
	registry    WorkflowReader
	validate    *validator.Validate
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(cfg Config, coordinator WorkflowStarter, registry WorkflowReader, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	cfg.applyDefaults()
	s := &Server{
		config:      cfg,
		coordinator: coordinator,
		registry:    registry,
		validate:    validator.New(),
		metrics:     metrics,
		logger:      logger.With().Str("component", "http-server").Logger(),
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

// Router exposes the chi router, primarily for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.rootHandler)
	r.Get("/healthz", s.healthHandler)

	if s.config.MetricsEnabled {
		r.Handle(s.config.MetricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/process/search", s.processSearch)
		r.Post("/process/upload", s.processUpload)
		r.Get("/status/{workflowID}", s.getStatus)
		r.Get("/status/{workflowID}/stream", s.streamStatus)
	})

	if s.config.AudioDir != "" {
		fs := http.StripPrefix("/audio/", http.FileServer(http.Dir(s.config.AudioDir)))
		r.Get("/audio/*", fs.ServeHTTP)
	}

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

// rootHandler returns service info and the available endpoints.
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Research Digest API",
		"status":  "running",
		"version": serviceVersion,
		"endpoints": map[string]string{
			"health": "/healthz",
			"search": "/api/v1/process/search",
			"upload": "/api/v1/process/upload",
			"status": "/api/v1/status/{workflow_id}",
			"stream": "/api/v1/status/{workflow_id}/stream",
		},
	})
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Research Digest API",
		"version": serviceVersion,
	})
}

// requestLogger logs one line per completed request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request handled")
	})
}
