// Package api wires the HTTP server: routes, middleware and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/tradesim/internal/api/handler/api"
	"github.com/newthinker/tradesim/internal/api/job"
	"github.com/newthinker/tradesim/internal/api/middleware"
	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/metrics"
	"github.com/newthinker/tradesim/internal/strategy"
	"go.uber.org/zap"
)

// Server represents the HTTP server for tradesim
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
	// JobTimeout bounds each backtest or sweep job.
	JobTimeout time.Duration
}

// Dependencies holds the collaborators the handlers need.
type Dependencies struct {
	Jobs       *job.Store
	Backtester apihandler.Backtester
	Strategies *strategy.Registry
	Runs       apihandler.RunReader // optional; nil disables /api/v1/runs
	Metrics    *metrics.Registry    // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Jobs == nil || deps.Backtester == nil || deps.Strategies == nil {
		return nil, errors.New("jobs, backtester and strategies are required")
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.Instrument(deps.Metrics)(handler)
	}
	handler = metrics.AccessLog(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	hdeps := apihandler.Deps{
		Jobs:       deps.Jobs,
		Backtester: deps.Backtester,
		Strategies: deps.Strategies,
		Logger:     s.logger,
		Timeout:    cfg.JobTimeout,
	}
	if deps.Metrics != nil {
		hdeps.Gauge = deps.Metrics
	}

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, deps.Metrics.Handler())
	}

	auth := middleware.APIKeyAuth(cfg.APIKey)
	v1 := http.NewServeMux()

	backtests := apihandler.NewBacktestHandler(hdeps)
	v1.HandleFunc("POST /api/v1/backtests", backtests.Create)
	v1.HandleFunc("GET /api/v1/backtests/{id}", backtests.GetStatus)

	sweeps := apihandler.NewSweepHandler(hdeps)
	v1.HandleFunc("POST /api/v1/sweeps", sweeps.Create)
	v1.HandleFunc("GET /api/v1/sweeps/{id}", sweeps.GetStatus)

	v1.HandleFunc("GET /api/v1/jobs", apihandler.ListJobs(deps.Jobs))
	v1.HandleFunc("GET /api/v1/strategies", apihandler.ListStrategies(deps.Strategies))

	if deps.Runs != nil {
		runs := apihandler.NewRunHandler(deps.Runs)
		v1.HandleFunc("GET /api/v1/runs", runs.List)
		v1.HandleFunc("GET /api/v1/runs/{id}", runs.Get)
	}

	s.mux.Handle("/api/v1/", auth(v1))
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
