// Package api exposes backtest runs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handler "github.com/hindsightlab/hindsight/internal/api/handler/api"
	"github.com/hindsightlab/hindsight/internal/api/job"
	"github.com/hindsightlab/hindsight/internal/api/middleware"
	"github.com/hindsightlab/hindsight/internal/app"
	"github.com/hindsightlab/hindsight/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	AuthToken      string
	MaxJobs        int
	JobTTL         time.Duration
	MetricsEnabled bool
	MetricsPath    string
}

// Server is the HTTP front of the orchestrator.
type Server struct {
	httpServer *http.Server
	jobStore   *job.Store
	logger     *zap.Logger
}

// NewServer wires the API routes around an App. Health and metrics
// stay outside authentication; everything under /api/v1 requires the
// configured bearer token.
func NewServer(cfg Config, a *app.App, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}

	jobStore := job.NewStore(cfg.MaxJobs, cfg.JobTTL)
	backtestHandler := handler.NewBacktestHandler(jobStore, a)
	strategiesHandler := handler.NewStrategiesHandler(a)
	symbolsHandler := handler.NewSymbolsHandler(a)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/v1/backtest", backtestHandler.Create)
	apiMux.HandleFunc("GET /api/v1/backtest/{id}", backtestHandler.GetStatus)
	apiMux.HandleFunc("GET /api/v1/strategies", strategiesHandler.List)
	apiMux.HandleFunc("GET /api/v1/symbols", symbolsHandler.List)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", middleware.BearerAuth(cfg.AuthToken)(apiMux))
	mux.HandleFunc("GET /healthz", handleHealth)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(a.Metrics(), promhttp.HandlerOpts{}))
	}

	var root http.Handler = mux
	root = metrics.HTTPMiddleware(a.Metrics())(root)
	root = metrics.LoggingMiddleware(logger)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		jobStore: jobStore,
		logger:   logger,
	}
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
