// Package api exposes the pipeline over HTTP: trigger runs, inspect
// results, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/pipeline"
	"github.com/caseforge/caseforge/internal/store"
)

// Runner starts one pipeline run. Satisfied by pipeline.Coordinator.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Server serves the run API.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   Runner
	store    *store.MemoryStore
	registry *prometheus.Registry
	version  string

	runMu sync.Mutex
}

// NewServer creates the API server. registry may be nil when metrics are
// disabled.
func NewServer(cfg *config.Config, logger *zap.Logger, runner Runner, memStore *store.MemoryStore, registry *prometheus.Registry, version string) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		store:    memStore,
		registry: registry,
		version:  version,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})

	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleCreateRun executes one pipeline run synchronously. Only one run may
// be in flight at a time; a second request gets 409.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		s.writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	result, err := s.runner.Run(r.Context())
	if err != nil {
		s.logger.Error("pipeline run failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	s.store.Put(result)
	s.writeJSON(w, http.StatusCreated, runSummary(result))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	results := s.store.List()
	summaries := make([]map[string]any, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, runSummary(result))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	result, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func runSummary(result *pipeline.Result) map[string]any {
	return map[string]any{
		"run_id":          result.RunID,
		"started_at":      result.StartedAt,
		"completed_at":    result.CompletedAt,
		"output_dir":      result.OutputDir,
		"event_count":     result.EventCount,
		"detection_count": len(result.Detections),
		"case_count":      len(result.Cases),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
