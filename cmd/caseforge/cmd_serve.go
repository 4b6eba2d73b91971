package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/caseforge/caseforge/internal/api"
	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/observability"
	"github.com/caseforge/caseforge/internal/pipeline"
	"github.com/caseforge/caseforge/internal/publish"
	"github.com/caseforge/caseforge/internal/store"
)

// Runs retained in memory for the API.
const runStoreCapacity = 32

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: "Serves the run API: POST /api/v1/runs triggers a pipeline pass,\n" +
		"GET /api/v1/runs lists completed runs, /metrics exposes Prometheus metrics.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	var publisher pipeline.DetectionPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err := publish.NewPublisher(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	memStore, err := store.NewMemoryStore(runStoreCapacity)
	if err != nil {
		return err
	}

	coordinator := pipeline.NewCoordinator(cfg, logger, metrics, publisher, version)
	server := api.NewServer(cfg, logger, coordinator, memStore, registry, version)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	return server.ListenAndServe(ctx, addr)
}
