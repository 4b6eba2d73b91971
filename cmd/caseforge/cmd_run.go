package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/observability"
	"github.com/caseforge/caseforge/internal/pipeline"
	"github.com/caseforge/caseforge/internal/publish"
	"github.com/caseforge/caseforge/internal/store"
)

var (
	zeekDir     string
	suricataDir string
	outputDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one batch pipeline run",
	Long: "Reads the configured Zeek and Suricata logs, runs the detectors and\n" +
		"case assembly, and writes the run artifacts to a timestamped directory.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&zeekDir, "zeek", "", "override Zeek log directory")
	runCmd.Flags().StringVar(&suricataDir, "suricata", "", "override Suricata log directory")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "override run output directory")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if zeekDir != "" {
		cfg.Inputs.ZeekDir = zeekDir
	}
	if suricataDir != "" {
		cfg.Inputs.SuricataDir = suricataDir
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx := cmd.Context()

	var publisher pipeline.DetectionPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err := publish.NewPublisher(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	coordinator := pipeline.NewCoordinator(cfg, logger, nil, publisher, version)
	result, err := coordinator.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		archive, err := store.NewRunArchive(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis archive unavailable", zap.Error(err))
		} else {
			defer archive.Close()
			if err := archive.Archive(ctx, result); err != nil {
				logger.Warn("failed to archive run", zap.Error(err))
			}
		}
	}

	fmt.Printf("run %s complete: %d events, %d detections, %d cases\n",
		result.RunID, result.EventCount, len(result.Detections), len(result.Cases))
	fmt.Printf("artifacts written to %s\n", result.OutputDir)
	return nil
}
