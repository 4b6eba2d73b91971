// Package pipeline runs the batch triage pipeline end to end: ingest,
// normalize, detect, assemble cases, validate, and write the run artifacts.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/critic"
	"github.com/caseforge/caseforge/internal/detect"
	"github.com/caseforge/caseforge/internal/evidence"
	"github.com/caseforge/caseforge/internal/ingest"
	"github.com/caseforge/caseforge/internal/normalize"
	"github.com/caseforge/caseforge/internal/observability"
	"github.com/caseforge/caseforge/internal/report"
	"github.com/caseforge/caseforge/internal/schema"
	"github.com/caseforge/caseforge/internal/triage"
)

// DetectionPublisher pushes detections to an external consumer as part of a
// run. Implementations must be safe to call once per run.
type DetectionPublisher interface {
	PublishDetections(ctx context.Context, runID string, detections []schema.Detection) error
}

// Result is the summary of one completed pipeline run.
type Result struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	OutputDir   string             `json:"output_dir"`
	EventCount  int                `json:"event_count"`
	Detections  []schema.Detection `json:"detections"`
	Cases       []schema.Case      `json:"cases"`
}

// Coordinator wires the pipeline stages together and owns the run
// directory. Metrics and publisher are optional; a nil value disables that
// concern.
type Coordinator struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *observability.Metrics
	publisher DetectionPublisher
	version   string
}

// NewCoordinator creates a pipeline coordinator.
func NewCoordinator(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, publisher DetectionPublisher, version string) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		publisher: publisher,
		version:   version,
	}
}

// Run executes one batch run. Every run gets its own timestamped directory
// under the configured output root holding events.csv, detections.jsonl,
// case_report.md, agent_trace.jsonl and run_manifest.json.
func (co *Coordinator) Run(ctx context.Context) (*Result, error) {
	startedAt := time.Now().UTC()
	runID := uuid.NewString()
	runDir := filepath.Join(co.cfg.Output.Dir, startedAt.Format("20060102T150405Z"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	logger := co.logger.With(zap.String("run_id", runID))
	logger.Info("starting pipeline run", zap.String("run_dir", runDir))

	// Ingest
	stageStart := time.Now()
	zeekReader := ingest.NewZeekReader(co.cfg.Inputs.ZeekDir, logger)
	suricataReader := ingest.NewSuricataReader(co.cfg.Inputs.SuricataDir, logger)
	zeekEvents := zeekReader.ReadAll()
	suricataEvents := suricataReader.ReadAll()
	co.observeStage("ingest", stageStart)

	// Normalize
	stageStart = time.Now()
	normalizer := normalize.New(logger)
	events := normalizer.Normalize(zeekEvents, suricataEvents)
	co.addEventsNormalized(len(events))
	co.addRecordsDropped(len(zeekEvents) + len(suricataEvents) - len(events))
	co.observeStage("normalize", stageStart)

	if err := WriteEventsCSV(filepath.Join(runDir, "events.csv"), events); err != nil {
		return nil, err
	}

	// Detect
	stageStart = time.Now()
	detector := detect.New(co.cfg.Detectors, logger)
	detections := detector.Detect(events)
	for _, det := range detections {
		co.countDetection(det.DetectionType)
	}
	co.observeStage("detect", stageStart)

	if err := WriteDetectionsJSONL(filepath.Join(runDir, "detections.jsonl"), detections); err != nil {
		return nil, err
	}

	if co.publisher != nil && len(detections) > 0 {
		if err := co.publisher.PublishDetections(ctx, runID, detections); err != nil {
			// Publishing is best-effort; the run itself is still sound.
			logger.Warn("failed to publish detections", zap.Error(err))
		}
	}

	// Case assembly
	stageStart = time.Now()
	cases, err := co.assembleCases(runDir, events, detections, logger)
	if err != nil {
		return nil, err
	}
	co.observeStage("assemble", stageStart)

	// Manifest last, so it can hash the other artifacts.
	manifest := report.NewManifestBuilder(runDir, co.version, logger).Build(runID, co.cfg)
	if err := WriteJSON(filepath.Join(runDir, "run_manifest.json"), manifest); err != nil {
		return nil, err
	}

	completedAt := time.Now().UTC()
	logger.Info("pipeline run complete",
		zap.Int("events", len(events)),
		zap.Int("detections", len(detections)),
		zap.Int("cases", len(cases)),
		zap.Duration("elapsed", completedAt.Sub(startedAt)))

	return &Result{
		RunID:       runID,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		OutputDir:   runDir,
		EventCount:  len(events),
		Detections:  detections,
		Cases:       cases,
	}, nil
}

// assembleCases runs the triage, evidence, critic and report stages,
// recording each step in the agent trace. A case that fails validation gets
// exactly one expanded evidence retrieval and one re-validation; the second
// verdict stands either way.
func (co *Coordinator) assembleCases(runDir string, events []schema.NormalizedEvent, detections []schema.Detection, logger *zap.Logger) ([]schema.Case, error) {
	trace, err := NewTraceSink(filepath.Join(runDir, "agent_trace.jsonl"))
	if err != nil {
		return nil, err
	}
	defer trace.Close()

	trace.Record(agentOrchestrator, stepStart, map[string]any{"detection_count": len(detections)})

	triager := triage.New(co.cfg.CaseAssembly, logger)
	retriever := evidence.New(events, co.cfg.CaseAssembly, logger)
	reporter := report.NewGenerator()
	validator := critic.New(co.cfg.CaseAssembly, logger)

	trace.Record(agentTriage, stepStart, nil)
	cases := triager.Group(detections)
	co.addCasesAssembled(len(cases))
	trace.Record(agentTriage, stepComplete, map[string]any{"case_count": len(cases)})

	trace.Record(agentEvidence, stepStart, nil)
	for i := range cases {
		cases[i].Evidence = retriever.Retrieve(&cases[i], false)
	}
	trace.Record(agentEvidence, stepComplete, map[string]any{"cases_processed": len(cases)})

	trace.Record(agentCritic, stepStart, nil)
	for i := range cases {
		c := &cases[i]

		// Draft the report before validation so the reference check sees
		// real content instead of an empty string.
		c.ReportContent = reporter.Generate(c)

		validation := validator.Validate(c)
		if !validation.IsValid {
			trace.Record(agentCritic, stepRequestEvidence, map[string]any{"case_id": c.CaseID})
			expanded := retriever.Retrieve(c, true)
			c.Evidence = evidence.Merge(c.Evidence, expanded)
			c.ReportContent = reporter.Generate(c)
			validation = validator.Validate(c)
		}
		c.Validation = &validation

		co.observeCaseValidation(&validation)
	}
	trace.Record(agentCritic, stepComplete, map[string]any{"cases_validated": len(cases)})

	trace.Record(agentReport, stepStart, nil)
	for i := range cases {
		cases[i].ReportContent = reporter.Generate(&cases[i])
	}
	trace.Record(agentReport, stepComplete, map[string]any{"reports_generated": len(cases)})

	reportPath := filepath.Join(runDir, "case_report.md")
	if err := os.WriteFile(reportPath, []byte(report.RenderCaseReport(cases)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write case report: %w", err)
	}

	trace.Record(agentOrchestrator, stepComplete, map[string]any{"final_case_count": len(cases)})
	return cases, nil
}

func (co *Coordinator) observeStage(stage string, start time.Time) {
	if co.metrics != nil {
		co.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (co *Coordinator) addEventsNormalized(n int) {
	if co.metrics != nil && n > 0 {
		co.metrics.EventsNormalized.Add(float64(n))
	}
}

func (co *Coordinator) addRecordsDropped(n int) {
	if co.metrics != nil && n > 0 {
		co.metrics.RecordsDropped.Add(float64(n))
	}
}

func (co *Coordinator) countDetection(detectionType string) {
	if co.metrics != nil {
		co.metrics.DetectionsEmitted.WithLabelValues(detectionType).Inc()
	}
}

func (co *Coordinator) addCasesAssembled(n int) {
	if co.metrics != nil && n > 0 {
		co.metrics.CasesAssembled.Add(float64(n))
	}
}

func (co *Coordinator) observeCaseValidation(v *schema.ValidationResult) {
	if co.metrics == nil {
		return
	}
	result := "invalid"
	if v.IsValid {
		result = "valid"
	}
	co.metrics.CaseValidations.WithLabelValues(result).Inc()
	co.metrics.EvidenceRows.Observe(float64(v.EvidenceCount))
}
