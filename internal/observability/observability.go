// Package observability provides structured logging and Prometheus metrics
// for the pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caseforge/caseforge/internal/config"
)

// NewLogger builds a zap logger from the logging configuration.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config

	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch cfg.Level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zcfg.InitialFields = map[string]interface{}{
		"service": "caseforge",
	}

	return zcfg.Build()
}

// Metrics holds Prometheus metrics for the pipeline. Metrics are registered
// on the supplied Registerer so tests and embedded servers can each own a
// registry.
type Metrics struct {
	EventsNormalized  prometheus.Counter
	RecordsDropped    prometheus.Counter
	DetectionsEmitted *prometheus.CounterVec
	CasesAssembled    prometheus.Counter
	CaseValidations   *prometheus.CounterVec
	EvidenceRows      prometheus.Histogram
	StageDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	namespace := "caseforge"
	factory := promauto.With(reg)

	return &Metrics{
		EventsNormalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_normalized_total",
			Help:      "Total events normalized into the unified schema",
		}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Source records dropped as malformed during normalization",
		}),
		DetectionsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "detections_emitted_total",
				Help:      "Detections emitted by detector type",
			},
			[]string{"detection_type"},
		),
		CasesAssembled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_assembled_total",
			Help:      "Cases assembled by triage",
		}),
		CaseValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "case_validations_total",
				Help:      "Case validation outcomes",
			},
			[]string{"result"},
		),
		EvidenceRows: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evidence_rows_per_case",
			Help:      "Evidence rows attached to a case at validation time",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"stage"},
		),
	}
}
