// Package critic validates that an assembled case carries enough evidence
// to stand on its own.
package critic

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

// Critic scores cases against the configured evidence and confidence
// requirements.
type Critic struct {
	minEvidenceRows     int
	confidenceThreshold float64
	logger              *zap.Logger
}

// New creates a critic.
func New(cfg config.CaseAssemblyConfig, logger *zap.Logger) *Critic {
	minRows := cfg.MinEvidenceRows
	if minRows <= 0 {
		minRows = 5
	}
	return &Critic{
		minEvidenceRows:     minRows,
		confidenceThreshold: cfg.ConfidenceThreshold,
		logger:              logger,
	}
}

// Validate scores a case. The result is a pure function of the case
// contents, so re-validating an unchanged case returns the same verdict. A
// case passes when it has enough evidence rows, its confidence meets the
// threshold, and its report references the evidence.
func (cr *Critic) Validate(c *schema.Case) schema.ValidationResult {
	evidenceCount := len(c.Evidence)
	hasMinEvidence := evidenceCount >= cr.minEvidenceRows

	confidence := cr.confidence(c)
	meetsThreshold := confidence >= cr.confidenceThreshold

	hasReferences := cr.hasEvidenceReferences(c)

	result := schema.ValidationResult{
		IsValid:        hasMinEvidence && meetsThreshold && hasReferences,
		Confidence:     confidence,
		EvidenceCount:  evidenceCount,
		HasMinEvidence: hasMinEvidence,
		MeetsThreshold: meetsThreshold,
		HasReferences:  hasReferences,
		Issues:         []string{},
	}

	if !hasMinEvidence {
		result.Issues = append(result.Issues,
			fmt.Sprintf("Insufficient evidence rows: %d < %d", evidenceCount, cr.minEvidenceRows))
	}
	if !meetsThreshold {
		result.Issues = append(result.Issues,
			fmt.Sprintf("Confidence too low: %.2f < %v", confidence, cr.confidenceThreshold))
	}
	if !hasReferences {
		result.Issues = append(result.Issues, "Missing evidence references in report")
	}

	cr.logger.Info("validated case",
		zap.String("case_id", c.CaseID),
		zap.Bool("valid", result.IsValid),
		zap.Float64("confidence", confidence))
	return result
}

// confidence blends how many detections back the case with how much
// evidence was retrieved, each half-weighted. A case with no evidence scores
// zero outright.
func (cr *Critic) confidence(c *schema.Case) float64 {
	if len(c.Evidence) == 0 {
		return 0.0
	}

	base := float64(c.DetectionCount) / 10.0
	if base > 0.7 {
		base = 0.7
	}

	evidenceFactor := float64(len(c.Evidence)) / float64(cr.minEvidenceRows)
	if evidenceFactor > 1.0 {
		evidenceFactor = 1.0
	}

	confidence := base*0.5 + evidenceFactor*0.5
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

func (cr *Critic) hasEvidenceReferences(c *schema.Case) bool {
	if len(c.Evidence) == 0 {
		return false
	}
	return strings.Contains(c.ReportContent, "Evidence") ||
		strings.Contains(c.ReportContent, "evidence")
}
