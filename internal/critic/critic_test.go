package critic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

func newCritic() *Critic {
	return New(config.CaseAssemblyConfig{
		MinEvidenceRows:     5,
		ConfidenceThreshold: 0.6,
	}, zap.NewNop())
}

func evidenceRows(n int) []schema.NormalizedEvent {
	rows := make([]schema.NormalizedEvent, n)
	for i := range rows {
		v := float64(100 + i)
		rows[i] = schema.NormalizedEvent{TS: &v, Sensor: "zeek", EventType: "conn", Metadata: "{}"}
	}
	return rows
}

func TestValidateSufficientCase(t *testing.T) {
	c := &schema.Case{
		CaseID:         "CASE_0001",
		DetectionType:  schema.DetectionReconScanning,
		DetectionCount: 5,
		Evidence:       evidenceRows(10),
		ReportContent:  "### Evidence\n\nrows attached",
	}

	result := newCritic().Validate(c)

	assert.True(t, result.IsValid)
	assert.Equal(t, 10, result.EvidenceCount)
	assert.True(t, result.HasMinEvidence)
	assert.True(t, result.MeetsThreshold)
	assert.True(t, result.HasReferences)
	assert.Empty(t, result.Issues)
	// 0.5*min(0.7, 5/10) + 0.5*min(1, 10/5) = 0.25 + 0.5
	assert.InDelta(t, 0.75, result.Confidence, 1e-9)
}

func TestValidateNoEvidence(t *testing.T) {
	c := &schema.Case{
		CaseID:         "CASE_0001",
		DetectionCount: 5,
		ReportContent:  "### Evidence",
	}

	result := newCritic().Validate(c)

	assert.False(t, result.IsValid)
	assert.Equal(t, 0.0, result.Confidence)
	assert.False(t, result.HasReferences)
	assert.Contains(t, result.Issues, "Insufficient evidence rows: 0 < 5")
	assert.Contains(t, result.Issues, "Confidence too low: 0.00 < 0.6")
	assert.Contains(t, result.Issues, "Missing evidence references in report")
}

func TestValidateInsufficientEvidenceRows(t *testing.T) {
	c := &schema.Case{
		CaseID:         "CASE_0001",
		DetectionCount: 10,
		Evidence:       evidenceRows(3),
		ReportContent:  "### Evidence",
	}

	result := newCritic().Validate(c)

	assert.False(t, result.IsValid)
	assert.False(t, result.HasMinEvidence)
	assert.Contains(t, result.Issues, "Insufficient evidence rows: 3 < 5")
}

func TestValidateConfidenceCapsAtDetectionComponent(t *testing.T) {
	// 100 detections cap the base component at 0.7.
	c := &schema.Case{
		DetectionCount: 100,
		Evidence:       evidenceRows(10),
		ReportContent:  "### Evidence",
	}

	result := newCritic().Validate(c)

	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	assert.True(t, result.IsValid)
}

func TestValidateMissingReferences(t *testing.T) {
	c := &schema.Case{
		DetectionCount: 5,
		Evidence:       evidenceRows(10),
		ReportContent:  "nothing to see here",
	}

	result := newCritic().Validate(c)

	assert.False(t, result.IsValid)
	assert.False(t, result.HasReferences)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Missing evidence references in report", result.Issues[0])
}

func TestValidateIdempotent(t *testing.T) {
	cr := newCritic()
	c := &schema.Case{
		CaseID:         "CASE_0001",
		DetectionCount: 3,
		Evidence:       evidenceRows(4),
		ReportContent:  "### Evidence",
	}

	first := cr.Validate(c)
	second := cr.Validate(c)

	assert.Equal(t, first, second)
}

func TestValidateLowConfidenceIssueFormat(t *testing.T) {
	c := &schema.Case{
		DetectionCount: 1,
		Evidence:       evidenceRows(1),
		ReportContent:  "### Evidence",
	}

	result := newCritic().Validate(c)

	// 0.5*0.1 + 0.5*0.2 = 0.15
	assert.InDelta(t, 0.15, result.Confidence, 1e-9)
	assert.Contains(t, result.Issues, "Confidence too low: 0.15 < 0.6")
}
