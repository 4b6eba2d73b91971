// Package triage groups raw detections into cases. A case is the unit the
// rest of the pipeline works on: evidence retrieval, validation and
// reporting all operate per case.
package triage

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

// Triager folds detections into cases keyed by detection type, source IP and
// time bucket.
type Triager struct {
	cfg    config.CaseAssemblyConfig
	logger *zap.Logger
}

// New creates a triager.
func New(cfg config.CaseAssemblyConfig, logger *zap.Logger) *Triager {
	return &Triager{cfg: cfg, logger: logger}
}

type caseKey struct {
	detectionType string
	srcIP         string
	bucket        int64
}

// Group assembles detections into cases. Detections of the same type from
// the same source within one assembly window share a case; everything else
// splits. Case IDs are sequential in order of first appearance, so the
// numbering is stable for a given detection order. Empty input yields an
// empty, non-nil slice.
func (t *Triager) Group(detections []schema.Detection) []schema.Case {
	cases := []schema.Case{}
	window := t.cfg.TimeWindowSeconds
	if window <= 0 {
		window = 1800
	}

	index := make(map[caseKey]int)
	for _, det := range detections {
		if det.SrcIP == "" {
			continue
		}
		key := caseKey{
			detectionType: det.DetectionType,
			srcIP:         det.SrcIP,
			bucket:        int64(math.Floor(det.TS / float64(window))),
		}

		i, ok := index[key]
		if !ok {
			i = len(cases)
			index[key] = i
			cases = append(cases, schema.Case{
				CaseID:        fmt.Sprintf("CASE_%04d", i+1),
				DetectionType: det.DetectionType,
				SrcIP:         det.SrcIP,
				DstIPs:        []string{},
				TSStart:       det.TS,
				TSEnd:         det.TS,
			})
		}

		c := &cases[i]
		if det.TS < c.TSStart {
			c.TSStart = det.TS
		}
		if det.TS > c.TSEnd {
			c.TSEnd = det.TS
		}
		if det.DstIP != "" && !contains(c.DstIPs, det.DstIP) {
			c.DstIPs = append(c.DstIPs, det.DstIP)
		}
		if domain, ok := det.Metadata["domain"].(string); ok && domain != "" {
			if !contains(c.Domains, domain) {
				c.Domains = append(c.Domains, domain)
			}
		}
		c.DetectionCount++
		c.Detections = append(c.Detections, det)
	}

	t.logger.Info("triage complete",
		zap.Int("detections", len(detections)), zap.Int("cases", len(cases)))
	return cases
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
