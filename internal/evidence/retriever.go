// Package evidence retrieves supporting rows from the normalized event
// table for a case.
package evidence

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

// Retriever filters the normalized event table down to the rows that back a
// case. Filters are conjunctive: a row must satisfy every populated
// criterion.
type Retriever struct {
	events  []schema.NormalizedEvent
	maxRows int
	logger  *zap.Logger
}

// New creates a retriever over an already-normalized event table.
func New(events []schema.NormalizedEvent, cfg config.CaseAssemblyConfig, logger *zap.Logger) *Retriever {
	maxRows := cfg.MaxEvidenceRowsPerCase
	if maxRows <= 0 {
		maxRows = 50
	}
	return &Retriever{events: events, maxRows: maxRows, logger: logger}
}

// Retrieve returns the evidence rows supporting a case, sorted ascending by
// timestamp and capped at the configured row limit. With expand set the time
// window is widened by half the case span on each side, so an expanded
// search always covers a superset of the strict one.
func (r *Retriever) Retrieve(c *schema.Case, expand bool) []schema.NormalizedEvent {
	rows := []schema.NormalizedEvent{}
	if len(r.events) == 0 {
		return rows
	}

	tsStart, tsEnd := c.TSStart, c.TSEnd
	filterTime := tsStart != 0 || tsEnd != 0
	if filterTime && expand {
		expansion := (tsEnd - tsStart) * 0.5
		tsStart -= expansion
		tsEnd += expansion
	}

	for _, ev := range r.events {
		if c.SrcIP != "" && ev.SrcIP != c.SrcIP {
			continue
		}
		if len(c.DstIPs) > 0 && !containsString(c.DstIPs, ev.DstIP) {
			continue
		}
		if len(c.Domains) > 0 && !metadataMentionsAny(ev.Metadata, c.Domains) {
			continue
		}
		if filterTime {
			if ev.TS == nil || *ev.TS < tsStart || *ev.TS > tsEnd {
				continue
			}
		}
		if !matchesDetectionType(c.DetectionType, ev.EventType) {
			continue
		}
		rows = append(rows, ev)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].TS, rows[j].TS
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return *a < *b
		}
	})

	if len(rows) > r.maxRows {
		rows = rows[:r.maxRows]
	}

	r.logger.Info("retrieved evidence",
		zap.String("case_id", c.CaseID),
		zap.Int("rows", len(rows)),
		zap.Bool("expand", expand))
	return rows
}

// matchesDetectionType restricts evidence to the event family the detector
// looked at, so a DNS case never collects connection rows.
func matchesDetectionType(detectionType, eventType string) bool {
	switch detectionType {
	case schema.DetectionDNSBeaconing:
		return eventType == "dns"
	case schema.DetectionReconScanning:
		return eventType == "conn" || eventType == "flow"
	default:
		return true
	}
}

// metadataMentionsAny does a case-insensitive substring match of each domain
// against the raw metadata blob.
func metadataMentionsAny(metadata string, domains []string) bool {
	if metadata == "" {
		return false
	}
	lower := strings.ToLower(metadata)
	for _, domain := range domains {
		if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Merge appends the rows from extra that are not already present in base,
// preserving base order. Rows are identified by their full field set.
func Merge(base, extra []schema.NormalizedEvent) []schema.NormalizedEvent {
	merged := base
	for _, row := range extra {
		if !containsRow(merged, row) {
			merged = append(merged, row)
		}
	}
	return merged
}

func containsRow(rows []schema.NormalizedEvent, row schema.NormalizedEvent) bool {
	for _, r := range rows {
		if sameRow(r, row) {
			return true
		}
	}
	return false
}

func sameRow(a, b schema.NormalizedEvent) bool {
	if (a.TS == nil) != (b.TS == nil) {
		return false
	}
	if a.TS != nil && *a.TS != *b.TS {
		return false
	}
	if (a.SrcPort == nil) != (b.SrcPort == nil) || (a.SrcPort != nil && *a.SrcPort != *b.SrcPort) {
		return false
	}
	if (a.DstPort == nil) != (b.DstPort == nil) || (a.DstPort != nil && *a.DstPort != *b.DstPort) {
		return false
	}
	if (a.Severity == nil) != (b.Severity == nil) || (a.Severity != nil && *a.Severity != *b.Severity) {
		return false
	}
	return a.Sensor == b.Sensor &&
		a.EventType == b.EventType &&
		a.SrcIP == b.SrcIP &&
		a.DstIP == b.DstIP &&
		a.Proto == b.Proto &&
		a.UID == b.UID &&
		a.FlowID == b.FlowID &&
		a.Signature == b.Signature &&
		a.Metadata == b.Metadata
}
