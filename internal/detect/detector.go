// Package detect implements the baseline anomaly detectors: fan-out
// scanning over connection events and repeated-query beaconing over DNS
// events. Both operate on fixed-width, epoch-anchored time buckets and emit
// detections only when a configurable threshold is crossed.
package detect

import (
	"encoding/json"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

// Detector runs the enabled baseline detectors over a normalized event
// table. The two sub-detectors are independent: empty or incompatible input
// for one never blocks the other.
type Detector struct {
	cfg    config.DetectorsConfig
	logger *zap.Logger
}

// New creates a detector.
func New(cfg config.DetectorsConfig, logger *zap.Logger) *Detector {
	return &Detector{cfg: cfg, logger: logger}
}

// Detect runs all enabled detectors. Empty input yields an empty, non-nil
// result; it never fails.
func (d *Detector) Detect(events []schema.NormalizedEvent) []schema.Detection {
	detections := []schema.Detection{}

	if d.cfg.ReconScanning.Enabled {
		detections = append(detections, d.detectReconScanning(events)...)
	}
	if d.cfg.DNSBeaconing.Enabled {
		detections = append(detections, d.detectDNSBeaconing(events)...)
	}

	return detections
}

// connection-like event types considered by the fan-out detector
func isConnectionEvent(eventType string) bool {
	return eventType == "conn" || eventType == "flow"
}

type fanOutKey struct {
	srcIP  string
	bucket int64
}

type fanOutAgg struct {
	dstIPs    map[string]struct{}
	connCount int
	tsMin     float64
	tsMax     float64
}

// detectReconScanning flags sources that contact an unusually high number of
// distinct destinations within one time bucket. Buckets are anchored at
// epoch zero: bucket = floor(ts / window).
func (d *Detector) detectReconScanning(events []schema.NormalizedEvent) []schema.Detection {
	detections := []schema.Detection{}
	window := d.cfg.ReconScanning.TimeWindowSeconds
	threshold := d.cfg.ReconScanning.FanOutThreshold
	if window <= 0 || threshold <= 0 {
		return detections
	}

	groups := make(map[fanOutKey]*fanOutAgg)
	for _, ev := range events {
		if !isConnectionEvent(ev.EventType) {
			continue
		}
		if ev.TS == nil || ev.SrcIP == "" {
			continue
		}
		ts := *ev.TS
		key := fanOutKey{
			srcIP:  ev.SrcIP,
			bucket: int64(math.Floor(ts / float64(window))),
		}
		agg, ok := groups[key]
		if !ok {
			agg = &fanOutAgg{dstIPs: make(map[string]struct{}), tsMin: ts, tsMax: ts}
			groups[key] = agg
		}
		if ev.DstIP != "" {
			agg.dstIPs[ev.DstIP] = struct{}{}
		}
		agg.connCount++
		if ts < agg.tsMin {
			agg.tsMin = ts
		}
		if ts > agg.tsMax {
			agg.tsMax = ts
		}
	}

	// Map order is randomized; sort group keys so detection order (and the
	// case IDs derived from it) is reproducible across runs.
	keys := make([]fanOutKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].srcIP != keys[j].srcIP {
			return keys[i].srcIP < keys[j].srcIP
		}
		return keys[i].bucket < keys[j].bucket
	})

	for _, key := range keys {
		agg := groups[key]
		uniqueDsts := len(agg.dstIPs)
		if uniqueDsts < threshold {
			continue
		}
		detections = append(detections, schema.Detection{
			DetectionType: schema.DetectionReconScanning,
			TS:            agg.tsMin,
			SrcIP:         key.srcIP,
			// DstIP stays empty: the detection aggregates many destinations.
			Confidence: math.Min(0.9, float64(uniqueDsts)/float64(threshold)*0.5),
			Metadata: map[string]any{
				"unique_destinations": uniqueDsts,
				"connection_count":    agg.connCount,
				"time_window_seconds": float64(window),
			},
		})
	}

	d.logger.Info("recon/scanning detection complete",
		zap.Int("detections", len(detections)))
	return detections
}

type beaconKey struct {
	srcIP  string
	domain string
}

type beaconAgg struct {
	queryCount int
	tsMin      float64
	tsMax      float64
}

// detectDNSBeaconing flags sources that repeatedly query the same domain.
func (d *Detector) detectDNSBeaconing(events []schema.NormalizedEvent) []schema.Detection {
	detections := []schema.Detection{}
	threshold := d.cfg.DNSBeaconing.RepeatedQueryThreshold
	if threshold <= 0 {
		return detections
	}

	groups := make(map[beaconKey]*beaconAgg)
	for _, ev := range events {
		if ev.EventType != "dns" {
			continue
		}
		if ev.TS == nil || ev.SrcIP == "" {
			continue
		}
		domain := ExtractDomain(ev.Metadata)
		if domain == "" {
			continue
		}
		ts := *ev.TS
		key := beaconKey{srcIP: ev.SrcIP, domain: domain}
		agg, ok := groups[key]
		if !ok {
			agg = &beaconAgg{tsMin: ts, tsMax: ts}
			groups[key] = agg
		}
		agg.queryCount++
		if ts < agg.tsMin {
			agg.tsMin = ts
		}
		if ts > agg.tsMax {
			agg.tsMax = ts
		}
	}

	keys := make([]beaconKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].srcIP != keys[j].srcIP {
			return keys[i].srcIP < keys[j].srcIP
		}
		return keys[i].domain < keys[j].domain
	})

	for _, key := range keys {
		agg := groups[key]
		if agg.queryCount < threshold {
			continue
		}

		// Periodicity proxy, descriptive only. encoding/json cannot encode
		// IEEE infinity, so the all-same-instant case is carried as "inf".
		var queriesPerHour any
		if span := agg.tsMax - agg.tsMin; span > 0 {
			queriesPerHour = float64(agg.queryCount) / (span / 3600)
		} else {
			queriesPerHour = "inf"
		}

		detections = append(detections, schema.Detection{
			DetectionType: schema.DetectionDNSBeaconing,
			TS:            agg.tsMin,
			SrcIP:         key.srcIP,
			Confidence:    math.Min(0.9, float64(agg.queryCount)/float64(threshold)*0.5),
			Metadata: map[string]any{
				"domain":           key.domain,
				"query_count":      agg.queryCount,
				"queries_per_hour": queriesPerHour,
			},
		})
	}

	d.logger.Info("dns beaconing detection complete",
		zap.Int("detections", len(detections)))
	return detections
}

// Conventional metadata keys that carry a queried domain name, probed in
// order; first match wins.
var domainFields = []string{"query", "domain", "qname", "rrname"}

// ExtractDomain pulls a queried domain name out of a serialized metadata
// blob. Returns "" when the blob is not JSON or carries no known field.
func ExtractDomain(metadata string) string {
	if metadata == "" {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(metadata), &m); err != nil {
		return ""
	}
	for _, field := range domainFields {
		if v, ok := m[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
