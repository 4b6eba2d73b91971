// Package normalize maps heterogeneous sensor records into the unified
// event schema. Each source record produces at most one normalized row;
// records that cannot be converted are dropped and logged, never partially
// emitted.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/schema"
)

// Normalizer converts loosely-typed sensor records into NormalizedEvents.
type Normalizer struct {
	logger *zap.Logger
}

// New creates a normalizer.
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts Zeek and Suricata records into a unified event table
// sorted ascending by timestamp. Rows without a parseable timestamp sort
// before all timestamped rows; the placement is stable but callers must not
// depend on it. The result is never nil, so an empty batch still presents
// the full column set.
func (n *Normalizer) Normalize(zeekEvents, suricataEvents []map[string]any) []schema.NormalizedEvent {
	rows := make([]schema.NormalizedEvent, 0, len(zeekEvents)+len(suricataEvents))

	for _, event := range zeekEvents {
		row, err := n.normalizeZeek(event)
		if err != nil {
			n.logger.Warn("failed to normalize zeek event", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}

	for _, event := range suricataEvents {
		row, err := n.normalizeSuricata(event)
		if err != nil {
			n.logger.Warn("failed to normalize suricata event", zap.Error(err))
			continue
		}
		rows = append(rows, row)
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

	n.logger.Info("normalized events", zap.Int("count", len(rows)))
	return rows
}

func (n *Normalizer) normalizeZeek(event map[string]any) (schema.NormalizedEvent, error) {
	if event == nil {
		return schema.NormalizedEvent{}, fmt.Errorf("nil event")
	}

	metadata, err := residualMetadata(event)
	if err != nil {
		return schema.NormalizedEvent{}, err
	}

	return schema.NormalizedEvent{
		TS:        ParseTimestamp(event["ts"]),
		Sensor:    stringOr(event, "sensor", "zeek"),
		EventType: stringOr(event, "event_type", "unknown"),
		SrcIP:     getString(event, "id.orig_h"),
		DstIP:     getString(event, "id.resp_h"),
		SrcPort:   safeInt(event["id.orig_p"]),
		DstPort:   safeInt(event["id.resp_p"]),
		Proto:     lowerString(event, "proto"),
		UID:       getString(event, "uid"),
		// Zeek identifies flows by uid, not flow_id, and its conn/dns logs
		// carry no severity or signature.
		Metadata: metadata,
	}, nil
}

func (n *Normalizer) normalizeSuricata(event map[string]any) (schema.NormalizedEvent, error) {
	if event == nil {
		return schema.NormalizedEvent{}, fmt.Errorf("nil event")
	}

	ts := event["timestamp"]
	if ts == nil {
		ts = event["time"]
	}

	// Addresses appear either flat (src_ip/dest_ip) or nested under
	// source/dest in flow-format records.
	var srcIP, dstIP string
	var srcPort, dstPort *int
	if _, ok := event["src_ip"]; ok {
		srcIP = getString(event, "src_ip")
		dstIP = getString(event, "dest_ip")
		srcPort = safeInt(event["src_port"])
		dstPort = safeInt(event["dest_port"])
	} else if source, ok := event["source"].(map[string]any); ok {
		srcIP = getString(source, "ip")
		srcPort = safeInt(source["port"])
		if dest, ok := event["dest"].(map[string]any); ok {
			dstIP = getString(dest, "ip")
			dstPort = safeInt(dest["port"])
		}
	}

	var severity *int
	var signature string
	if alert, ok := event["alert"].(map[string]any); ok {
		severity = safeInt(alert["severity"])
		signature = getString(alert, "signature")
	}

	metadata, err := residualMetadata(event)
	if err != nil {
		return schema.NormalizedEvent{}, err
	}

	return schema.NormalizedEvent{
		TS:        ParseTimestamp(ts),
		Sensor:    stringOr(event, "sensor", "suricata"),
		EventType: stringOr(event, "event_type", "unknown"),
		SrcIP:     srcIP,
		DstIP:     dstIP,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Proto:     lowerString(event, "proto"),
		FlowID:    flowIDString(event["flow_id"]),
		Severity:  severity,
		Signature: signature,
		Metadata:  metadata,
	}, nil
}

// residualMetadata serializes every key that is not a declared schema column
// into an opaque JSON blob. Untyped maps never propagate past this boundary.
func residualMetadata(event map[string]any) (string, error) {
	residue := make(map[string]any)
	for k, v := range event {
		if !schema.IsSchemaField(k) {
			residue[k] = v
		}
	}
	data, err := json.Marshal(residue)
	if err != nil {
		return "", fmt.Errorf("failed to serialize metadata: %w", err)
	}
	return string(data), nil
}

// Accepted textual timestamp layouts, in probe order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
}

// ParseTimestamp converts a timestamp of any supported shape to float epoch
// seconds. Numeric values pass through, ISO-8601 text is parsed, anything
// else yields nil. It never fails.
func ParseTimestamp(v any) *float64 {
	switch ts := v.(type) {
	case nil:
		return nil
	case float64:
		return &ts
	case float32:
		f := float64(ts)
		return &f
	case int:
		f := float64(ts)
		return &f
	case int64:
		f := float64(ts)
		return &f
	case json.Number:
		if f, err := ts.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				f := float64(t.UnixNano()) / 1e9
				return &f
			}
		}
		if f, err := strconv.ParseFloat(ts, 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// safeInt converts a value to *int, tolerating the numeric types produced
// by JSON decoding as well as numeric strings. Unconvertible values yield
// nil.
func safeInt(v any) *int {
	switch n := v.(type) {
	case nil:
		return nil
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	case json.Number:
		if i64, err := n.Int64(); err == nil {
			i := int(i64)
			return &i
		}
		return nil
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
		return nil
	default:
		return nil
	}
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func stringOr(m map[string]any, key, fallback string) string {
	if s := getString(m, key); s != "" {
		return s
	}
	return fallback
}

func lowerString(m map[string]any, key string) string {
	return strings.ToLower(getString(m, key))
}

// flowIDString renders Suricata's numeric flow_id as text; the schema keeps
// identifiers as strings across sensors.
func flowIDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}
