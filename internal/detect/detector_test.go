package detect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

func testConfig() config.DetectorsConfig {
	return config.DetectorsConfig{
		ReconScanning: config.ReconScanningConfig{
			Enabled:           true,
			TimeWindowSeconds: 300,
			FanOutThreshold:   10,
		},
		DNSBeaconing: config.DNSBeaconingConfig{
			Enabled:                true,
			TimeWindowSeconds:      300,
			RepeatedQueryThreshold: 5,
		},
	}
}

func ts(v float64) *float64 { return &v }

func connEvents(srcIP string, base float64, n int) []schema.NormalizedEvent {
	events := make([]schema.NormalizedEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, schema.NormalizedEvent{
			TS:        ts(base + float64(i)),
			Sensor:    "zeek",
			EventType: "conn",
			SrcIP:     srcIP,
			DstIP:     fmt.Sprintf("10.0.1.%d", i+1),
			Metadata:  "{}",
		})
	}
	return events
}

func dnsEvents(srcIP, domain string, base float64, n int) []schema.NormalizedEvent {
	events := make([]schema.NormalizedEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, schema.NormalizedEvent{
			TS:        ts(base + float64(i)*30),
			Sensor:    "zeek",
			EventType: "dns",
			SrcIP:     srcIP,
			Metadata:  fmt.Sprintf(`{"query": %q}`, domain),
		})
	}
	return events
}

func TestDetectEmptyInput(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	detections := d.Detect(nil)

	assert.NotNil(t, detections)
	assert.Empty(t, detections)
}

func TestReconScanningAtThreshold(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	detections := d.Detect(connEvents("192.168.1.5", 1000, 10))

	require.Len(t, detections, 1)
	det := detections[0]
	assert.Equal(t, schema.DetectionReconScanning, det.DetectionType)
	assert.Equal(t, "192.168.1.5", det.SrcIP)
	assert.Empty(t, det.DstIP)
	assert.InDelta(t, 0.5, det.Confidence, 1e-9)
	assert.Equal(t, 10, det.Metadata["unique_destinations"])
	assert.Equal(t, 10, det.Metadata["connection_count"])
}

func TestReconScanningBelowThreshold(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	detections := d.Detect(connEvents("192.168.1.5", 1000, 9))

	assert.Empty(t, detections)
}

func TestReconScanningConfidenceCapped(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	// 100 destinations against threshold 10 would score 5.0 uncapped.
	detections := d.Detect(connEvents("192.168.1.5", 1000, 100))

	require.Len(t, detections, 1)
	assert.InDelta(t, 0.9, detections[0].Confidence, 1e-9)
}

func TestReconScanningCountsDistinctDestinations(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	// 20 connections but only 2 distinct destinations.
	events := []schema.NormalizedEvent{}
	for i := 0; i < 20; i++ {
		events = append(events, schema.NormalizedEvent{
			TS:        ts(1000 + float64(i)),
			EventType: "conn",
			SrcIP:     "192.168.1.5",
			DstIP:     fmt.Sprintf("10.0.0.%d", i%2),
			Metadata:  "{}",
		})
	}

	assert.Empty(t, d.Detect(events))
}

func TestReconScanningWindowSplit(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	// 6 destinations in each of two adjacent buckets; neither crosses 10.
	events := connEvents("192.168.1.5", 0, 6)
	events = append(events, connEvents("192.168.1.5", 300, 6)...)

	assert.Empty(t, d.Detect(events))
}

func TestReconScanningIgnoresNonConnectionEvents(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	events := connEvents("192.168.1.5", 1000, 10)
	for i := range events {
		events[i].EventType = "dns"
	}

	assert.Empty(t, d.Detect(events))
}

func TestReconScanningSkipsRowsWithoutTimestampOrSource(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	events := connEvents("192.168.1.5", 1000, 9)
	events = append(events,
		schema.NormalizedEvent{EventType: "conn", SrcIP: "192.168.1.5", DstIP: "10.0.9.9"},
		schema.NormalizedEvent{TS: ts(1001), EventType: "conn", DstIP: "10.0.9.8"},
	)

	assert.Empty(t, d.Detect(events))
}

func TestReconScanningAcceptsFlowEvents(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	events := connEvents("192.168.1.5", 1000, 10)
	for i := range events {
		events[i].EventType = "flow"
	}

	require.Len(t, d.Detect(events), 1)
}

func TestDNSBeaconingAtThreshold(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	detections := d.Detect(dnsEvents("192.168.1.7", "evil.example.com", 2000, 5))

	require.Len(t, detections, 1)
	det := detections[0]
	assert.Equal(t, schema.DetectionDNSBeaconing, det.DetectionType)
	assert.Equal(t, "192.168.1.7", det.SrcIP)
	assert.InDelta(t, 0.5, det.Confidence, 1e-9)
	assert.Equal(t, "evil.example.com", det.Metadata["domain"])
	assert.Equal(t, 5, det.Metadata["query_count"])
	qph, ok := det.Metadata["queries_per_hour"].(float64)
	require.True(t, ok)
	// 5 queries over 120 seconds.
	assert.InDelta(t, 150.0, qph, 1e-6)
}

func TestDNSBeaconingBelowThreshold(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	detections := d.Detect(dnsEvents("192.168.1.7", "evil.example.com", 2000, 4))

	assert.Empty(t, detections)
}

func TestDNSBeaconingZeroTimeSpan(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	events := []schema.NormalizedEvent{}
	for i := 0; i < 5; i++ {
		events = append(events, schema.NormalizedEvent{
			TS:        ts(2000),
			EventType: "dns",
			SrcIP:     "192.168.1.7",
			Metadata:  `{"query": "evil.example.com"}`,
		})
	}

	detections := d.Detect(events)

	require.Len(t, detections, 1)
	assert.Equal(t, "inf", detections[0].Metadata["queries_per_hour"])
}

func TestDNSBeaconingGroupsPerDomain(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	// 4 queries each to two domains from the same source.
	events := dnsEvents("192.168.1.7", "a.example.com", 2000, 4)
	events = append(events, dnsEvents("192.168.1.7", "b.example.com", 2000, 4)...)

	assert.Empty(t, d.Detect(events))
}

func TestDetectorsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ReconScanning.Enabled = false
	cfg.DNSBeaconing.Enabled = false
	d := New(cfg, zap.NewNop())

	events := connEvents("192.168.1.5", 1000, 20)
	events = append(events, dnsEvents("192.168.1.7", "evil.example.com", 2000, 20)...)

	assert.Empty(t, d.Detect(events))
}

func TestDetectDeterministicOrder(t *testing.T) {
	d := New(testConfig(), zap.NewNop())

	events := connEvents("192.168.1.9", 1000, 10)
	events = append(events, connEvents("192.168.1.2", 1000, 10)...)
	events = append(events, connEvents("192.168.1.5", 1000, 10)...)

	for i := 0; i < 10; i++ {
		detections := d.Detect(events)
		require.Len(t, detections, 3)
		assert.Equal(t, "192.168.1.2", detections[0].SrcIP)
		assert.Equal(t, "192.168.1.5", detections[1].SrcIP)
		assert.Equal(t, "192.168.1.9", detections[2].SrcIP)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     string
	}{
		{"query field", `{"query": "a.example.com"}`, "a.example.com"},
		{"domain field", `{"domain": "b.example.com"}`, "b.example.com"},
		{"qname field", `{"qname": "c.example.com"}`, "c.example.com"},
		{"rrname field", `{"rrname": "d.example.com"}`, "d.example.com"},
		{"query wins over rrname", `{"rrname": "x", "query": "y"}`, "y"},
		{"empty metadata", "", ""},
		{"invalid json", "not json", ""},
		{"no domain field", `{"proto": "udp"}`, ""},
		{"non-string value", `{"query": 42}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.metadata))
		})
	}
}
