package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestZeekReadConnLog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conn.log",
		`{"ts": 1000.5, "uid": "C1", "id.orig_h": "10.0.0.1", "id.resp_h": "10.0.0.2", "proto": "tcp"}
{"ts": 1001.5, "uid": "C2", "id.orig_h": "10.0.0.1", "id.resp_h": "10.0.0.3", "proto": "udp"}
`)

	events := NewZeekReader(dir, zap.NewNop()).ReadConnLog()

	require.Len(t, events, 2)
	assert.Equal(t, "conn", events[0]["event_type"])
	assert.Equal(t, "zeek", events[0]["sensor"])
	assert.Equal(t, "10.0.0.1", events[0]["id.orig_h"])
}

func TestZeekSkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dns.log",
		`#separator \x09
{"ts": 1000, "query": "example.com"}

#close
`)

	events := NewZeekReader(dir, zap.NewNop()).ReadDNSLog()

	require.Len(t, events, 1)
	assert.Equal(t, "dns", events[0]["event_type"])
}

func TestZeekSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conn.log",
		`{"ts": 1000}
not json at all
{"ts": 1001}
`)

	events := NewZeekReader(dir, zap.NewNop()).ReadConnLog()

	assert.Len(t, events, 2)
}

func TestZeekMissingFile(t *testing.T) {
	events := NewZeekReader(t.TempDir(), zap.NewNop()).ReadAll()

	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestZeekReadAllCombinesLogs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conn.log", `{"ts": 1000}`+"\n")
	writeFile(t, dir, "dns.log", `{"ts": 1001}`+"\n")

	events := NewZeekReader(dir, zap.NewNop()).ReadAll()

	require.Len(t, events, 2)
	assert.Equal(t, "conn", events[0]["event_type"])
	assert.Equal(t, "dns", events[1]["event_type"])
}

func TestSuricataReadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "eve.json",
		`{"timestamp": "2024-01-15T10:00:00.000000+0000", "event_type": "alert", "src_ip": "10.0.0.1"}
{"timestamp": "2024-01-15T10:00:01.000000+0000", "src_ip": "10.0.0.2"}
`)

	events := NewSuricataReader(dir, zap.NewNop()).ReadAll()

	require.Len(t, events, 2)
	assert.Equal(t, "suricata", events[0]["sensor"])
	assert.Equal(t, "alert", events[0]["event_type"])
	// Records without an event type get the unknown marker.
	assert.Equal(t, "unknown", events[1]["event_type"])
}

func TestSuricataMissingFile(t *testing.T) {
	events := NewSuricataReader(t.TempDir(), zap.NewNop()).ReadAll()

	assert.NotNil(t, events)
	assert.Empty(t, events)
}
