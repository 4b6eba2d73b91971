// Package ingest reads already-parsed sensor logs into loosely-typed
// records. It is the upstream-producer boundary of the pipeline: each reader
// emits one map per log line and tags it with its sensor and event type, and
// everything downstream of the normalizer never sees these maps again.
package ingest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Zeek log lines can be large when a connection carries history/service
// annotations; 1MB covers everything seen in practice.
const maxLineSize = 1024 * 1024

// ZeekReader reads Zeek JSON log files from a directory.
type ZeekReader struct {
	dir    string
	logger *zap.Logger
}

// NewZeekReader creates a reader for the given Zeek log directory.
func NewZeekReader(dir string, logger *zap.Logger) *ZeekReader {
	return &ZeekReader{dir: dir, logger: logger}
}

// ReadConnLog parses conn.log. A missing file yields an empty slice.
func (r *ZeekReader) ReadConnLog() []map[string]any {
	return r.readLog("conn.log", "conn")
}

// ReadDNSLog parses dns.log. A missing file yields an empty slice.
func (r *ZeekReader) ReadDNSLog() []map[string]any {
	return r.readLog("dns.log", "dns")
}

// ReadAll parses all supported Zeek log files.
func (r *ZeekReader) ReadAll() []map[string]any {
	events := r.ReadConnLog()
	events = append(events, r.ReadDNSLog()...)
	return events
}

func (r *ZeekReader) readLog(name, eventType string) []map[string]any {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		r.logger.Warn("zeek log not found", zap.String("path", path))
		return []map[string]any{}
	}
	defer f.Close()

	events := []map[string]any{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			r.logger.Warn("failed to parse zeek log line",
				zap.String("file", name), zap.Error(err))
			continue
		}
		event["event_type"] = eventType
		event["sensor"] = "zeek"
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Error("error reading zeek log",
			zap.String("file", name), zap.Error(err))
	}

	r.logger.Info("parsed zeek log",
		zap.String("file", name), zap.Int("events", len(events)))
	return events
}
