package ingest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SuricataReader reads the Suricata eve.json log from a directory.
type SuricataReader struct {
	dir    string
	logger *zap.Logger
}

// NewSuricataReader creates a reader for the given Suricata log directory.
func NewSuricataReader(dir string, logger *zap.Logger) *SuricataReader {
	return &SuricataReader{dir: dir, logger: logger}
}

// ReadAll parses eve.json. Event types (alert, flow, dns, ...) are preserved
// as Suricata emitted them. A missing file yields an empty slice.
func (r *SuricataReader) ReadAll() []map[string]any {
	path := filepath.Join(r.dir, "eve.json")
	f, err := os.Open(path)
	if err != nil {
		r.logger.Warn("suricata eve.json not found", zap.String("path", path))
		return []map[string]any{}
	}
	defer f.Close()

	events := []map[string]any{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			r.logger.Warn("failed to parse eve.json line", zap.Error(err))
			continue
		}
		event["sensor"] = "suricata"
		if _, ok := event["event_type"]; !ok {
			event["event_type"] = "unknown"
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Error("error reading eve.json", zap.Error(err))
	}

	r.logger.Info("parsed suricata eve.json", zap.Int("events", len(events)))
	return events
}
