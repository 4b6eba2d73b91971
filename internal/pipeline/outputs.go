package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/caseforge/caseforge/internal/schema"
)

// WriteEventsCSV writes the normalized event table. The header row always
// carries the full schema column set, so an empty run still produces a
// well-formed table.
func WriteEventsCSV(path string, events []schema.NormalizedEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create events file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(schema.Fields()); err != nil {
		return fmt.Errorf("failed to write events header: %w", err)
	}

	for _, ev := range events {
		record := []string{
			floatField(ev.TS),
			ev.Sensor,
			ev.EventType,
			ev.SrcIP,
			ev.DstIP,
			intField(ev.SrcPort),
			intField(ev.DstPort),
			ev.Proto,
			ev.UID,
			ev.FlowID,
			intField(ev.Severity),
			ev.Signature,
			ev.Metadata,
			ev.CaseID,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write event row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteDetectionsJSONL writes one JSON object per detection.
func WriteDetectionsJSONL(path string, detections []schema.Detection) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create detections file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, det := range detections {
		if err := enc.Encode(det); err != nil {
			return fmt.Errorf("failed to write detection: %w", err)
		}
	}
	return nil
}

// WriteJSON writes v as indented JSON, used for the run manifest.
func WriteJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
