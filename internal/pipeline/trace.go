package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Agent and step names recorded in the trace.
const (
	agentOrchestrator = "orchestrator"
	agentTriage       = "triage_agent"
	agentEvidence     = "evidence_agent"
	agentCritic       = "critic_agent"
	agentReport       = "report_agent"

	stepStart           = "start"
	stepComplete        = "complete"
	stepRequestEvidence = "request_evidence"
)

// TraceEntry is one line of the agent trace.
type TraceEntry struct {
	Agent string         `json:"agent"`
	Step  string         `json:"step"`
	Data  map[string]any `json:"data"`
}

// TraceSink writes the append-only agent trace as JSONL. Entries are flushed
// per write so a crashed run still leaves a usable trace prefix.
type TraceSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewTraceSink opens (or creates) the trace file for appending.
func NewTraceSink(path string) (*TraceSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &TraceSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one trace entry. A nil data map is written as an empty
// object.
func (s *TraceSink) Record(agent, step string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(TraceEntry{Agent: agent, Step: step, Data: data}); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (s *TraceSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
