package report

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
)

// Manifest records the provenance of one pipeline run: what went in, what
// came out, and the exact configuration and tool version in between.
type Manifest struct {
	RunID        string            `json:"run_id"`
	RunTimestamp string            `json:"run_timestamp"`
	Inputs       map[string]string `json:"inputs"`
	ToolVersions map[string]string `json:"tool_versions"`
	Config       *config.Config    `json:"config"`
	Outputs      map[string]string `json:"outputs"`
}

// ManifestBuilder assembles the run manifest for a run directory.
type ManifestBuilder struct {
	runDir  string
	version string
	logger  *zap.Logger
}

// NewManifestBuilder creates a manifest builder. version is the build
// version stamped into the binary.
func NewManifestBuilder(runDir, version string, logger *zap.Logger) *ManifestBuilder {
	return &ManifestBuilder{runDir: runDir, version: version, logger: logger}
}

// Build assembles the manifest. Input hashes cover the raw sensor logs;
// output hashes cover every artifact the run produced so far, so Build must
// run after the other writers.
func (m *ManifestBuilder) Build(runID string, cfg *config.Config) *Manifest {
	inputs := map[string]string{}
	for name, path := range map[string]string{
		"zeek_conn":    filepath.Join(cfg.Inputs.ZeekDir, "conn.log"),
		"zeek_dns":     filepath.Join(cfg.Inputs.ZeekDir, "dns.log"),
		"suricata_eve": filepath.Join(cfg.Inputs.SuricataDir, "eve.json"),
	} {
		inputs[name] = m.hashFile(path)
	}

	outputs := map[string]string{}
	for _, name := range []string{"events.csv", "detections.jsonl", "case_report.md", "agent_trace.jsonl"} {
		path := filepath.Join(m.runDir, name)
		if _, err := os.Stat(path); err == nil {
			outputs[name] = m.hashFile(path)
		}
	}

	return &Manifest{
		RunID:        runID,
		RunTimestamp: filepath.Base(m.runDir),
		Inputs:       inputs,
		ToolVersions: map[string]string{
			"caseforge": m.version,
			"go":        runtime.Version(),
		},
		Config:  cfg,
		Outputs: outputs,
	}
}

func (m *ManifestBuilder) hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return "file_not_found"
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		m.logger.Warn("failed to hash file", zap.String("path", path), zap.Error(err))
		return "hash_error"
	}
	return hex.EncodeToString(h.Sum(nil))
}
