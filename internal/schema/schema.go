// Package schema defines the unified event schema shared by every pipeline
// stage: normalized telemetry rows, detector output, assembled cases and
// their validation results.
package schema

// Field names of the normalized event table, in column order. Every output
// row carries all of them, so downstream code can treat the result as a
// table with a stable column set even when a run produces zero events.
var fields = []string{
	"ts",
	"sensor",
	"event_type",
	"src_ip",
	"dst_ip",
	"src_port",
	"dst_port",
	"proto",
	"uid",
	"flow_id",
	"severity",
	"signature",
	"metadata",
	"case_id",
}

// Fields returns the normalized table column names in order.
func Fields() []string {
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// IsSchemaField reports whether key is one of the declared schema columns.
// Keys outside the schema are bundled into the metadata blob during
// normalization.
func IsSchemaField(key string) bool {
	for _, f := range fields {
		if f == key {
			return true
		}
	}
	return false
}

// NormalizedEvent is one row of the unified event table. Nullable columns
// use pointers; string columns use "" for absent values. Metadata holds the
// JSON-serialized residue of source fields that did not map onto the schema.
// Rows are immutable once the normalizer emits them.
type NormalizedEvent struct {
	TS        *float64 `json:"ts"`
	Sensor    string   `json:"sensor"`
	EventType string   `json:"event_type"`
	SrcIP     string   `json:"src_ip,omitempty"`
	DstIP     string   `json:"dst_ip,omitempty"`
	SrcPort   *int     `json:"src_port,omitempty"`
	DstPort   *int     `json:"dst_port,omitempty"`
	Proto     string   `json:"proto,omitempty"`
	UID       string   `json:"uid,omitempty"`
	FlowID    string   `json:"flow_id,omitempty"`
	Severity  *int     `json:"severity,omitempty"`
	Signature string   `json:"signature,omitempty"`
	Metadata  string   `json:"metadata"`
	CaseID    string   `json:"case_id,omitempty"`
}

// Detection types emitted by the baseline detectors.
const (
	DetectionReconScanning = "recon_scanning"
	DetectionDNSBeaconing  = "dns_beaconing"
)

// Detection is a single detector hit. TS is the start of the window that
// crossed threshold. DstIP is empty for aggregate detections (the full
// destination set lives in Metadata).
type Detection struct {
	DetectionType string         `json:"detection_type"`
	TS            float64        `json:"ts"`
	SrcIP         string         `json:"src_ip"`
	DstIP         string         `json:"dst_ip,omitempty"`
	Confidence    float64        `json:"confidence"`
	Metadata      map[string]any `json:"metadata"`
}

// Case is a grouped, evidence-backed unit of investigation. Identity is the
// triage group key (detection type, source IP, time bucket); Evidence and
// Validation are filled in by later stages.
type Case struct {
	CaseID         string            `json:"case_id"`
	DetectionType  string            `json:"detection_type"`
	SrcIP          string            `json:"src_ip"`
	DstIPs         []string          `json:"dst_ip"`
	Domains        []string          `json:"domain,omitempty"`
	TSStart        float64           `json:"ts_start"`
	TSEnd          float64           `json:"ts_end"`
	DetectionCount int               `json:"detection_count"`
	Detections     []Detection       `json:"detections"`
	Evidence       []NormalizedEvent `json:"evidence"`
	Validation     *ValidationResult `json:"validation,omitempty"`
	ReportContent  string            `json:"report_content,omitempty"`
}

// ValidationResult is the critic's verdict on a case. It is recomputed in
// full on every validation call; the latest result is authoritative.
type ValidationResult struct {
	IsValid        bool     `json:"is_valid"`
	Confidence     float64  `json:"confidence"`
	EvidenceCount  int      `json:"evidence_count"`
	HasMinEvidence bool     `json:"has_min_evidence"`
	MeetsThreshold bool     `json:"meets_threshold"`
	HasReferences  bool     `json:"has_references"`
	Issues         []string `json:"issues"`
}
