// Package config provides configuration management for CaseForge.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all CaseForge configuration.
type Config struct {
	Detectors    DetectorsConfig    `yaml:"detectors"`
	CaseAssembly CaseAssemblyConfig `yaml:"case_assembly"`
	Inputs       InputsConfig       `yaml:"inputs"`
	Output       OutputConfig       `yaml:"output"`
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	NATS         NATSConfig         `yaml:"nats"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DetectorsConfig holds the baseline detector settings.
type DetectorsConfig struct {
	ReconScanning ReconScanningConfig `yaml:"recon_scanning"`
	DNSBeaconing  DNSBeaconingConfig  `yaml:"dns_beaconing"`
}

// ReconScanningConfig holds fan-out detector settings.
type ReconScanningConfig struct {
	Enabled           bool `yaml:"enabled"`
	TimeWindowSeconds int  `yaml:"time_window_seconds"`
	FanOutThreshold   int  `yaml:"fan_out_threshold"`
}

// DNSBeaconingConfig holds DNS beaconing detector settings.
type DNSBeaconingConfig struct {
	Enabled                bool `yaml:"enabled"`
	TimeWindowSeconds      int  `yaml:"time_window_seconds"`
	RepeatedQueryThreshold int  `yaml:"repeated_query_threshold"`
}

// CaseAssemblyConfig holds triage, evidence and validation settings.
type CaseAssemblyConfig struct {
	TimeWindowSeconds      int     `yaml:"time_window_seconds"`
	MinEvidenceRows        int     `yaml:"min_evidence_rows"`
	ConfidenceThreshold    float64 `yaml:"confidence_threshold"`
	MaxEvidenceRowsPerCase int     `yaml:"max_evidence_rows_per_case"`
}

// InputsConfig holds the telemetry log directories.
type InputsConfig struct {
	ZeekDir     string `yaml:"zeek_dir"`
	SuricataDir string `yaml:"suricata_dir"`
}

// OutputConfig holds run output settings.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig holds the optional run-archive settings.
type RedisConfig struct {
	Enabled bool          `yaml:"enabled"`
	Addr    string        `yaml:"addr"`
	DB      int           `yaml:"db"`
	TTL     time.Duration `yaml:"ttl"`
}

// NATSConfig holds the optional detections publisher settings.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads configuration from a YAML file. A missing or unreadable file is
// an error; the caller decides whether that is fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Detectors: DetectorsConfig{
			ReconScanning: ReconScanningConfig{
				Enabled:           true,
				TimeWindowSeconds: 300,
				FanOutThreshold:   50,
			},
			DNSBeaconing: DNSBeaconingConfig{
				Enabled:                true,
				TimeWindowSeconds:      300,
				RepeatedQueryThreshold: 10,
			},
		},
		CaseAssembly: CaseAssemblyConfig{
			TimeWindowSeconds:      1800,
			MinEvidenceRows:        5,
			ConfidenceThreshold:    0.6,
			MaxEvidenceRowsPerCase: 50,
		},
		Inputs: InputsConfig{
			ZeekDir:     "data/derived/zeek",
			SuricataDir: "data/derived/suricata",
		},
		Output: OutputConfig{
			Dir: "reports/runs",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     24 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
			Subject: "caseforge.detections",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
