package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apwatch/apwatch/types"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version   string          `yaml:"version"`
	Scan      ScanConfig      `yaml:"scan"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Detect    DetectConfig    `yaml:"detect,omitempty"`
	Alerts    AlertConfig     `yaml:"alerts,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Policy    PolicyConfig    `yaml:"policy,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ScanConfig controls the wireless interface polling
type ScanConfig struct {
	Interface string        `yaml:"interface"`
	Interval  time.Duration `yaml:"interval"`
	Timeout   time.Duration `yaml:"timeout"`
}

// HistoryConfig controls the per-AP history store
type HistoryConfig struct {
	Window     int           `yaml:"window"`
	StaleAfter time.Duration `yaml:"stale_after"`
	RetainFor  time.Duration `yaml:"retain_for"`
}

// DetectConfig tunes change detection and classification
type DetectConfig struct {
	SignalThresholdDBM int            `yaml:"signal_threshold_dbm"`
	EscalateAfter      int            `yaml:"escalate_after"`
	EncryptionRanks    map[string]int `yaml:"encryption_ranks,omitempty"`
}

// AlertConfig selects and configures alert sinks
type AlertConfig struct {
	Log        bool          `yaml:"log"`
	File       string        `yaml:"file,omitempty"`
	WebhookURL string        `yaml:"webhook_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	QueueSize  int           `yaml:"queue_size,omitempty"`
}

// StorageConfig locates on-disk state
type StorageConfig struct {
	Dir    string `yaml:"dir"`
	WALDir string `yaml:"wal_dir,omitempty"`
}

// PolicyConfig locates trust policies
type PolicyConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// TelemetryConfig controls metrics and tracing export
type TelemetryConfig struct {
	ListenAddr   string `yaml:"listen_addr,omitempty"`
	OTELEndpoint string `yaml:"otel_endpoint,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	Environment  string `yaml:"environment,omitempty"`
}

// DefaultConfig returns a config with every default applied
func DefaultConfig() *Config {
	cfg := &Config{Version: "v1"}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scan.Interval == 0 {
		c.Scan.Interval = 10 * time.Second
	}
	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = 8 * time.Second
	}
	if c.History.Window == 0 {
		c.History.Window = 20
	}
	if c.History.StaleAfter == 0 {
		c.History.StaleAfter = 5 * time.Minute
	}
	if c.History.RetainFor == 0 {
		c.History.RetainFor = 24 * time.Hour
	}
	if c.Detect.SignalThresholdDBM == 0 {
		c.Detect.SignalThresholdDBM = 20
	}
	if c.Detect.EscalateAfter == 0 {
		c.Detect.EscalateAfter = 3
	}
	if c.Alerts.Timeout == 0 {
		c.Alerts.Timeout = 10 * time.Second
	}
	if c.Alerts.QueueSize == 0 {
		c.Alerts.QueueSize = 64
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "/var/lib/apwatch"
	}
	if c.Storage.WALDir == "" {
		c.Storage.WALDir = c.Storage.Dir + "/wal"
	}
	if c.Telemetry.ListenAddr == "" {
		c.Telemetry.ListenAddr = ":9464"
	}
}

// Ranks returns the encryption strength ordering with overrides applied
func (d *DetectConfig) Ranks() types.EncryptionRanks {
	ranks := types.DefaultEncryptionRanks()
	for name, rank := range d.EncryptionRanks {
		ranks[types.Encryption(strings.ToUpper(name))] = rank
	}
	return ranks
}

// Validate ensures config has required fields and sane values
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Scan.Interface == "" {
		return fmt.Errorf("scan.interface is required")
	}
	if c.Scan.Interval < time.Second {
		return fmt.Errorf("scan.interval must be at least 1s")
	}
	if c.Scan.Timeout >= c.Scan.Interval {
		return fmt.Errorf("scan.timeout must be shorter than scan.interval")
	}
	if c.History.Window < 1 {
		return fmt.Errorf("history.window must be at least 1")
	}
	if c.Detect.SignalThresholdDBM < 1 {
		return fmt.Errorf("detect.signal_threshold_dbm must be positive")
	}
	if c.Detect.EscalateAfter < 1 {
		return fmt.Errorf("detect.escalate_after must be at least 1")
	}
	for name, rank := range c.Detect.EncryptionRanks {
		if rank < 0 {
			return fmt.Errorf("detect.encryption_ranks[%s] must not be negative", name)
		}
	}
	return nil
}
