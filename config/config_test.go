package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apwatch/apwatch/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apwatch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	content := `
version: v1

scan:
  interface: wlan0
  interval: 30s
  timeout: 5s

history:
  window: 10
  stale_after: 2m

detect:
  signal_threshold_dbm: 15
  encryption_ranks:
    wpa3: 4
    wpa2: 4

alerts:
  log: true
  file: /tmp/alerts.log

storage:
  dir: /tmp/apwatch
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Scan.Interface != "wlan0" {
		t.Errorf("Scan.Interface = %v, want wlan0", cfg.Scan.Interface)
	}
	if cfg.Scan.Interval != 30*time.Second {
		t.Errorf("Scan.Interval = %v, want 30s", cfg.Scan.Interval)
	}
	if cfg.History.Window != 10 {
		t.Errorf("History.Window = %v, want 10", cfg.History.Window)
	}
	if cfg.Detect.SignalThresholdDBM != 15 {
		t.Errorf("Detect.SignalThresholdDBM = %v, want 15", cfg.Detect.SignalThresholdDBM)
	}
	if !cfg.Alerts.Log {
		t.Error("Alerts.Log should be true")
	}
	if cfg.Storage.WALDir != "/tmp/apwatch/wal" {
		t.Errorf("Storage.WALDir = %v, want /tmp/apwatch/wal", cfg.Storage.WALDir)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	content := `
version: v1
scan:
  interface: wlan0
`
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Scan.Interval != 10*time.Second {
		t.Errorf("Scan.Interval = %v, want 10s", cfg.Scan.Interval)
	}
	if cfg.History.Window != 20 {
		t.Errorf("History.Window = %v, want 20", cfg.History.Window)
	}
	if cfg.History.RetainFor != 24*time.Hour {
		t.Errorf("History.RetainFor = %v, want 24h", cfg.History.RetainFor)
	}
	if cfg.Detect.SignalThresholdDBM != 20 {
		t.Errorf("Detect.SignalThresholdDBM = %v, want 20", cfg.Detect.SignalThresholdDBM)
	}
	if cfg.Detect.EscalateAfter != 3 {
		t.Errorf("Detect.EscalateAfter = %v, want 3", cfg.Detect.EscalateAfter)
	}
	if cfg.Telemetry.ListenAddr != ":9464" {
		t.Errorf("Telemetry.ListenAddr = %v, want :9464", cfg.Telemetry.ListenAddr)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Scan.Interface = "wlan0"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing version",
			mutate:  func(c *Config) { c.Version = "" },
			wantErr: true,
		},
		{
			name:    "missing interface",
			mutate:  func(c *Config) { c.Scan.Interface = "" },
			wantErr: true,
		},
		{
			name:    "sub-second interval",
			mutate:  func(c *Config) { c.Scan.Interval = 100 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "timeout longer than interval",
			mutate:  func(c *Config) { c.Scan.Timeout = c.Scan.Interval + time.Second },
			wantErr: true,
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.History.Window = 0 },
			wantErr: true,
		},
		{
			name:    "negative rank",
			mutate:  func(c *Config) { c.Detect.EncryptionRanks = map[string]int{"wep": -1} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDetectConfig_Ranks(t *testing.T) {
	d := DetectConfig{EncryptionRanks: map[string]int{"wpa2": 4}}
	ranks := d.Ranks()

	if ranks[types.EncryptionWPA2] != 4 {
		t.Errorf("wpa2 rank = %v, want 4", ranks[types.EncryptionWPA2])
	}
	if ranks[types.EncryptionWPA3] != types.DefaultEncryptionRanks()[types.EncryptionWPA3] {
		t.Errorf("wpa3 rank changed unexpectedly")
	}
	if _, ok := ranks[types.EncryptionUnknown]; ok {
		t.Error("UNKNOWN must stay unranked by default")
	}
}
