package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
connection:
  driver: udp
  listenAddr: 127.0.0.1:15000
mission:
  planPath: plan.csv
storage:
  trackInterval: 0.5
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	if config.Settings.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", config.Settings.LogLevel)
	}
	if config.Connection.Driver != DriverUDP {
		t.Errorf("expected udp driver, got %q", config.Connection.Driver)
	}
	if config.Connection.ListenAddr != "127.0.0.1:15000" {
		t.Errorf("expected listen address override, got %q", config.Connection.ListenAddr)
	}
	if config.Mission.PlanPath != "plan.csv" {
		t.Errorf("expected plan path override, got %q", config.Mission.PlanPath)
	}
	if config.Storage.TrackInterval != 0.5 {
		t.Errorf("expected track interval 0.5, got %v", config.Storage.TrackInterval)
	}
	if config.Storage.MaxBatchSize != 100 {
		t.Errorf("expected untouched batch size default, got %d", config.Storage.MaxBatchSize)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "connection:\n  driver: serial\n"},
		{"non-positive max leg", "mission:\n  maxLeg: -1\n"},
		{"zero track interval", "storage:\n  trackInterval: 0\n"},
		{"zero batch size", "storage:\n  maxBatchSize: 0\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected configuration to be rejected")
			}
		})
	}
}

func TestLoadConfigAllowsZeroIntervalWhenStorageDisabled(t *testing.T) {
	path := writeConfig(t, "storage:\n  enabled: false\n  trackInterval: 0\n")
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("loading config: %v", err)
	}
}
