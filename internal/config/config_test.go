// ABOUTME: Tests for vitalsync configuration management.
// ABOUTME: Covers load, save, defaults, env overrides, backend selection, and path expansion.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/vitalsync/internal/transport"
)

func TestGetBackendDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBackend(); got != "sqlite" {
		t.Errorf("GetBackend() = %q, want %q", got, "sqlite")
	}
}

func TestGetBackendExplicit(t *testing.T) {
	cfg := &Config{Backend: "badger"}
	if got := cfg.GetBackend(); got != "badger" {
		t.Errorf("GetBackend() = %q, want %q", got, "badger")
	}
}

func TestGetDataDirDefault(t *testing.T) {
	cfg := &Config{}

	// GetDataDir with empty DataDir should return storage.DataDir()
	got := cfg.GetDataDir()
	if got == "" {
		t.Error("GetDataDir() returned empty string")
	}
}

func TestGetDataDirExpandsTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	cfg := &Config{DataDir: "~/vitals"}
	got := cfg.GetDataDir()
	want := filepath.Join(home, "vitals")
	if got != want {
		t.Errorf("GetDataDir() = %q, want %q", got, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/vitals", filepath.Join(home, "data/vitals")},
		{"data/vitals", "data/vitals"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransportDefaults(t *testing.T) {
	cfg := &Config{}
	opts := cfg.TransportOptions()
	if opts.Broker != transport.DefaultBroker {
		t.Errorf("Broker = %q, want %q", opts.Broker, transport.DefaultBroker)
	}
	if opts.Topic != "health_sensor/data" {
		t.Errorf("Topic = %q, want health_sensor/data", opts.Topic)
	}
	if opts.QoS != 1 {
		t.Errorf("QoS = %d, want 1", opts.QoS)
	}
}

func TestIntervals(t *testing.T) {
	cfg := &Config{}
	if d, err := cfg.GetSampleInterval(); err != nil || d != time.Second {
		t.Errorf("GetSampleInterval() = %v, %v; want 1s", d, err)
	}
	if d, err := cfg.GetRefreshInterval(); err != nil || d != 2*time.Second {
		t.Errorf("GetRefreshInterval() = %v, %v; want 2s", d, err)
	}

	cfg.SampleInterval = "250ms"
	if d, err := cfg.GetSampleInterval(); err != nil || d != 250*time.Millisecond {
		t.Errorf("GetSampleInterval() = %v, %v; want 250ms", d, err)
	}

	for _, bad := range []string{"soon", "0s", "-1s"} {
		cfg.RefreshInterval = bad
		if _, err := cfg.GetRefreshInterval(); err == nil {
			t.Errorf("Expected error for refresh interval %q", bad)
		}
	}

	if got := cfg.GetCalibrationRounds(); got != 10 {
		t.Errorf("GetCalibrationRounds() = %d, want 10", got)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Backend != "" {
		t.Errorf("Expected empty Backend, got %q", cfg.Backend)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		Backend:        "badger",
		DataDir:        "/tmp/vitals-data",
		Broker:         "tcp://broker.local:1883",
		SampleInterval: "2s",
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if loaded.Backend != "badger" {
		t.Errorf("Backend mismatch: got %q, want %q", loaded.Backend, "badger")
	}
	if loaded.DataDir != "/tmp/vitals-data" {
		t.Errorf("DataDir mismatch: got %q", loaded.DataDir)
	}
	if loaded.GetBroker() != "tcp://broker.local:1883" {
		t.Errorf("Broker mismatch: got %q", loaded.GetBroker())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := &Config{Backend: "sqlite", Topic: "from/file"}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	t.Setenv("VITALSYNC_BACKEND", "badger")
	t.Setenv("VITALSYNC_CALIBRATION_ROUNDS", "3")

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if loaded.Backend != "badger" {
		t.Errorf("Backend = %q, want env override badger", loaded.Backend)
	}
	if loaded.Topic != "from/file" {
		t.Errorf("Topic = %q, want file value kept", loaded.Topic)
	}
	if loaded.GetCalibrationRounds() != 3 {
		t.Errorf("CalibrationRounds = %d, want 3", loaded.GetCalibrationRounds())
	}
}

func TestEnvInvalidValue(t *testing.T) {
	t.Setenv("VITALSYNC_CALIBRATION_ROUNDS", "many")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for non-integer calibration rounds")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nonexistent"))

	cfg := &Config{Backend: "sqlite"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() should create directory: %v", err)
	}

	configDir := filepath.Join(tmpDir, "nonexistent", "vitalsync")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Error("Expected config directory to be created")
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "vitalsync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("invalid json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid JSON config")
	}
}

func TestGetConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	got := GetConfigPath()
	want := filepath.Join(tmpDir, "vitalsync", "config.json")
	if got != want {
		t.Errorf("GetConfigPath() = %q, want %q", got, want)
	}
}

func TestOpenStorageSQLite(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &Config{Backend: "sqlite", DataDir: tmpDir}
	store, err := cfg.OpenStorage()
	if err != nil {
		t.Fatalf("OpenStorage() for sqlite failed: %v", err)
	}
	defer store.Close()

	dbPath := filepath.Join(tmpDir, "health_data.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Expected health_data.db to be created")
	}
}

func TestOpenStorageBadger(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &Config{Backend: "badger", DataDir: tmpDir}
	store, err := cfg.OpenStorage()
	if err != nil {
		t.Fatalf("OpenStorage() for badger failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, "badger")); os.IsNotExist(err) {
		t.Error("Expected badger directory to be created")
	}
}

func TestOpenStorageInvalidBackend(t *testing.T) {
	cfg := &Config{Backend: "invalid", DataDir: t.TempDir()}

	if _, err := cfg.OpenStorage(); err == nil {
		t.Error("Expected error for invalid backend")
	}
}

func TestConfigJSONOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(&Config{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Empty config should result in "{}" since fields have omitempty
	if string(data) != "{}" {
		t.Errorf("Expected empty JSON object, got %s", string(data))
	}
}
