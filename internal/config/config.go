// ABOUTME: vitalsync configuration management with backend selection.
// ABOUTME: Loads JSON settings, applies VITALSYNC_* env overrides, and opens storage.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/harperreed/vitalsync/internal/calibrate"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/harperreed/vitalsync/internal/transport"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Defaults for loop timing.
const (
	DefaultSampleInterval  = time.Second
	DefaultRefreshInterval = 2 * time.Second
)

// Config stores vitalsync configuration.
type Config struct {
	// Backend selects the storage backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty" env:"VITALSYNC_BACKEND"`

	// DataDir is the root directory for data storage.
	// SQLite puts health_data.db here. Badger keeps its files under badger/.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/vitalsync.
	DataDir string `json:"data_dir,omitempty" env:"VITALSYNC_DATA_DIR"`

	Broker         string `json:"broker,omitempty" env:"VITALSYNC_BROKER"`
	Topic          string `json:"topic,omitempty" env:"VITALSYNC_TOPIC"`
	ClientIDPrefix string `json:"client_id_prefix,omitempty" env:"VITALSYNC_CLIENT_ID_PREFIX"`

	// Intervals are Go duration strings such as "1s" or "500ms".
	SampleInterval  string `json:"sample_interval,omitempty" env:"VITALSYNC_SAMPLE_INTERVAL"`
	RefreshInterval string `json:"refresh_interval,omitempty" env:"VITALSYNC_REFRESH_INTERVAL"`

	CalibrationRounds int `json:"calibration_rounds,omitempty" env:"VITALSYNC_CALIBRATION_ROUNDS"`

	// Advisor settings for natural-language insights. Any OpenAI-compatible
	// chat completions endpoint works, including a local Ollama.
	AdvisorURL    string `json:"advisor_url,omitempty" env:"VITALSYNC_ADVISOR_URL"`
	AdvisorModel  string `json:"advisor_model,omitempty" env:"VITALSYNC_ADVISOR_MODEL"`
	AdvisorAPIKey string `json:"advisor_api_key,omitempty" env:"VITALSYNC_ADVISOR_API_KEY"`

	LogLevel string `json:"log_level,omitempty" env:"VITALSYNC_LOG_LEVEL"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetBroker returns the broker URL, defaulting to a local broker.
func (c *Config) GetBroker() string {
	if c.Broker == "" {
		return transport.DefaultBroker
	}
	return c.Broker
}

// GetTopic returns the sensor data topic.
func (c *Config) GetTopic() string {
	if c.Topic == "" {
		return transport.DefaultTopic
	}
	return c.Topic
}

// GetSampleInterval returns the producer tick interval.
func (c *Config) GetSampleInterval() (time.Duration, error) {
	return parseInterval("sample_interval", c.SampleInterval, DefaultSampleInterval)
}

// GetRefreshInterval returns the dashboard refresh interval.
func (c *Config) GetRefreshInterval() (time.Duration, error) {
	return parseInterval("refresh_interval", c.RefreshInterval, DefaultRefreshInterval)
}

// GetCalibrationRounds returns the number of warm-up rounds.
func (c *Config) GetCalibrationRounds() int {
	if c.CalibrationRounds <= 0 {
		return calibrate.DefaultRounds
	}
	return c.CalibrationRounds
}

// TransportOptions builds MQTT client options from the config.
func (c *Config) TransportOptions() transport.Options {
	return transport.Options{
		Broker:         c.GetBroker(),
		Topic:          c.GetTopic(),
		QoS:            transport.DefaultQoS,
		ClientIDPrefix: c.ClientIDPrefix,
	}
}

func parseInterval(name, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, s)
	}
	return d, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage creates a Store implementation based on the configured backend.
func (c *Config) OpenStorage() (storage.Store, error) {
	return c.OpenBackend(c.GetBackend())
}

// OpenBackend opens the named backend under the configured data directory.
func (c *Config) OpenBackend(backend string) (storage.Store, error) {
	dataDir := c.GetDataDir()

	switch backend {
	case BackendSQLite:
		return storage.Open(filepath.Join(dataDir, "health_data.db"))
	case BackendBadger:
		return storage.OpenBadger(filepath.Join(dataDir, "badger"))
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "vitalsync", "config.json")
}

// Load reads config from the default path and applies env overrides.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads config from path and applies env overrides. A missing file
// yields an empty config.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Save writes config to the default path.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes config to path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
