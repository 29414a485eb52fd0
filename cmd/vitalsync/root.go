// ABOUTME: Root Cobra command for vitalsync CLI.
// ABOUTME: Loads config, builds the logger, and manages the store lifecycle.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/harperreed/vitalsync/internal/config"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	store  storage.Store
	logger = slog.New(slog.DiscardHandler)

	flagConfig   string
	flagBackend  string
	flagDataDir  string
	flagBroker   string
	flagLogLevel string
)

// Commands that run without an open store.
var storeless = map[string]bool{
	"help":       true,
	"version":    true,
	"broker":     true,
	"completion": true,
}

var rootCmd = &cobra.Command{
	Use:   "vitalsync",
	Short: "Physiological sensor streaming and insights",
	Long: `vitalsync streams wearable sensor readings over MQTT, stores them as
time series, and flags significant short-term changes.

WHAT IT TRACKS:

  Heart_Rate         BPM
  Body_Temperature   °C
  Accel_X/Y/Z        g

  Every reading carries the activity context it was taken in:
  resting, running, walking, or exercising.

QUICK START:

  $ vitalsync broker                 # Run an embedded MQTT broker
  $ vitalsync produce                # Calibrate, then stream simulated samples
  $ vitalsync consume                # Ingest samples and show a live dashboard
  $ vitalsync latest                 # Latest value of each metric
  $ vitalsync insights               # Significant recent changes

MCP INTEGRATION:

  Run 'vitalsync mcp' to start the Model Context Protocol server:

  {
    "mcpServers": {
      "vitalsync": { "command": "vitalsync", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  SQLite (default) stores data at ~/.local/share/vitalsync/health_data.db.
  Use --backend badger to store data in a Badger directory instead.
  Settings live in ~/.config/vitalsync/config.json and can be overridden
  with VITALSYNC_* environment variables or flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A failed RunE skips the post-run hook.
		if err := closeStore(); err != nil {
			return err
		}

		var err error
		if flagConfig != "" {
			cfg, err = config.LoadFrom(flagConfig)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(cmd, cfg)

		logger, err = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
		if err != nil {
			return err
		}

		if storeless[cmd.Name()] {
			return nil
		}

		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", cfg.GetBackend(), err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeStore()
	},
}

func closeStore() error {
	if store == nil {
		return nil
	}
	err := store.Close()
	store = nil
	return err
}

// applyFlags overlays explicitly set persistent flags on cfg.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		c.Backend = flagBackend
	}
	if flags.Changed("data-dir") {
		c.DataDir = flagDataDir
	}
	if flags.Changed("broker") {
		c.Broker = flagBroker
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
}

// newLogger builds a tint logger at the named level, defaulting to info.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl := slog.LevelInfo
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isTerminal(f)
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})), nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: ~/.config/vitalsync/config.json)")
	pf.StringVar(&flagBackend, "backend", "", "storage backend: sqlite or badger")
	pf.StringVar(&flagDataDir, "data-dir", "", "data directory")
	pf.StringVar(&flagBroker, "broker", "", "MQTT broker URL (default: tcp://localhost:1883)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}
