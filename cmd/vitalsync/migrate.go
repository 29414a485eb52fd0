// ABOUTME: CLI command for migrating data between storage backends.
// ABOUTME: Copies baselines and readings from the active backend to another.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/config"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo    string
	migrateForce bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data to another storage backend",
	Long: `Copy every baseline and reading from the active backend to another one.

The destination must be empty, since readings are appended. Use --force
to migrate into a destination that already holds data.

After migrating, set "backend" in the config file (or pass --backend) to
switch to the new store.

EXAMPLES:

  vitalsync migrate --to badger                    # SQLite to Badger
  vitalsync --backend badger migrate --to sqlite   # Badger to SQLite`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from := cfg.GetBackend()
		if migrateTo == from {
			return fmt.Errorf("source and destination are both %s", from)
		}

		if !migrateForce {
			occupied, err := destinationOccupied(cfg, migrateTo)
			if err != nil {
				return err
			}
			if occupied {
				return fmt.Errorf("%s destination already holds data (use --force to migrate anyway)", migrateTo)
			}
		}

		dst, err := cfg.OpenBackend(migrateTo)
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", migrateTo, err)
		}
		defer dst.Close()

		summary, err := storage.MigrateData(cmd.Context(), store, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		color.Green("✓ Migrated %d baselines and %d readings from %s to %s",
			summary.Baselines, summary.Readings, from, migrateTo)
		return nil
	},
}

// destinationOccupied reports whether the backend's files already exist.
func destinationOccupied(c *config.Config, backend string) (bool, error) {
	dataDir := c.GetDataDir()
	switch backend {
	case config.BackendBadger:
		return storage.IsDirNonEmpty(filepath.Join(dataDir, "badger"))
	case config.BackendSQLite:
		_, err := os.Stat(filepath.Join(dataDir, "health_data.db"))
		if os.IsNotExist(err) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, fmt.Errorf("unknown backend: %q", backend)
	}
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend: sqlite or badger")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "migrate into a non-empty destination")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
