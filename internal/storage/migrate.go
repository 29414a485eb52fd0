// ABOUTME: Data migration between storage backends.
// ABOUTME: Copies baselines and readings from source to destination.

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Baselines int
	Readings  int
}

// MigrateData copies all data from src to dst storage. Baselines upsert, so
// re-running is safe for them; readings append, so the destination should
// hold no readings before calling this function.
func MigrateData(ctx context.Context, src, dst Store) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	baselines, err := src.Baselines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source baselines: %w", err)
	}

	for metric, value := range baselines {
		if err := dst.UpsertBaseline(ctx, metric, value); err != nil {
			return nil, fmt.Errorf("upsert baseline %s: %w", metric, err)
		}
		summary.Baselines++
	}

	readings, err := src.AllReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source readings: %w", err)
	}

	for _, r := range readings {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := dst.AppendReading(ctx, r); err != nil {
			return nil, fmt.Errorf("append reading %s: %w", r.Metric, err)
		}
		summary.Readings++
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
