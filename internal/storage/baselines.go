// ABOUTME: Baseline (resting value) operations for SQLite storage.
// ABOUTME: Implements upsert and listing over the resting_values table.
package storage

import (
	"context"
	"fmt"
)

// UpsertBaseline stores the resting value for a metric, replacing any prior one.
func (d *DB) UpsertBaseline(ctx context.Context, metric string, value float64) error {
	if err := validateBaseline(metric, value); err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	query := `
		INSERT INTO resting_values (metric, value) VALUES (?, ?)
		ON CONFLICT(metric) DO UPDATE SET value = excluded.value
	`
	if _, err := d.db.ExecContext(ctx, query, metric, value); err != nil {
		return fmt.Errorf("%w: upsert baseline %s: %w", ErrStoreUnavailable, metric, err)
	}
	return nil
}

// ListBaselineMetrics returns the names of all calibrated metrics, sorted.
func (d *DB) ListBaselineMetrics(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT metric FROM resting_values ORDER BY metric`)
	if err != nil {
		return nil, fmt.Errorf("%w: list baseline metrics: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan baseline metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Baselines returns the full baseline table.
func (d *DB) Baselines(ctx context.Context) (map[string]float64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT metric, value FROM resting_values`)
	if err != nil {
		return nil, fmt.Errorf("%w: list baselines: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	baselines := make(map[string]float64)
	for rows.Next() {
		var (
			m string
			v float64
		)
		if err := rows.Scan(&m, &v); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		baselines[m] = v
	}
	return baselines, rows.Err()
}
