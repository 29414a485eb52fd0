// ABOUTME: Reading log operations for SQLite storage.
// ABOUTME: Appends context-labeled readings and answers latest, range, and recent queries.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
)

// AppendReading inserts one reading. Duplicate timestamps are legal.
func (d *DB) AppendReading(ctx context.Context, r models.Reading) error {
	if err := validateReading(r); err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	query := `
		INSERT INTO current_values (timestamp, metric, value, context)
		VALUES (?, ?, ?, ?)
	`
	_, err := d.db.ExecContext(ctx, query,
		models.FormatTimestamp(r.Timestamp),
		r.Metric,
		r.Value,
		string(r.Context),
	)
	if err != nil {
		return fmt.Errorf("%w: append reading %s: %w", ErrStoreUnavailable, r.Metric, err)
	}
	return nil
}

// LatestPerMetric returns the most recent reading of each metric. Metrics are
// resolved independently, so a metric whose writes lag behind still reports
// its own latest value. Ties on timestamp go to the row inserted last.
func (d *DB) LatestPerMetric(ctx context.Context) (map[string]models.Latest, error) {
	query := `
		SELECT c.timestamp, c.metric, c.value, c.context
		FROM current_values c
		JOIN (
			SELECT metric, MAX(timestamp) AS ts
			FROM current_values
			GROUP BY metric
		) m ON c.metric = m.metric AND c.timestamp = m.ts
		ORDER BY c.rowid
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: latest per metric: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	readings, err := d.scanReadings(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.Latest, len(readings))
	for _, r := range readings {
		latest[r.Metric] = models.Latest{
			Value:     r.Value,
			Context:   r.Context,
			Timestamp: r.Timestamp,
		}
	}
	return latest, nil
}

// RangeQuery returns readings of metric at or after since, oldest first.
func (d *DB) RangeQuery(ctx context.Context, metric string, since time.Time) ([]models.Reading, error) {
	query := `
		SELECT timestamp, metric, value, context
		FROM current_values
		WHERE metric = ? AND timestamp >= ?
		ORDER BY timestamp ASC, rowid ASC
	`
	rows, err := d.db.QueryContext(ctx, query, metric, rangeStart(since))
	if err != nil {
		return nil, fmt.Errorf("%w: range query %s: %w", ErrStoreUnavailable, metric, err)
	}
	defer rows.Close()

	return d.scanReadings(rows)
}

// RecentQuery returns the limit most recent readings of metric, oldest first.
func (d *DB) RecentQuery(ctx context.Context, metric string, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT timestamp, metric, value, context
		FROM current_values
		WHERE metric = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent query %s: %w", ErrStoreUnavailable, metric, err)
	}
	defer rows.Close()

	readings, err := d.scanReadings(rows)
	if err != nil {
		return nil, err
	}
	reverse(readings)
	return readings, nil
}

// AllReadings returns every stored reading grouped by metric, oldest first.
func (d *DB) AllReadings(ctx context.Context) ([]models.Reading, error) {
	query := `
		SELECT timestamp, metric, value, context
		FROM current_values
		ORDER BY metric ASC, timestamp ASC, rowid ASC
	`
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list readings: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return d.scanReadings(rows)
}

// scanReadings scans multiple rows into a slice of Readings.
func (d *DB) scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading

	for rows.Next() {
		var r models.Reading
		var ts, ctxLabel string

		if err := rows.Scan(&ts, &r.Metric, &r.Value, &ctxLabel); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}

		t, err := models.ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("scan reading %s: %w", r.Metric, err)
		}
		r.Timestamp = t
		r.Context = models.Context(ctxLabel)

		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// reverse flips a reading slice in place.
func reverse(readings []models.Reading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}
