// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines the resting_values baseline table and the current_values reading log.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resting_values (
		metric TEXT PRIMARY KEY,
		value REAL
	);

	CREATE TABLE IF NOT EXISTS current_values (
		timestamp TEXT,
		metric TEXT,
		value REAL,
		context TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_current_metric_ts ON current_values(metric, timestamp);
	CREATE INDEX IF NOT EXISTS idx_current_ts ON current_values(timestamp);
	`

	_, err := d.db.Exec(schema)
	return err
}
