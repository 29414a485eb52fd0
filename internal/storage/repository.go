// ABOUTME: Store interface for sensor data storage.
// ABOUTME: Defines the baseline table and append-only reading log contract.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
)

var (
	// ErrStoreUnavailable marks failures to open or reach the backing store.
	// The failing operation is lost; callers retry on their next iteration.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidReading is returned when a reading violates the data model.
	ErrInvalidReading = errors.New("invalid reading")
)

// Store defines the storage interface for baselines and readings.
// This interface allows swapping implementations (e.g., for testing).
type Store interface {
	// Baseline operations
	UpsertBaseline(ctx context.Context, metric string, value float64) error
	ListBaselineMetrics(ctx context.Context) ([]string, error)
	Baselines(ctx context.Context) (map[string]float64, error)

	// Reading operations
	AppendReading(ctx context.Context, r models.Reading) error
	LatestPerMetric(ctx context.Context) (map[string]models.Latest, error)
	RangeQuery(ctx context.Context, metric string, since time.Time) ([]models.Reading, error)
	RecentQuery(ctx context.Context, metric string, limit int) ([]models.Reading, error)
	AllReadings(ctx context.Context) ([]models.Reading, error)

	// Lifecycle
	Close() error
}

// validateReading enforces the reading invariants shared by all backends.
func validateReading(r models.Reading) error {
	if r.Metric == "" {
		return fmt.Errorf("%w: empty metric name", ErrInvalidReading)
	}
	if strings.ContainsRune(r.Metric, 0) {
		return fmt.Errorf("%w: metric name contains NUL", ErrInvalidReading)
	}
	if r.Metric == models.FieldTimestamp || r.Metric == models.FieldContext {
		return fmt.Errorf("%w: reserved metric name %q", ErrInvalidReading, r.Metric)
	}
	if !models.IsValidContext(string(r.Context)) {
		return fmt.Errorf("%w: unknown context %q", ErrInvalidReading, r.Context)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReading)
	}
	return validateValue(r.Metric, r.Value)
}

// validateBaseline enforces baseline invariants shared by all backends.
func validateBaseline(metric string, value float64) error {
	if err := validateMetric(metric); err != nil {
		return err
	}
	return validateValue(metric, value)
}

// validateValue rejects values that neither backend can round-trip.
func validateValue(metric string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s value %v is not finite", ErrInvalidReading, metric, v)
	}
	return nil
}

// rangeStart returns the stored-timestamp lower bound for since. Timestamps
// are kept at microsecond resolution, so a since inside a microsecond rounds
// up to the next one.
func rangeStart(since time.Time) string {
	floor := since.Truncate(time.Microsecond)
	if floor.Before(since) {
		floor = floor.Add(time.Microsecond)
	}
	return models.FormatTimestamp(floor)
}

// validateMetric enforces baseline key invariants.
func validateMetric(metric string) error {
	if metric == "" {
		return fmt.Errorf("%w: empty metric name", ErrInvalidReading)
	}
	if strings.ContainsRune(metric, 0) {
		return fmt.Errorf("%w: metric name contains NUL", ErrInvalidReading)
	}
	return nil
}
