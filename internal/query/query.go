// ABOUTME: Read-side query layer over the metric store for dashboards and tools.
// ABOUTME: Provides latest, history, recent, and the data-anchored display clamp.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
)

// DisplayWindow is the span of history shown on the live dashboard.
const DisplayWindow = 60 * time.Second

// Reader is the read slice of the store.
type Reader interface {
	ListBaselineMetrics(ctx context.Context) ([]string, error)
	Baselines(ctx context.Context) (map[string]float64, error)
	LatestPerMetric(ctx context.Context) (map[string]models.Latest, error)
	RangeQuery(ctx context.Context, metric string, since time.Time) ([]models.Reading, error)
	RecentQuery(ctx context.Context, metric string, limit int) ([]models.Reading, error)
}

// Service answers dashboard queries.
type Service struct {
	store Reader
	now   func() time.Time
}

// NewService creates a query service over store using the wall clock.
func NewService(store Reader) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock replaces the clock used to evaluate history windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Latest returns the newest reading of each metric.
func (s *Service) Latest(ctx context.Context) (map[string]models.Latest, error) {
	return s.store.LatestPerMetric(ctx)
}

// History returns readings of metric from the last hours, oldest first.
func (s *Service) History(ctx context.Context, metric string, hours float64) ([]models.Reading, error) {
	if hours < 0 {
		return nil, fmt.Errorf("hours must not be negative: %v", hours)
	}
	since := s.now().Add(-time.Duration(hours * float64(time.Hour)))
	return s.store.RangeQuery(ctx, metric, since)
}

// Recent returns the k most recent readings of metric, oldest first.
func (s *Service) Recent(ctx context.Context, metric string, k int) ([]models.Reading, error) {
	return s.store.RecentQuery(ctx, metric, k)
}

// Baselines returns the resting value of every calibrated metric.
func (s *Service) Baselines(ctx context.Context) (map[string]float64, error) {
	return s.store.Baselines(ctx)
}

// Metrics returns the calibrated metric names, or the default metric set when
// nothing has been calibrated yet.
func (s *Service) Metrics(ctx context.Context) ([]string, error) {
	metrics, err := s.store.ListBaselineMetrics(ctx)
	if err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return append([]string(nil), models.DefaultMetrics...), nil
	}
	return metrics, nil
}

// ClampToLatest keeps only readings within window of the newest reading in
// the set. The window is anchored to the data, not the wall clock.
func ClampToLatest(readings []models.Reading, window time.Duration) []models.Reading {
	if len(readings) == 0 {
		return nil
	}

	newest := readings[0].Timestamp
	for _, r := range readings[1:] {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	cutoff := newest.Add(-window)

	clamped := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if !r.Timestamp.Before(cutoff) {
			clamped = append(clamped, r)
		}
	}
	return clamped
}

// CurrentContext returns the activity context of the newest entry in latest.
// Ties go to the alphabetically first metric so the answer is stable.
func CurrentContext(latest map[string]models.Latest) (models.Context, bool) {
	if len(latest) == 0 {
		return "", false
	}

	metrics := make([]string, 0, len(latest))
	for m := range latest {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	best := latest[metrics[0]]
	for _, m := range metrics[1:] {
		if l := latest[m]; l.Timestamp.After(best.Timestamp) {
			best = l
		}
	}
	return best.Context, true
}

// Current returns the latest value of each metric in the given subset. Metrics
// with no readings are omitted.
func Current(latest map[string]models.Latest, metrics []string) map[string]float64 {
	current := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		if l, ok := latest[m]; ok {
			current[m] = l.Value
		}
	}
	return current
}
