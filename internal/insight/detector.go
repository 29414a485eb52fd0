// ABOUTME: Insight detector flagging sharp short-term changes in watched metrics.
// ABOUTME: Compares consecutive readings in a recent window against per-metric thresholds.
package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
)

// DefaultWindow is how many recent readings each watched metric is scanned over.
const DefaultWindow = 10

// Watch is one metric the detector monitors and the change that counts as
// significant.
type Watch struct {
	Metric    string
	Threshold float64
}

// DefaultWatchList monitors heart rate and body temperature.
var DefaultWatchList = []Watch{
	{Metric: models.MetricHeartRate, Threshold: 10},
	{Metric: models.MetricBodyTemperature, Threshold: 1},
}

// Insight is a significant change observed in a metric.
type Insight struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Change    float64   `json:"change"`
}

// String renders the insight as a dashboard line.
func (i Insight) String() string {
	return fmt.Sprintf("Significant change in %s: %.2f at %s (change of %.2f)",
		i.Metric, i.Value, models.FormatTimestamp(i.Timestamp), i.Change)
}

// RecentReader is the store query the detector depends on.
type RecentReader interface {
	RecentQuery(ctx context.Context, metric string, limit int) ([]models.Reading, error)
}

// Detector scans recent readings for large jumps. It holds no state between
// calls.
type Detector struct {
	store  RecentReader
	watch  []Watch
	window int
}

// NewDetector creates a detector with the default watch list and window.
func NewDetector(store RecentReader) *Detector {
	return &Detector{store: store, watch: DefaultWatchList, window: DefaultWindow}
}

// WithWatchList replaces the monitored metrics.
func (d *Detector) WithWatchList(watch []Watch) *Detector {
	d.watch = watch
	return d
}

// WithWindow sets how many recent readings are scanned per metric.
func (d *Detector) WithWindow(k int) *Detector {
	d.window = k
	return d
}

// Detect returns one insight per watched metric whose largest consecutive
// change in the recent window exceeds its threshold. Metrics with fewer than
// two readings are skipped.
func (d *Detector) Detect(ctx context.Context) ([]Insight, error) {
	var insights []Insight
	for _, w := range d.watch {
		readings, err := d.store.RecentQuery(ctx, w.Metric, d.window)
		if err != nil {
			return nil, fmt.Errorf("recent %s: %w", w.Metric, err)
		}
		if in, ok := Evaluate(w, readings); ok {
			insights = append(insights, in)
		}
	}
	return insights, nil
}

// Evaluate applies one watch to an ascending window of readings.
func Evaluate(w Watch, readings []models.Reading) (Insight, bool) {
	if len(readings) < 2 {
		return Insight{}, false
	}

	maxDiff := 0.0
	for i := 1; i < len(readings); i++ {
		if diff := math.Abs(readings[i].Value - readings[i-1].Value); diff > maxDiff {
			maxDiff = diff
		}
	}
	if maxDiff <= w.Threshold {
		return Insight{}, false
	}

	last := readings[len(readings)-1]
	return Insight{
		Metric:    w.Metric,
		Value:     last.Value,
		Timestamp: last.Timestamp,
		Change:    maxDiff,
	}, true
}
