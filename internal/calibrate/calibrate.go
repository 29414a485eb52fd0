// ABOUTME: Baseline calibrator that averages warm-up sensor reads per metric.
// ABOUTME: Filters invalid samples, falls back to defaults, and upserts baselines.
package calibrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/harperreed/vitalsync/internal/sensor"
)

// Defaults for a calibration run.
const (
	DefaultRounds   = 10
	DefaultInterval = time.Second
)

// BaselineWriter is the slice of the store the calibrator needs.
type BaselineWriter interface {
	UpsertBaseline(ctx context.Context, metric string, value float64) error
}

// Calibrator computes a resting baseline for every configured source.
type Calibrator struct {
	Sources  []sensor.Source
	Store    BaselineWriter
	Rounds   int
	Interval time.Duration
	Log      *slog.Logger
}

// New creates a calibrator with the default round count and interval.
func New(store BaselineWriter, log *slog.Logger, sources ...sensor.Source) *Calibrator {
	return &Calibrator{
		Sources:  sources,
		Store:    store,
		Rounds:   DefaultRounds,
		Interval: DefaultInterval,
		Log:      log,
	}
}

// Run samples every source once per round, averages the valid samples per
// metric, and upserts the result. A metric with no valid samples gets its
// default. Cancellation between rounds aborts without writing.
func (c *Calibrator) Run(ctx context.Context) (map[string]float64, error) {
	log := c.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sums := make(map[string]float64, len(c.Sources))
	counts := make(map[string]int, len(c.Sources))

	log.Info("collecting resting values", "rounds", c.Rounds, "interval", c.Interval)

	for round := 0; round < c.Rounds; round++ {
		if round > 0 && c.Interval > 0 {
			timer := time.NewTimer(c.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, src := range c.Sources {
			metric := src.Metric()
			v, err := src.Read(ctx)
			if err != nil {
				log.Debug("calibration read failed", "metric", metric, "round", round, "error", err)
				continue
			}
			if !sensor.Valid(metric, v) {
				log.Debug("calibration sample rejected", "metric", metric, "round", round, "value", v)
				continue
			}
			sums[metric] += v
			counts[metric]++
		}
	}

	baselines := make(map[string]float64, len(c.Sources))
	for _, src := range c.Sources {
		metric := src.Metric()
		if n := counts[metric]; n > 0 {
			baselines[metric] = sums[metric] / float64(n)
			continue
		}
		def, _ := sensor.Default(metric)
		log.Warn("no valid calibration samples, using default", "metric", metric, "value", def)
		baselines[metric] = def
	}

	for _, src := range c.Sources {
		metric := src.Metric()
		if err := c.Store.UpsertBaseline(ctx, metric, baselines[metric]); err != nil {
			return baselines, fmt.Errorf("store baseline %s: %w", metric, err)
		}
	}

	log.Info("resting values stored", "baselines", baselines)
	return baselines, nil
}
