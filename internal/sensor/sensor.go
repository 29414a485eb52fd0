// ABOUTME: Sensor source interface and per-metric fallback rules.
// ABOUTME: A Sampler reads every source and substitutes defaults for bad reads.
package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
)

// ErrUnavailable is returned by a source that cannot produce a reading.
var ErrUnavailable = errors.New("sensor unavailable")

// Source is a single physical or simulated sensor channel.
type Source interface {
	Metric() string
	Read(ctx context.Context) (float64, error)
}

// Defaults are the values substituted when a metric has no valid reading.
var Defaults = map[string]float64{
	models.MetricHeartRate:       70.0,
	models.MetricBodyTemperature: 25.0,
	models.MetricAccelX:          0.0,
	models.MetricAccelY:          0.0,
	models.MetricAccelZ:          0.0,
}

// Valid reports whether v is a usable reading for metric. NaN and infinities
// are never usable. Heart rate must be positive; every other finite value is
// accepted as read.
func Valid(metric string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if metric == models.MetricHeartRate {
		return v > 0
	}
	return true
}

// Default returns the fallback value for metric.
func Default(metric string) (float64, bool) {
	v, ok := Defaults[metric]
	return v, ok
}

type funcSource struct {
	metric string
	fn     func(ctx context.Context) (float64, error)
}

func (f funcSource) Metric() string { return f.metric }

func (f funcSource) Read(ctx context.Context) (float64, error) { return f.fn(ctx) }

// Func adapts a function into a Source.
func Func(metric string, fn func(ctx context.Context) (float64, error)) Source {
	return funcSource{metric: metric, fn: fn}
}

// Sampler reads a fixed set of sources into samples.
type Sampler struct {
	sources []Source
	log     *slog.Logger
}

// NewSampler creates a sampler over sources. A nil logger discards output.
func NewSampler(log *slog.Logger, sources ...Source) *Sampler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sampler{sources: sources, log: log}
}

// Sources returns the sampler's sources.
func (s *Sampler) Sources() []Source {
	return s.sources
}

// Sample reads every source once. Failed or invalid reads fall back to the
// metric default; a metric with no default is left out of the sample.
func (s *Sampler) Sample(ctx context.Context, ts time.Time, c models.Context) *models.Sample {
	sample := models.NewSample(ts, c)
	for _, src := range s.sources {
		metric := src.Metric()
		v, err := src.Read(ctx)
		if err == nil && Valid(metric, v) {
			sample.Set(metric, v)
			continue
		}

		fallback, ok := Default(metric)
		if !ok {
			s.log.Warn("sensor read failed, no fallback", "metric", metric, "error", err)
			continue
		}
		s.log.Debug("sensor fallback", "metric", metric, "value", fallback, "error", err)
		sample.Set(metric, fallback)
	}
	return sample
}
