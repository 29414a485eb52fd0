// ABOUTME: Prometheus counters for the ingestion pipeline.
// ABOUTME: Tracks samples, readings, dropped messages by reason, and store failures.
package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label.
const (
	reasonDecode    = "decode"
	reasonContext   = "context"
	reasonTimestamp = "timestamp"
	reasonEmpty     = "empty"
)

// Metrics holds the pipeline counters.
type Metrics struct {
	Samples       prometheus.Counter
	Readings      prometheus.Counter
	Dropped       *prometheus.CounterVec
	WriteFailures prometheus.Counter
}

// NewMetrics creates the pipeline counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsync",
			Subsystem: "ingest",
			Name:      "samples_total",
			Help:      "Samples fully written to the store",
		}),
		Readings: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsync",
			Subsystem: "ingest",
			Name:      "readings_total",
			Help:      "Per-metric readings appended to the store",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitalsync",
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped as malformed, by reason",
		}, []string{"reason"}),
		WriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "vitalsync",
			Subsystem: "ingest",
			Name:      "write_failures_total",
			Help:      "Store write failures during fan-out",
		}),
	}
}
