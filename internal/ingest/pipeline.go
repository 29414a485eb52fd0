// ABOUTME: Ingestion pipeline that turns transport payloads into stored readings.
// ABOUTME: Decodes wire records, fans samples out per metric, and counts outcomes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/harperreed/vitalsync/internal/models"
)

// ErrMalformedMessage marks a payload that cannot become readings. The
// message is dropped and the consumer keeps going.
var ErrMalformedMessage = errors.New("malformed message")

// Writer is the slice of the store the pipeline needs.
type Writer interface {
	AppendReading(ctx context.Context, r models.Reading) error
}

// Pipeline writes samples into a store.
type Pipeline struct {
	store   Writer
	log     *slog.Logger
	metrics *Metrics
}

// NewPipeline creates a pipeline writing to store. A nil logger discards
// output and nil metrics are created unregistered.
func NewPipeline(store Writer, log *slog.Logger, metrics *Metrics) *Pipeline {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pipeline{store: store, log: log, metrics: metrics}
}

// Metrics returns the pipeline's counters.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// Ingest appends one reading per metric in the sample, in metric name order,
// and returns how many were written. A write failure aborts the remaining
// metrics; readings already written stay.
func (p *Pipeline) Ingest(ctx context.Context, s *models.Sample) (int, error) {
	if s == nil {
		p.metrics.Dropped.WithLabelValues(reasonEmpty).Inc()
		return 0, fmt.Errorf("%w: nil sample", ErrMalformedMessage)
	}
	if !models.IsValidContext(string(s.Context)) {
		p.metrics.Dropped.WithLabelValues(reasonContext).Inc()
		return 0, fmt.Errorf("%w: unknown context %q", ErrMalformedMessage, s.Context)
	}
	if s.Timestamp.IsZero() {
		p.metrics.Dropped.WithLabelValues(reasonTimestamp).Inc()
		return 0, fmt.Errorf("%w: missing timestamp", ErrMalformedMessage)
	}

	written := 0
	for _, r := range s.Readings() {
		if err := p.store.AppendReading(ctx, r); err != nil {
			p.metrics.WriteFailures.Inc()
			return written, fmt.Errorf("ingest %s: %w", r.Metric, err)
		}
		written++
		p.metrics.Readings.Inc()
	}

	p.metrics.Samples.Inc()
	return written, nil
}

// HandleMessage decodes a wire record and ingests it. Malformed payloads are
// logged and returned as ErrMalformedMessage.
func (p *Pipeline) HandleMessage(ctx context.Context, payload []byte) error {
	var s models.Sample
	if err := s.UnmarshalJSON(payload); err != nil {
		p.metrics.Dropped.WithLabelValues(reasonDecode).Inc()
		p.log.Warn("dropping malformed message", "error", err, "bytes", len(payload))
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	n, err := p.Ingest(ctx, &s)
	if err != nil {
		if errors.Is(err, ErrMalformedMessage) {
			p.log.Warn("dropping malformed sample", "error", err)
		} else {
			p.log.Error("ingest failed", "error", err, "written", n, "timestamp", models.FormatTimestamp(s.Timestamp))
		}
		return err
	}

	p.log.Debug("ingested sample",
		"timestamp", models.FormatTimestamp(s.Timestamp),
		"context", s.Context,
		"readings", n,
	)
	return nil
}
