// ABOUTME: Tests for the ingestion pipeline.
// ABOUTME: Covers fan-out, malformed payloads, partial writes, and counters.
package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingWriter struct {
	readings []models.Reading
	failOn   string
}

func (w *recordingWriter) AppendReading(_ context.Context, r models.Reading) error {
	if r.Metric == w.failOn {
		return storage.ErrStoreUnavailable
	}
	w.readings = append(w.readings, r)
	return nil
}

var ts = time.Date(2025, 2, 4, 13, 35, 10, 0, time.UTC)

func TestIngestFansOutInMetricOrder(t *testing.T) {
	w := &recordingWriter{}
	p := NewPipeline(w, nil, nil)

	s := models.NewSample(ts, models.ContextWalking).
		Set(models.MetricHeartRate, 80).
		Set(models.MetricAccelX, 0.1).
		Set(models.MetricBodyTemperature, 36.8)

	n, err := p.Ingest(context.Background(), s)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 readings, got %d", n)
	}

	want := []string{models.MetricAccelX, models.MetricBodyTemperature, models.MetricHeartRate}
	for i, r := range w.readings {
		if r.Metric != want[i] {
			t.Errorf("reading %d metric = %s, want %s", i, r.Metric, want[i])
		}
		if !r.Timestamp.Equal(ts) || r.Context != models.ContextWalking {
			t.Errorf("reading %d lost shared fields: %+v", i, r)
		}
	}

	if got := testutil.ToFloat64(p.Metrics().Readings); got != 3 {
		t.Errorf("readings counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.Metrics().Samples); got != 1 {
		t.Errorf("samples counter = %v, want 1", got)
	}
}

func TestIngestPartialSample(t *testing.T) {
	w := &recordingWriter{}
	p := NewPipeline(w, nil, nil)

	s := models.NewSample(ts, models.ContextResting).Set(models.MetricHeartRate, 70)
	n, err := p.Ingest(context.Background(), s)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if n != 1 || len(w.readings) != 1 {
		t.Errorf("Expected 1 reading, got %d", n)
	}
}

func TestIngestRejectsInvalidContext(t *testing.T) {
	w := &recordingWriter{}
	p := NewPipeline(w, nil, nil)

	s := models.NewSample(ts, "sleeping").Set(models.MetricHeartRate, 50)
	_, err := p.Ingest(context.Background(), s)
	if !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("Expected ErrMalformedMessage, got %v", err)
	}
	if len(w.readings) != 0 {
		t.Errorf("Expected no readings written, got %d", len(w.readings))
	}
	if got := testutil.ToFloat64(p.Metrics().Dropped.WithLabelValues(reasonContext)); got != 1 {
		t.Errorf("dropped counter = %v, want 1", got)
	}
}

func TestIngestWriteFailureAbortsFanOut(t *testing.T) {
	w := &recordingWriter{failOn: models.MetricBodyTemperature}
	p := NewPipeline(w, nil, nil)

	s := models.NewSample(ts, models.ContextResting).
		Set(models.MetricAccelX, 0).
		Set(models.MetricBodyTemperature, 36).
		Set(models.MetricHeartRate, 70)

	n, err := p.Ingest(context.Background(), s)
	if !errors.Is(err, storage.ErrStoreUnavailable) {
		t.Fatalf("Expected ErrStoreUnavailable, got %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 reading before failure, got %d", n)
	}
	if got := testutil.ToFloat64(p.Metrics().WriteFailures); got != 1 {
		t.Errorf("write failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.Metrics().Samples); got != 0 {
		t.Errorf("samples counter = %v, want 0", got)
	}
}

func TestHandleMessageMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"missing timestamp", `{"context":"resting","Heart_Rate":70}`},
		{"missing context", `{"timestamp":"2025-02-04T13:35:10","Heart_Rate":70}`},
		{"bad timestamp", `{"timestamp":"yesterday","context":"resting","Heart_Rate":70}`},
		{"unknown context", `{"timestamp":"2025-02-04T13:35:10","context":"sleeping","Heart_Rate":70}`},
		{"string value", `{"timestamp":"2025-02-04T13:35:10","context":"resting","Heart_Rate":"70"}`},
		{"null value", `{"timestamp":"2025-02-04T13:35:10","context":"resting","Heart_Rate":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			p := NewPipeline(w, nil, nil)

			err := p.HandleMessage(context.Background(), []byte(tt.payload))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Expected ErrMalformedMessage, got %v", err)
			}
			if len(w.readings) != 0 {
				t.Errorf("Expected no readings, got %d", len(w.readings))
			}
		})
	}
}

func TestHandleMessageIntoStore(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "health_data.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	p := NewPipeline(db, nil, NewMetrics(reg))

	payload := `{"timestamp":"2025-02-04T13:35:10.123456","context":"running","Heart_Rate":88.5,"Body_Temperature":37.1}`
	if err := p.HandleMessage(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	latest, err := db.LatestPerMetric(context.Background())
	if err != nil {
		t.Fatalf("LatestPerMetric failed: %v", err)
	}
	hr, ok := latest[models.MetricHeartRate]
	if !ok {
		t.Fatal("Expected Heart_Rate in latest")
	}
	if hr.Value != 88.5 || hr.Context != models.ContextRunning {
		t.Errorf("Unexpected latest: %+v", hr)
	}
	want := time.Date(2025, 2, 4, 13, 35, 10, 123456000, time.UTC)
	if !hr.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", hr.Timestamp, want)
	}

	count, err := testutil.GatherAndCount(reg, "vitalsync_ingest_readings_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected readings metric registered, got %d series", count)
	}
}
