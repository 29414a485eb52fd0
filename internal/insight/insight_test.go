// ABOUTME: Tests for insight detection, prompt building, and the chat advisor.
// ABOUTME: Uses a SQLite store for detection and httptest for the advisor API.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/storage"
)

var t0 = time.Date(2025, 2, 4, 13, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "health_data.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func series(metric string, values ...float64) []models.Reading {
	readings := make([]models.Reading, len(values))
	for i, v := range values {
		readings[i] = models.NewReading(metric, v, t0.Add(time.Duration(i)*time.Second), models.ContextResting)
	}
	return readings
}

func TestEvaluate(t *testing.T) {
	hr := DefaultWatchList[0]
	tests := []struct {
		name      string
		values    []float64
		wantOK    bool
		wantValue float64
		wantDiff  float64
	}{
		{"spike", []float64{70, 71, 70, 95}, true, 95, 25},
		{"steady climb", []float64{70, 71, 72, 73}, false, 0, 0},
		{"single point", []float64{70}, false, 0, 0},
		{"empty", nil, false, 0, 0},
		{"exactly threshold", []float64{70, 80}, false, 0, 0},
		{"drop", []float64{100, 85, 86}, true, 86, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := Evaluate(hr, series(hr.Metric, tt.values...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if in.Value != tt.wantValue || in.Change != tt.wantDiff {
				t.Errorf("insight = %+v, want value %v change %v", in, tt.wantValue, tt.wantDiff)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, r := range series(models.MetricHeartRate, 70, 71, 70, 95) {
		if err := db.AppendReading(ctx, r); err != nil {
			t.Fatalf("AppendReading failed: %v", err)
		}
	}
	for _, r := range series(models.MetricBodyTemperature, 36.5, 36.6, 36.7) {
		if err := db.AppendReading(ctx, r); err != nil {
			t.Fatalf("AppendReading failed: %v", err)
		}
	}

	insights, err := NewDetector(db).Detect(ctx)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(insights) != 1 {
		t.Fatalf("Expected 1 insight, got %d: %v", len(insights), insights)
	}

	in := insights[0]
	if in.Metric != models.MetricHeartRate || in.Value != 95 || in.Change != 25 {
		t.Errorf("Unexpected insight: %+v", in)
	}
	if !in.Timestamp.Equal(t0.Add(3 * time.Second)) {
		t.Errorf("timestamp = %v, want newest reading", in.Timestamp)
	}

	want := "Significant change in Heart_Rate: 95.00 at 2025-02-04T13:00:03.000000Z (change of 25.00)"
	if in.String() != want {
		t.Errorf("String() = %q, want %q", in.String(), want)
	}
}

func TestDetectOnlyScansWindow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// The spike sits outside the last 10 readings.
	values := []float64{70, 120}
	for i := 0; i < 10; i++ {
		values = append(values, 120)
	}
	for _, r := range series(models.MetricHeartRate, values...) {
		if err := db.AppendReading(ctx, r); err != nil {
			t.Fatalf("AppendReading failed: %v", err)
		}
	}

	insights, err := NewDetector(db).Detect(ctx)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("Expected no insights, got %v", insights)
	}
}

func TestDetectEmptyStore(t *testing.T) {
	insights, err := NewDetector(setupTestDB(t)).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("Expected no insights, got %v", insights)
	}
}

func TestHealthPrompt(t *testing.T) {
	prompt, err := HealthPrompt(
		map[string]float64{models.MetricHeartRate: 68},
		map[string]float64{models.MetricHeartRate: 120},
		models.ContextRunning,
	)
	if err != nil {
		t.Fatalf("HealthPrompt failed: %v", err)
	}

	for _, want := range []string{
		`Resting Values: {"Heart_Rate":68}`,
		`Current Values: {"Heart_Rate":120}`,
		"Context: running",
		"context 'running'",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestQuestionPrompt(t *testing.T) {
	prompt, err := QuestionPrompt(
		map[string][]models.Reading{models.MetricHeartRate: series(models.MetricHeartRate, 70, 95)},
		"Why did my heart rate spike?",
	)
	if err != nil {
		t.Fatalf("QuestionPrompt failed: %v", err)
	}
	if !strings.Contains(prompt, `"Why did my heart rate spike?"`) {
		t.Error("prompt missing question")
	}
	if !strings.Contains(prompt, `"value":95`) {
		t.Error("prompt missing recent data")
	}
}

func TestChatAdvisor(t *testing.T) {
	var requests []chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests = append(requests, req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Looks normal."}}]}`))
	}))
	defer server.Close()

	advisor, err := NewChatAdvisor(AdvisorConfig{
		BaseURL:     server.URL + "/v1/",
		Model:       "llama3",
		APIKey:      "secret",
		KeepHistory: true,
	})
	if err != nil {
		t.Fatalf("NewChatAdvisor failed: %v", err)
	}

	for _, q := range []string{"first", "second"} {
		reply, err := advisor.Generate(context.Background(), q)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if reply != "Looks normal." {
			t.Errorf("reply = %q", reply)
		}
	}

	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}
	if requests[0].Model != "llama3" || len(requests[0].Messages) != 1 {
		t.Errorf("Unexpected first request: %+v", requests[0])
	}
	// Second request carries the first exchange.
	if len(requests[1].Messages) != 3 || requests[1].Messages[1].Role != "assistant" {
		t.Errorf("Unexpected second request: %+v", requests[1])
	}
	if len(advisor.History()) != 4 {
		t.Errorf("Expected 4 history messages, got %d", len(advisor.History()))
	}

	advisor.Reset()
	if len(advisor.History()) != 0 {
		t.Error("Expected empty history after reset")
	}
}

func TestChatAdvisorErrors(t *testing.T) {
	if _, err := NewChatAdvisor(AdvisorConfig{}); !errors.Is(err, ErrNoAdvisor) {
		t.Errorf("Expected ErrNoAdvisor, got %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	advisor, err := NewChatAdvisor(AdvisorConfig{BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewChatAdvisor failed: %v", err)
	}
	if _, err := advisor.Generate(context.Background(), "hi"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected 503 error, got %v", err)
	}
}
