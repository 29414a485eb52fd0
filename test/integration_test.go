// ABOUTME: Integration tests for vitalsync.
// ABOUTME: Tests the CLI workflow and the producer-broker-consumer path end to end.
package test

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/vitalsync/internal/ingest"
	"github.com/harperreed/vitalsync/internal/insight"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/harperreed/vitalsync/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestFullWorkflow(t *testing.T) {
	// Build the binary
	projectRoot, _ := filepath.Abs("..")
	binary := filepath.Join(t.TempDir(), "vitalsync")

	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/vitalsync")
	buildCmd.Dir = projectRoot
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build: %v\n%s", err, output)
	}

	dataDir := t.TempDir()
	configPath := filepath.Join(dataDir, "config.json")

	run := func(args ...string) (string, error) {
		fullArgs := append([]string{"--data-dir", dataDir, "--config", configPath}, args...)
		cmd := exec.Command(binary, fullArgs...)
		cmd.Env = append(os.Environ(), "NO_COLOR=1")
		output, err := cmd.CombinedOutput()
		return string(output), err
	}

	output, err := run("calibrate", "-r", "2", "-i", "10ms")
	if err != nil {
		t.Fatalf("Failed to calibrate: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Calibrated 5 metrics") {
		t.Errorf("Expected 'Calibrated 5 metrics' in output, got: %s", output)
	}

	output, err = run("produce", "--offline", "--skip-calibration", "-n", "5", "--interval", "10ms")
	if err != nil {
		t.Fatalf("Failed to produce: %v\n%s", err, output)
	}

	output, err = run("latest")
	if err != nil {
		t.Fatalf("Failed to get latest: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Current Context:") || !strings.Contains(output, "Heart_Rate") {
		t.Errorf("Expected current context and Heart_Rate in output, got: %s", output)
	}

	output, err = run("recent", "Heart_Rate", "-n", "3")
	if err != nil {
		t.Fatalf("Failed to get recent: %v\n%s", err, output)
	}
	if got := strings.Count(output, "BPM"); got != 3 {
		t.Errorf("Expected 3 readings, got %d: %s", got, output)
	}

	output, err = run("migrate", "--to", "badger")
	if err != nil {
		t.Fatalf("Failed to migrate: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Migrated 5 baselines and 25 readings") {
		t.Errorf("Unexpected migrate output: %s", output)
	}

	output, err = run("--backend", "badger", "export", "json")
	if err != nil {
		t.Fatalf("Failed to export: %v\n%s", err, output)
	}
	if !strings.Contains(output, `"tool": "vitalsync"`) {
		t.Errorf("Expected vitalsync export, got: %s", output)
	}
}

func TestMQTTRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	broker, err := transport.NewBroker(addr, nil)
	require.NoError(t, err)
	require.NoError(t, broker.Serve())
	defer broker.Close()

	store, err := storage.Open(filepath.Join(t.TempDir(), "health_data.db"))
	require.NoError(t, err)
	defer store.Close()

	metrics := ingest.NewMetrics(prometheus.NewRegistry())
	pipeline := ingest.NewPipeline(store, nil, metrics)

	consumer, err := transport.Dial(ctx, transport.Options{Broker: broker.URL()})
	require.NoError(t, err)
	defer consumer.Close()
	require.NoError(t, consumer.Subscribe(ctx, pipeline.HandleMessage))

	producer, err := transport.Dial(ctx, transport.Options{Broker: broker.URL()})
	require.NoError(t, err)
	defer producer.Close()

	start := time.Now().UTC().Truncate(time.Second)
	for i, hr := range []float64{70, 72, 71, 98} {
		c := models.ContextResting
		if hr > 90 {
			c = models.ContextRunning
		}
		s := models.NewSample(start.Add(time.Duration(i)*time.Second), c).
			Set(models.MetricHeartRate, hr).
			Set(models.MetricBodyTemperature, 36.6)
		require.NoError(t, producer.Publish(ctx, s))
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Samples) == 4
	}, 10*time.Second, 20*time.Millisecond)

	latest, err := query.NewService(store).Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, 98.0, latest[models.MetricHeartRate].Value)

	current, ok := query.CurrentContext(latest)
	require.True(t, ok)
	require.Equal(t, models.ContextRunning, current)

	insights, err := insight.NewDetector(store).Detect(ctx)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, models.MetricHeartRate, insights[0].Metric)
	require.InDelta(t, 27.0, insights[0].Change, 1e-9)
}
