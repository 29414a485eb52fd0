// ABOUTME: CLI command for the consumer loop and live dashboard.
// ABOUTME: Ingests MQTT samples and periodically renders latest values and insights.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/ingest"
	"github.com/harperreed/vitalsync/internal/insight"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/harperreed/vitalsync/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	consumeRefresh     time.Duration
	consumeMetric      string
	consumeHours       float64
	consumeMetricsAddr string
	consumeQuiet       bool
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Ingest samples and show a live dashboard",
	Long: `Subscribe to the sensor topic and store every arriving sample. Each refresh
prints the current context, the latest values against their baselines,
any significant changes, and the last minute of the chosen metric.

Malformed messages are logged and dropped.

EXAMPLES:

  vitalsync consume                              # Refresh every 2 seconds
  vitalsync consume --metric Body_Temperature    # Chart temperature
  vitalsync consume --metrics-addr :9100         # Expose Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		refresh := consumeRefresh
		if !cmd.Flags().Changed("refresh") {
			var err error
			if refresh, err = cfg.GetRefreshInterval(); err != nil {
				return err
			}
		}

		reg := prometheus.NewRegistry()
		pipeline := ingest.NewPipeline(store, logger, ingest.NewMetrics(reg))

		if consumeMetricsAddr != "" {
			stop := serveMetrics(consumeMetricsAddr, reg)
			defer stop()
		}

		opts := cfg.TransportOptions()
		opts.Log = logger
		client, err := transport.Dial(ctx, opts)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer client.Close()

		if err := client.Subscribe(ctx, pipeline.HandleMessage); err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		logger.Info("consuming", "broker", opts.Broker, "topic", opts.Topic)

		d := &dashboard{
			query:    query.NewService(store),
			detector: insight.NewDetector(store),
			metric:   consumeMetric,
			hours:    consumeHours,
		}

		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if consumeQuiet {
					continue
				}
				if err := d.render(ctx, cmd.OutOrStdout()); err != nil {
					logger.Error("dashboard refresh failed", "error", err)
				}
			}
		}
	},
}

// dashboard renders the periodic consumer view.
type dashboard struct {
	query    *query.Service
	detector *insight.Detector
	metric   string
	hours    float64
}

func (d *dashboard) render(ctx context.Context, w io.Writer) error {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\n== vitals %s ==\n", time.Now().Format(time.TimeOnly))

	if err := printLatest(ctx, w, d.query); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if err := printInsights(ctx, w, d.detector); err != nil {
		return err
	}

	history, err := d.query.History(ctx, d.metric, d.hours)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	window := query.ClampToLatest(history, query.DisplayWindow)

	fmt.Fprintln(w)
	bold.Fprintf(w, "%s, last %s of data\n", d.metric, query.DisplayWindow)
	printReadings(w, d.metric, window)
	return nil
}

// serveMetrics exposes reg on addr at /metrics and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	consumeCmd.Flags().DurationVar(&consumeRefresh, "refresh", 2*time.Second, "dashboard refresh interval")
	consumeCmd.Flags().StringVar(&consumeMetric, "metric", models.MetricHeartRate, "metric to chart")
	consumeCmd.Flags().Float64Var(&consumeHours, "hours", 1, "hours of history to scan for the chart")
	consumeCmd.Flags().StringVar(&consumeMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	consumeCmd.Flags().BoolVarP(&consumeQuiet, "quiet", "q", false, "ingest without rendering the dashboard")
	rootCmd.AddCommand(consumeCmd)
}
