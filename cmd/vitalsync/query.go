// ABOUTME: CLI commands for one-shot queries of stored vitals.
// ABOUTME: Implements latest, history, recent, baselines, and insights.
package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/insight"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/spf13/cobra"
)

var (
	historyHours float64
	recentLimit  int
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest value of each metric",
	Long: `Show the most recent reading of every metric, the activity context it was
taken in, and the resting baseline for comparison.

The current context is the context of the newest reading across all metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printLatest(cmd.Context(), cmd.OutOrStdout(), query.NewService(store))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <metric>",
	Short: "Show readings from the last N hours",
	Long: `Show every reading of a metric from the last N hours, oldest first.

EXAMPLES:

  vitalsync history Heart_Rate             # Last 24 hours
  vitalsync history Body_Temperature -H 1  # Last hour`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		readings, err := query.NewService(store).History(cmd.Context(), args[0], historyHours)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		printReadings(cmd.OutOrStdout(), args[0], readings)
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent <metric>",
	Short: "Show the N most recent readings",
	Long: `Show the N most recent readings of a metric, oldest first.

EXAMPLES:

  vitalsync recent Heart_Rate        # Last 10 readings
  vitalsync recent Accel_X -n 50     # Last 50 readings`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		readings, err := query.NewService(store).Recent(cmd.Context(), args[0], recentLimit)
		if err != nil {
			return fmt.Errorf("failed to get recent readings: %w", err)
		}
		printReadings(cmd.OutOrStdout(), args[0], readings)
		return nil
	},
}

var baselinesCmd = &cobra.Command{
	Use:   "baselines",
	Short: "Show calibrated resting baselines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baselines, err := query.NewService(store).Baselines(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get baselines: %w", err)
		}
		printBaselines(cmd.OutOrStdout(), baselines)
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Flag significant recent changes",
	Long: `Look at the last 10 readings of Heart_Rate and Body_Temperature and flag
any jump between consecutive readings larger than 10 BPM or 1 °C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printInsights(cmd.Context(), cmd.OutOrStdout(), insight.NewDetector(store))
	},
}

func printLatest(ctx context.Context, w io.Writer, svc *query.Service) error {
	latest, err := svc.Latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest: %w", err)
	}
	if len(latest) == 0 {
		fmt.Fprintln(w, "No readings yet.")
		return nil
	}
	baselines, err := svc.Baselines(ctx)
	if err != nil {
		return fmt.Errorf("failed to get baselines: %w", err)
	}

	if c, ok := query.CurrentContext(latest); ok {
		fmt.Fprintf(w, "Current Context: %s\n", color.New(color.Bold).Sprint(c))
	}

	faint := color.New(color.Faint)
	metrics := make([]string, 0, len(latest))
	for m := range latest {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	for _, m := range metrics {
		l := latest[m]
		line := fmt.Sprintf("%s %8.2f %-4s", padRight(m, 18), l.Value, models.MetricUnits[m])
		if b, ok := baselines[m]; ok {
			line += faint.Sprintf(" (resting %.2f)", b)
		}
		fmt.Fprintf(w, "%s %s\n", line, faint.Sprint(models.FormatTimestamp(l.Timestamp)))
	}
	return nil
}

func printReadings(w io.Writer, metric string, readings []models.Reading) {
	if len(readings) == 0 {
		fmt.Fprintf(w, "No %s readings found.\n", metric)
		return
	}
	faint := color.New(color.Faint)
	unit := models.MetricUnits[metric]
	for _, r := range readings {
		fmt.Fprintf(w, "%s %8.2f %-4s %s\n",
			faint.Sprint(models.FormatTimestamp(r.Timestamp)),
			r.Value, unit, r.Context)
	}
}

func printInsights(ctx context.Context, w io.Writer, d *insight.Detector) error {
	insights, err := d.Detect(ctx)
	if err != nil {
		return fmt.Errorf("failed to detect insights: %w", err)
	}
	if len(insights) == 0 {
		fmt.Fprintln(w, "No significant changes detected.")
		return nil
	}
	warn := color.New(color.FgYellow)
	for _, in := range insights {
		warn.Fprintln(w, in.String())
	}
	return nil
}

func sortedMetrics(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	historyCmd.Flags().Float64VarP(&historyHours, "hours", "H", 24, "how many hours back to look")
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "number of readings")

	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(baselinesCmd)
	rootCmd.AddCommand(insightsCmd)
}
