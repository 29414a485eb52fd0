// ABOUTME: CLI command for calibrating resting baselines.
// ABOUTME: Samples simulated sensors at rest and stores the averages.
package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/calibrate"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/sensor"
	"github.com/spf13/cobra"
)

var (
	calibrateRounds   int
	calibrateInterval time.Duration
	calibrateSeed     uint64
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure resting baselines",
	Long: `Sample every sensor while at rest and store the average of each metric
as its resting baseline. Re-running replaces the previous baselines.

Samples the sensor rejects (a non-positive heart rate, for example) are
discarded. A metric with no usable samples falls back to its default:
Heart_Rate 70, Body_Temperature 25, Accel 0.

EXAMPLES:

  vitalsync calibrate                 # 10 rounds, one second apart
  vitalsync calibrate -r 3 -i 200ms   # Quick calibration`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sim := sensor.NewSimulator(seedOrNow(calibrateSeed))
		baselines, err := runCalibration(cmd, sim)
		if err != nil {
			return err
		}

		color.Green("✓ Calibrated %d metrics", len(baselines))
		printBaselines(cmd.OutOrStdout(), baselines)
		return nil
	},
}

// runCalibration calibrates against sim's sources using the command's flags.
func runCalibration(cmd *cobra.Command, sim *sensor.Simulator) (map[string]float64, error) {
	c := calibrate.New(store, logger, sim.Sources()...)
	c.Rounds = cfg.GetCalibrationRounds()
	if cmd.Flags().Changed("rounds") {
		c.Rounds = calibrateRounds
	}
	c.Interval = calibrateInterval

	baselines, err := c.Run(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("calibration failed: %w", err)
	}
	return baselines, nil
}

func printBaselines(w io.Writer, baselines map[string]float64) {
	if len(baselines) == 0 {
		fmt.Fprintln(w, "No baselines. Run 'vitalsync calibrate' first.")
		return
	}
	faint := color.New(color.Faint)
	for _, m := range sortedMetrics(baselines) {
		fmt.Fprintf(w, "%s %.2f %s\n", padRight(m, 18), baselines[m], faint.Sprint(models.MetricUnits[m]))
	}
}

func seedOrNow(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

func addCalibrationFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&calibrateRounds, "rounds", "r", calibrate.DefaultRounds, "calibration rounds")
	cmd.Flags().DurationVarP(&calibrateInterval, "calibrate-interval", "i", calibrate.DefaultInterval, "pause between calibration rounds")
	cmd.Flags().Uint64Var(&calibrateSeed, "seed", 0, "simulator seed (default: time-based)")
}

func init() {
	addCalibrationFlags(calibrateCmd)
	rootCmd.AddCommand(calibrateCmd)
}
