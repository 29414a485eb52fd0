// ABOUTME: CLI command for the sensor producer loop.
// ABOUTME: Calibrates, then samples, stores, and publishes on every tick.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/ingest"
	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/sensor"
	"github.com/harperreed/vitalsync/internal/transport"
	"github.com/spf13/cobra"
)

var (
	produceInterval        time.Duration
	produceCount           int
	produceOffline         bool
	produceSkipCalibration bool
)

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Stream simulated sensor samples",
	Long: `Calibrate resting baselines, then read every sensor once per interval.
Each sample is stored locally and published to the MQTT topic.

Before each sample there is a one in five chance the activity context
advances to the next state in the fixed cycle
resting -> running -> walking -> exercising -> resting.

EXAMPLES:

  vitalsync produce                    # Sample every second until Ctrl-C
  vitalsync produce -n 30 --offline    # 30 samples, store only
  vitalsync produce --skip-calibration`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		interval := produceInterval
		if !cmd.Flags().Changed("interval") {
			var err error
			if interval, err = cfg.GetSampleInterval(); err != nil {
				return err
			}
		}

		seed := seedOrNow(calibrateSeed)
		sim := sensor.NewSimulator(seed)

		if !produceSkipCalibration {
			baselines, err := runCalibration(cmd, sim)
			if err != nil {
				return err
			}
			color.Green("✓ Calibrated %d metrics", len(baselines))
		}

		var pub transport.Publisher
		if !produceOffline {
			opts := cfg.TransportOptions()
			opts.Log = logger
			client, err := transport.Dial(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to connect to broker: %w", err)
			}
			defer client.Close()
			pub = client
		}

		p := &producer{
			sampler:  sensor.NewSampler(logger, sim.Sources()...),
			sim:      sim,
			rotator:  sensor.NewRotator(seed+1, sensor.DefaultRotationChance),
			pipeline: ingest.NewPipeline(store, logger, nil),
			pub:      pub,
			log:      logger,
		}

		err := p.run(ctx, interval, produceCount, func(s *models.Sample, n int) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d readings\n",
				color.New(color.Faint).Sprint(models.FormatTimestamp(s.Timestamp)),
				padRight(string(s.Context), 11), n)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// producer ties the sensor loop to storage and the broker.
type producer struct {
	sampler  *sensor.Sampler
	sim      *sensor.Simulator
	rotator  *sensor.Rotator
	pipeline *ingest.Pipeline
	pub      transport.Publisher
	log      *slog.Logger
}

// tick rotates the context, takes one sample, stores it and publishes it.
func (p *producer) tick(ctx context.Context, now time.Time) (*models.Sample, int, error) {
	c := p.rotator.Tick()
	p.sim.SetContext(c)

	s := p.sampler.Sample(ctx, now, c)
	n, err := p.pipeline.Ingest(ctx, s)
	if err != nil {
		return s, n, err
	}

	if p.pub != nil {
		if err := p.pub.Publish(ctx, s); err != nil {
			return s, n, fmt.Errorf("publish: %w", err)
		}
	}
	return s, n, nil
}

// run ticks every interval until ctx ends or count samples were produced.
// A count of zero runs until cancelled.
func (p *producer) run(ctx context.Context, interval time.Duration, count int, report func(*models.Sample, int)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	produced := 0
	for {
		s, n, err := p.tick(ctx, time.Now())
		if err != nil {
			// A failed tick is logged and the loop keeps sampling.
			p.log.Error("sample failed", "error", err)
		} else if report != nil {
			report(s, n)
		}

		produced++
		if count > 0 && produced >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	produceCmd.Flags().DurationVar(&produceInterval, "interval", time.Second, "time between samples")
	produceCmd.Flags().IntVarP(&produceCount, "count", "n", 0, "number of samples (0 = until interrupted)")
	produceCmd.Flags().BoolVar(&produceOffline, "offline", false, "store samples without publishing")
	produceCmd.Flags().BoolVar(&produceSkipCalibration, "skip-calibration", false, "keep existing baselines")
	addCalibrationFlags(produceCmd)
	rootCmd.AddCommand(produceCmd)
}
