// ABOUTME: Metric names, units, and the Reading/Baseline records for sensor data.
// ABOUTME: Defines the five tracked physiological metrics and timestamp encoding.
package models

import (
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// Tracked metric names. Any sample key other than timestamp/context is a
// metric, so these are conventions rather than a closed set.
const (
	MetricHeartRate       = "Heart_Rate"
	MetricBodyTemperature = "Body_Temperature"
	MetricAccelX          = "Accel_X"
	MetricAccelY          = "Accel_Y"
	MetricAccelZ          = "Accel_Z"
)

// DefaultMetrics lists the metrics produced by the sensor rig.
var DefaultMetrics = []string{
	MetricHeartRate,
	MetricBodyTemperature,
	MetricAccelX,
	MetricAccelY,
	MetricAccelZ,
}

// MetricUnits maps metric names to their display units.
var MetricUnits = map[string]string{
	MetricHeartRate:       "BPM",
	MetricBodyTemperature: "°C",
	MetricAccelX:          "g",
	MetricAccelY:          "g",
	MetricAccelZ:          "g",
}

// TimestampLayout is the persisted timestamp form: fixed-width UTC with
// microsecond precision, so lexical order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in the persisted layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any ISO-8601 timestamp. Values without a zone are
// interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Reading is one timestamped, context-labeled observation of one metric.
type Reading struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Metric    string    `json:"metric" yaml:"metric"`
	Value     float64   `json:"value" yaml:"value"`
	Context   Context   `json:"context" yaml:"context"`
}

// NewReading creates a Reading with the timestamp normalized to UTC.
func NewReading(metric string, value float64, ts time.Time, ctx Context) Reading {
	return Reading{
		Timestamp: ts.UTC(),
		Metric:    metric,
		Value:     value,
		Context:   ctx,
	}
}

// Baseline is the resting reference value for one metric.
type Baseline struct {
	Metric string  `json:"metric" yaml:"metric"`
	Value  float64 `json:"value" yaml:"value"`
}

// Latest is the most recent value recorded for a single metric.
type Latest struct {
	Value     float64   `json:"value"`
	Context   Context   `json:"context"`
	Timestamp time.Time `json:"timestamp"`
}
