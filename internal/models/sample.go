// ABOUTME: Sample is one multi-metric sensor snapshot sharing a timestamp and context.
// ABOUTME: Encodes to and decodes from the flat JSON record carried on the transport.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Reserved wire keys; every other key is a metric.
const (
	FieldTimestamp = "timestamp"
	FieldContext   = "context"
)

// Sample is a single sensor snapshot: one value per metric plus a shared
// timestamp and context.
type Sample struct {
	Timestamp time.Time
	Context   Context
	Values    map[string]float64
}

// NewSample creates an empty sample stamped with ts.
func NewSample(ts time.Time, ctx Context) *Sample {
	return &Sample{
		Timestamp: ts.UTC(),
		Context:   ctx,
		Values:    make(map[string]float64),
	}
}

// Set records a metric value on the sample.
func (s *Sample) Set(metric string, value float64) *Sample {
	if s.Values == nil {
		s.Values = make(map[string]float64)
	}
	s.Values[metric] = value
	return s
}

// Metrics returns the sample's metric names in sorted order.
func (s *Sample) Metrics() []string {
	names := make([]string, 0, len(s.Values))
	for name := range s.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Readings expands the sample into one Reading per metric, in metric order.
func (s *Sample) Readings() []Reading {
	readings := make([]Reading, 0, len(s.Values))
	for _, name := range s.Metrics() {
		readings = append(readings, NewReading(name, s.Values[name], s.Timestamp, s.Context))
	}
	return readings
}

// MarshalJSON writes the flat wire record.
func (s Sample) MarshalJSON() ([]byte, error) {
	record := make(map[string]any, len(s.Values)+2)
	for name, v := range s.Values {
		record[name] = v
	}
	record[FieldTimestamp] = FormatTimestamp(s.Timestamp)
	record[FieldContext] = string(s.Context)
	return json.Marshal(record)
}

// UnmarshalJSON reads the flat wire record. Missing or invalid timestamp and
// context fields, and non-numeric metric values, are decode errors.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("empty record")
	}

	rawTS, ok := record[FieldTimestamp]
	if !ok {
		return fmt.Errorf("missing %s", FieldTimestamp)
	}
	var tsStr string
	if err := json.Unmarshal(rawTS, &tsStr); err != nil {
		return fmt.Errorf("%s must be a string", FieldTimestamp)
	}
	ts, err := ParseTimestamp(tsStr)
	if err != nil {
		return err
	}

	rawCtx, ok := record[FieldContext]
	if !ok {
		return fmt.Errorf("missing %s", FieldContext)
	}
	var ctxStr string
	if err := json.Unmarshal(rawCtx, &ctxStr); err != nil {
		return fmt.Errorf("%s must be a string", FieldContext)
	}
	ctx, err := ParseContext(ctxStr)
	if err != nil {
		return err
	}

	values := make(map[string]float64, len(record))
	for key, raw := range record {
		if key == FieldTimestamp || key == FieldContext {
			continue
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil || v == nil {
			return fmt.Errorf("metric %s is not a number", key)
		}
		values[key] = *v
	}

	s.Timestamp = ts
	s.Context = ctx
	s.Values = values
	return nil
}
