// ABOUTME: Export and import functionality for sensor data.
// ABOUTME: Supports JSON (round-trippable) and YAML (grouped by metric) formats.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format for sensor data.
type ExportData struct {
	Version    string            `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Tool       string            `json:"tool" yaml:"tool"`
	Baselines  []models.Baseline `json:"baselines" yaml:"baselines"`
	Readings   []models.Reading  `json:"readings" yaml:"readings"`
}

// GetAllData retrieves all data for export.
func GetAllData(ctx context.Context, s Store) (*ExportData, error) {
	baselines, err := s.Baselines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}

	readings, err := s.AllReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Tool:       "vitalsync",
		Baselines:  make([]models.Baseline, 0, len(baselines)),
		Readings:   readings,
	}
	for metric, value := range baselines {
		data.Baselines = append(data.Baselines, models.Baseline{Metric: metric, Value: value})
	}
	sort.Slice(data.Baselines, func(i, j int) bool {
		return data.Baselines[i].Metric < data.Baselines[j].Metric
	})

	return data, nil
}

// ImportData writes an export into s. Readings are appended, so importing
// the same file twice duplicates them.
func ImportData(ctx context.Context, s Store, data *ExportData) error {
	for _, b := range data.Baselines {
		if err := s.UpsertBaseline(ctx, b.Metric, b.Value); err != nil {
			return fmt.Errorf("import baseline: %w", err)
		}
	}

	for _, r := range data.Readings {
		if err := s.AppendReading(ctx, r); err != nil {
			return fmt.Errorf("import reading: %w", err)
		}
	}

	return nil
}

// ExportJSON exports all data as JSON.
func ExportJSON(ctx context.Context, s Store) ([]byte, error) {
	data, err := GetAllData(ctx, s)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ImportJSON imports data from a JSON export.
func ImportJSON(ctx context.Context, s Store, raw []byte) error {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return ImportData(ctx, s, &data)
}

type yamlReading struct {
	Timestamp string  `yaml:"timestamp"`
	Value     float64 `yaml:"value"`
	Context   string  `yaml:"context"`
}

// ExportYAML exports all data as YAML with readings grouped by metric.
func ExportYAML(ctx context.Context, s Store) ([]byte, error) {
	data, err := GetAllData(ctx, s)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string                   `yaml:"version"`
		ExportedAt string                   `yaml:"exported_at"`
		Tool       string                   `yaml:"tool"`
		Baselines  map[string]float64       `yaml:"baselines"`
		Readings   map[string][]yamlReading `yaml:"readings"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Baselines:  make(map[string]float64, len(data.Baselines)),
		Readings:   make(map[string][]yamlReading),
	}

	for _, b := range data.Baselines {
		yamlData.Baselines[b.Metric] = b.Value
	}

	// Group readings by metric
	for _, r := range data.Readings {
		yamlData.Readings[r.Metric] = append(yamlData.Readings[r.Metric], yamlReading{
			Timestamp: models.FormatTimestamp(r.Timestamp),
			Value:     r.Value,
			Context:   string(r.Context),
		})
	}

	return yaml.Marshal(yamlData)
}
