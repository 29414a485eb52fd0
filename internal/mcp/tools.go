// ABOUTME: MCP tool implementations for vitals queries.
// ABOUTME: Provides latest, history, recent, baselines, insights, and sample recording.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// get_latest
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_latest",
		Description: "Get the most recent value and activity context for each metric",
	}, s.handleGetLatest)

	// get_history
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_history",
		Description: "Get readings of one metric from the last N hours, oldest first",
	}, s.handleGetHistory)

	// get_recent
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_recent",
		Description: "Get the N most recent readings of one metric, oldest first",
	}, s.handleGetRecent)

	// get_baselines
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_baselines",
		Description: "Get the calibrated resting value of each metric",
	}, s.handleGetBaselines)

	// detect_insights
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "detect_insights",
		Description: "Flag heart rate and body temperature jumps in the most recent readings",
	}, s.handleDetectInsights)

	// record_sample
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_sample",
		Description: "Record one multi-metric sensor sample with an activity context",
	}, s.handleRecordSample)
}

// Tool input/output types

type getLatestInput struct {
	Metrics []string `json:"metrics,omitempty" jsonschema:"Metric names to include; all metrics when empty"`
}

type latestEntry struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Context   string  `json:"context"`
	Timestamp string  `json:"timestamp"`
}

type latestOutput struct {
	CurrentContext string        `json:"current_context,omitempty"`
	Latest         []latestEntry `json:"latest"`
}

type getHistoryInput struct {
	Metric string  `json:"metric" jsonschema:"Metric name such as Heart_Rate or Body_Temperature"`
	Hours  float64 `json:"hours,omitempty" jsonschema:"How many hours back to look (default 24)"`
}

type getRecentInput struct {
	Metric string `json:"metric" jsonschema:"Metric name such as Heart_Rate or Body_Temperature"`
	Limit  int    `json:"limit,omitempty" jsonschema:"How many readings to return (default 10)"`
}

type readingEntry struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Context   string  `json:"context"`
}

type readingsOutput struct {
	Metric   string         `json:"metric"`
	Unit     string         `json:"unit,omitempty"`
	Count    int            `json:"count"`
	Readings []readingEntry `json:"readings"`
}

type emptyInput struct{}

type baselineEntry struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
}

type baselinesOutput struct {
	Baselines []baselineEntry `json:"baselines"`
}

type insightEntry struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Change    float64 `json:"change"`
	Timestamp string  `json:"timestamp"`
	Message   string  `json:"message"`
}

type insightsOutput struct {
	Insights []insightEntry `json:"insights"`
	Message  string         `json:"message"`
}

type recordSampleInput struct {
	Context   string             `json:"context" jsonschema:"Activity: resting, running, walking, or exercising"`
	Values    map[string]float64 `json:"values" jsonschema:"Metric name to value"`
	Timestamp string             `json:"timestamp,omitempty" jsonschema:"ISO 8601 timestamp, defaults to now"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

// Tool handlers

func (s *Server) handleGetLatest(ctx context.Context, req *mcp.CallToolRequest, input getLatestInput) (*mcp.CallToolResult, latestOutput, error) {
	latest, err := s.query.Latest(ctx)
	if err != nil {
		return nil, latestOutput{}, fmt.Errorf("failed to get latest: %w", err)
	}

	metrics := input.Metrics
	if len(metrics) == 0 {
		for m := range latest {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
	}

	out := latestOutput{Latest: []latestEntry{}}
	if c, ok := query.CurrentContext(latest); ok {
		out.CurrentContext = string(c)
	}
	for _, m := range metrics {
		l, ok := latest[m]
		if !ok {
			continue
		}
		out.Latest = append(out.Latest, latestEntry{
			Metric:    m,
			Value:     l.Value,
			Unit:      models.MetricUnits[m],
			Context:   string(l.Context),
			Timestamp: models.FormatTimestamp(l.Timestamp),
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetHistory(ctx context.Context, req *mcp.CallToolRequest, input getHistoryInput) (*mcp.CallToolResult, readingsOutput, error) {
	if input.Metric == "" {
		return nil, readingsOutput{}, fmt.Errorf("metric is required")
	}
	if input.Hours <= 0 {
		input.Hours = 24
	}

	readings, err := s.query.History(ctx, input.Metric, input.Hours)
	if err != nil {
		return nil, readingsOutput{}, fmt.Errorf("failed to get history: %w", err)
	}
	return nil, toReadingsOutput(input.Metric, readings), nil
}

func (s *Server) handleGetRecent(ctx context.Context, req *mcp.CallToolRequest, input getRecentInput) (*mcp.CallToolResult, readingsOutput, error) {
	if input.Metric == "" {
		return nil, readingsOutput{}, fmt.Errorf("metric is required")
	}
	if input.Limit <= 0 {
		input.Limit = 10
	}

	readings, err := s.query.Recent(ctx, input.Metric, input.Limit)
	if err != nil {
		return nil, readingsOutput{}, fmt.Errorf("failed to get recent readings: %w", err)
	}
	return nil, toReadingsOutput(input.Metric, readings), nil
}

func (s *Server) handleGetBaselines(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, baselinesOutput, error) {
	baselines, err := s.query.Baselines(ctx)
	if err != nil {
		return nil, baselinesOutput{}, fmt.Errorf("failed to get baselines: %w", err)
	}

	out := baselinesOutput{Baselines: []baselineEntry{}}
	for _, m := range sortedKeys(baselines) {
		out.Baselines = append(out.Baselines, baselineEntry{
			Metric: m,
			Value:  baselines[m],
			Unit:   models.MetricUnits[m],
		})
	}
	return nil, out, nil
}

func (s *Server) handleDetectInsights(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, insightsOutput, error) {
	insights, err := s.detector.Detect(ctx)
	if err != nil {
		return nil, insightsOutput{}, fmt.Errorf("failed to detect insights: %w", err)
	}

	out := insightsOutput{Insights: []insightEntry{}}
	for _, in := range insights {
		out.Insights = append(out.Insights, insightEntry{
			Metric:    in.Metric,
			Value:     in.Value,
			Change:    in.Change,
			Timestamp: models.FormatTimestamp(in.Timestamp),
			Message:   in.String(),
		})
	}
	if len(out.Insights) == 0 {
		out.Message = "No significant changes detected."
	} else {
		out.Message = fmt.Sprintf("%d significant change(s) detected.", len(out.Insights))
	}
	return nil, out, nil
}

func (s *Server) handleRecordSample(ctx context.Context, req *mcp.CallToolRequest, input recordSampleInput) (*mcp.CallToolResult, simpleOutput, error) {
	c, err := models.ParseContext(input.Context)
	if err != nil {
		return nil, simpleOutput{}, err
	}
	if len(input.Values) == 0 {
		return nil, simpleOutput{}, fmt.Errorf("values must contain at least one metric")
	}

	ts := time.Now()
	if input.Timestamp != "" {
		ts, err = models.ParseTimestamp(input.Timestamp)
		if err != nil {
			return nil, simpleOutput{}, err
		}
	}

	sample := models.NewSample(ts, c)
	for m, v := range input.Values {
		sample.Set(m, v)
	}

	n, err := s.pipeline.Ingest(ctx, sample)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to record sample: %w", err)
	}
	return nil, simpleOutput{
		Message: fmt.Sprintf("Recorded %d reading(s) at %s (context: %s)", n, models.FormatTimestamp(sample.Timestamp), c),
	}, nil
}

func toReadingsOutput(metric string, readings []models.Reading) readingsOutput {
	out := readingsOutput{
		Metric:   metric,
		Unit:     models.MetricUnits[metric],
		Count:    len(readings),
		Readings: make([]readingEntry, 0, len(readings)),
	}
	for _, r := range readings {
		out.Readings = append(out.Readings, readingEntry{
			Timestamp: models.FormatTimestamp(r.Timestamp),
			Value:     r.Value,
			Context:   string(r.Context),
		})
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
