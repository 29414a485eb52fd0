// ABOUTME: MCP resource implementations for vitals data.
// ABOUTME: Provides vitals://latest, vitals://baselines, and vitals://insights resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	uriLatest    = "vitals://latest"
	uriBaselines = "vitals://baselines"
	uriInsights  = "vitals://insights"

	// windowHistoryHours bounds the history scanned before clamping to the display window.
	windowHistoryHours = 24
)

func (s *Server) registerResources() {
	// vitals://latest - Latest value of each metric plus a short history window
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         uriLatest,
		Name:        "Latest Vitals",
		Description: "Latest value of each metric, current activity context, and the last minute of readings",
		MIMEType:    "application/json",
	}, s.handleLatestResource)

	// vitals://baselines - Calibrated resting values
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         uriBaselines,
		Name:        "Resting Baselines",
		Description: "Calibrated resting value of each metric",
		MIMEType:    "application/json",
	}, s.handleBaselinesResource)

	// vitals://insights - Significant recent changes
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         uriInsights,
		Name:        "Vitals Insights",
		Description: "Significant short-term changes in heart rate and body temperature",
		MIMEType:    "application/json",
	}, s.handleInsightsResource)
}

// Resource handlers

func (s *Server) handleLatestResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	latest, err := s.query.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest: %w", err)
	}

	metrics, err := s.query.Metrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}

	values := make(map[string]interface{}, len(latest))
	window := make(map[string][]readingEntry)
	for _, m := range metrics {
		l, ok := latest[m]
		if !ok {
			continue
		}
		values[m] = map[string]interface{}{
			"value":     l.Value,
			"unit":      models.MetricUnits[m],
			"context":   l.Context,
			"timestamp": models.FormatTimestamp(l.Timestamp),
		}

		recent, err := s.query.History(ctx, m, windowHistoryHours)
		if err != nil {
			return nil, fmt.Errorf("failed to get history for %s: %w", m, err)
		}
		window[m] = toReadingsOutput(m, query.ClampToLatest(recent, query.DisplayWindow)).Readings
	}

	result := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"latest":       values,
		"window":       window,
	}
	if c, ok := query.CurrentContext(latest); ok {
		result["current_context"] = c
	}

	return jsonResource(uriLatest, result)
}

func (s *Server) handleBaselinesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	baselines, err := s.query.Baselines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get baselines: %w", err)
	}

	result := map[string]interface{}{
		"baselines":  baselines,
		"calibrated": len(baselines) > 0,
	}
	return jsonResource(uriBaselines, result)
}

func (s *Server) handleInsightsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	insights, err := s.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to detect insights: %w", err)
	}

	lines := make([]string, 0, len(insights))
	for _, in := range insights {
		lines = append(lines, in.String())
	}

	result := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"insights":     lines,
		"count":        len(lines),
	}
	return jsonResource(uriInsights, result)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
