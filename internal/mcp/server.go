// ABOUTME: MCP server setup for the vitals store.
// ABOUTME: Wraps MCP server with query, insight, and ingestion access to storage.
package mcp

import (
	"context"
	"log/slog"

	"github.com/harperreed/vitalsync/internal/ingest"
	"github.com/harperreed/vitalsync/internal/insight"
	"github.com/harperreed/vitalsync/internal/query"
	"github.com/harperreed/vitalsync/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with storage access.
type Server struct {
	mcpServer *mcp.Server
	store     storage.Store
	query     *query.Service
	detector  *insight.Detector
	pipeline  *ingest.Pipeline
}

// NewServer creates a new MCP server with the given storage.
func NewServer(store storage.Store, log *slog.Logger) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vitalsync",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		store:     store,
		query:     query.NewService(store),
		detector:  insight.NewDetector(store),
		pipeline:  ingest.NewPipeline(store, log, nil),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}
