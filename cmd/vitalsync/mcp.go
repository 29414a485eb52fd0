// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for AI assistant integration.
package main

import (
	"github.com/harperreed/vitalsync/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The server communicates via stdin/stdout. Logs go to stderr.

CONFIGURATION:

  {
    "mcpServers": {
      "vitalsync": {
        "command": "vitalsync",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  get_latest        Latest value and context of each metric
  get_history       Readings of one metric from the last N hours
  get_recent        The N most recent readings of one metric
  get_baselines     Calibrated resting values
  detect_insights   Significant heart rate and temperature changes
  record_sample     Record one multi-metric sample

AVAILABLE RESOURCES:

  vitals://latest      Latest values, current context, and last minute of data
  vitals://baselines   Resting baselines
  vitals://insights    Significant recent changes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(store, logger)
		if err != nil {
			return err
		}
		return server.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
