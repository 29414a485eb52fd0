// ABOUTME: CLI command for running an embedded MQTT broker.
// ABOUTME: Lets producer and consumer talk without an external broker.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/vitalsync/internal/transport"
	"github.com/spf13/cobra"
)

var brokerAddr string

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run an embedded MQTT broker",
	Long: `Run a local MQTT broker so producer and consumer can talk without an
external broker. Any client may connect.

EXAMPLES:

  vitalsync broker                   # Listen on localhost:1883
  vitalsync broker --addr :1884`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := transport.NewBroker(brokerAddr, logger)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		if err := b.Serve(); err != nil {
			return fmt.Errorf("failed to start broker: %w", err)
		}
		defer b.Close()

		color.Green("✓ Broker listening on %s", b.URL())
		<-cmd.Context().Done()
		return nil
	},
}

func init() {
	brokerCmd.Flags().StringVar(&brokerAddr, "addr", transport.DefaultBrokerAddr, "listen address")
	rootCmd.AddCommand(brokerCmd)
}
