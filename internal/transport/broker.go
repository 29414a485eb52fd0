// ABOUTME: Embedded MQTT broker for local runs and tests.
// ABOUTME: Starts a mochi server with a single TCP listener and open access.
package transport

import (
	"fmt"
	"io"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// DefaultBrokerAddr is where the embedded broker listens by default.
const DefaultBrokerAddr = "localhost:1883"

// Broker is an in-process MQTT broker.
type Broker struct {
	server *mochi.Server
	addr   string
}

// NewBroker creates a broker listening on addr. Nothing is served until
// Serve is called.
func NewBroker(addr string, log *slog.Logger) (*Broker, error) {
	if addr == "" {
		addr = DefaultBrokerAddr
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	server := mochi.New(&mochi.Options{
		InlineClient: false,
		Logger:       log.With("component", "broker"),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Type:    "tcp",
		Address: addr,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add listener %s: %w", addr, err)
	}

	return &Broker{server: server, addr: addr}, nil
}

// Addr returns the listener address.
func (b *Broker) Addr() string {
	return b.addr
}

// URL returns the broker address in the form paho expects.
func (b *Broker) URL() string {
	return "tcp://" + b.addr
}

// Serve starts accepting connections and returns immediately.
func (b *Broker) Serve() error {
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("serve broker: %w", err)
	}
	return nil
}

// Close stops the broker and disconnects all clients.
func (b *Broker) Close() error {
	return b.server.Close()
}
