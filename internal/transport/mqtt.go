// ABOUTME: MQTT transport that carries sensor samples from producer to consumer.
// ABOUTME: Wraps the paho client with auto-reconnect and resubscribe on connect.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/harperreed/vitalsync/internal/models"
)

// Defaults for the sensor data channel.
const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultTopic    = "health_sensor/data"
	DefaultQoS byte = 1
)

// ErrNotConnected is returned when the client has been closed.
var ErrNotConnected = errors.New("transport not connected")

// Handler processes one received payload.
type Handler func(ctx context.Context, payload []byte) error

// Publisher sends samples to subscribers.
type Publisher interface {
	Publish(ctx context.Context, s *models.Sample) error
	Close() error
}

// Subscriber delivers received payloads to a handler.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Options configures an MQTT client.
type Options struct {
	Broker         string
	Topic          string
	QoS            byte
	ClientIDPrefix string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	Log            *slog.Logger
}

func (o *Options) defaults() {
	if o.Broker == "" {
		o.Broker = DefaultBroker
	}
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	if o.ClientIDPrefix == "" {
		o.ClientIDPrefix = "vitalsync"
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.Log == nil {
		o.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Client is an MQTT publisher and subscriber on one topic.
type Client struct {
	opts     Options
	clientID string
	client   mqtt.Client
	log      *slog.Logger

	mu         sync.Mutex
	handler    Handler
	handlerCtx context.Context
	closed     bool
}

var (
	_ Publisher  = (*Client)(nil)
	_ Subscriber = (*Client)(nil)
)

// Dial connects to the broker and returns a ready client.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts.defaults()

	c := &Client{
		opts:     opts,
		clientID: fmt.Sprintf("%s-%s", opts.ClientIDPrefix, uuid.NewString()),
		log:      opts.Log.With("component", "mqtt"),
	}

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(c.clientID)
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
		mo.SetPassword(opts.Password)
	}
	mo.SetKeepAlive(60 * time.Second)
	mo.SetPingTimeout(10 * time.Second)
	mo.SetConnectTimeout(opts.ConnectTimeout)
	mo.SetAutoReconnect(true)
	mo.SetMaxReconnectInterval(30 * time.Second)
	mo.SetOrderMatters(false)
	mo.OnConnect = c.onConnect
	mo.OnConnectionLost = c.onConnectionLost
	mo.OnReconnecting = c.onReconnecting

	c.client = mqtt.NewClient(mo)

	c.log.Info("connecting", "broker", opts.Broker, "client_id", c.clientID)
	if err := wait(ctx, c.client.Connect(), opts.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.Broker, err)
	}
	return c, nil
}

// ClientID returns the MQTT client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Publish sends a sample as a JSON wire record.
func (c *Client) Publish(ctx context.Context, s *models.Sample) error {
	if c.isClosed() {
		return ErrNotConnected
	}

	payload, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	token := c.client.Publish(c.opts.Topic, c.opts.QoS, false, payload)
	if err := wait(ctx, token, c.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", c.opts.Topic, err)
	}
	c.log.Debug("published", "topic", c.opts.Topic, "context", s.Context, "bytes", len(payload))
	return nil
}

// Subscribe delivers every message on the topic to h until Close. Handler
// errors are logged; delivery continues. The subscription is restored after
// a reconnect.
func (c *Client) Subscribe(ctx context.Context, h Handler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.handler = h
	c.handlerCtx = ctx
	c.mu.Unlock()

	token := c.client.Subscribe(c.opts.Topic, c.opts.QoS, c.onMessage)
	if err := wait(ctx, token, c.opts.ConnectTimeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.opts.Topic, err)
	}
	c.log.Info("subscribed", "topic", c.opts.Topic, "qos", c.opts.QoS)
	return nil
}

// Close disconnects from the broker. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.handler = nil
	c.mu.Unlock()

	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.log.Info("disconnected")
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) onConnect(client mqtt.Client) {
	c.mu.Lock()
	resubscribe := c.handler != nil
	c.mu.Unlock()

	c.log.Info("connected")
	if !resubscribe {
		return
	}

	token := client.Subscribe(c.opts.Topic, c.opts.QoS, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		c.log.Warn("resubscribe timeout", "topic", c.opts.Topic)
		return
	}
	if token.Error() != nil {
		c.log.Warn("resubscribe failed", "topic", c.opts.Topic, "error", token.Error())
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection lost, will auto-reconnect", "error", err)
}

func (c *Client) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.log.Info("reconnecting")
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	h, ctx := c.handler, c.handlerCtx
	c.mu.Unlock()
	if h == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := h(ctx, msg.Payload()); err != nil {
		c.log.Debug("handler rejected message", "topic", msg.Topic(), "error", err)
	}
}

// wait blocks until the token completes, ctx ends, or timeout elapses.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}
