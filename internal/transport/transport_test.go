// ABOUTME: Integration tests for the MQTT transport against an embedded broker.
// ABOUTME: Publishes samples and checks delivery, decoding, and close behaviour.
package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/harperreed/vitalsync/internal/models"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startBroker(t *testing.T) *Broker {
	t.Helper()
	b, err := NewBroker(freeAddr(t), nil)
	require.NoError(t, err)
	require.NoError(t, b.Serve())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func dial(t *testing.T, b *Broker, topic string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, Options{Broker: b.URL(), Topic: topic})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPublishSubscribe(t *testing.T) {
	b := startBroker(t)
	sub := dial(t, b, "")
	pub := dial(t, b, "")
	require.NotEqual(t, sub.ClientID(), pub.ClientID())

	received := make(chan models.Sample, 4)
	err := sub.Subscribe(context.Background(), func(_ context.Context, payload []byte) error {
		var s models.Sample
		if err := s.UnmarshalJSON(payload); err != nil {
			return err
		}
		received <- s
		return nil
	})
	require.NoError(t, err)

	ts := time.Date(2025, 2, 4, 13, 35, 10, 500000000, time.UTC)
	sample := models.NewSample(ts, models.ContextRunning).
		Set(models.MetricHeartRate, 131.5).
		Set(models.MetricAccelZ, 0.97)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pub.Publish(ctx, sample))

	select {
	case got := <-received:
		require.True(t, got.Timestamp.Equal(ts))
		require.Equal(t, models.ContextRunning, got.Context)
		require.Equal(t, 131.5, got.Values[models.MetricHeartRate])
		require.Equal(t, 0.97, got.Values[models.MetricAccelZ])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestHandlerErrorsDoNotStopDelivery(t *testing.T) {
	b := startBroker(t)
	sub := dial(t, b, "vitals/test")
	pub := dial(t, b, "vitals/test")

	calls := make(chan struct{}, 4)
	err := sub.Subscribe(context.Background(), func(_ context.Context, payload []byte) error {
		calls <- struct{}{}
		var s models.Sample
		return s.UnmarshalJSON(payload)
	})
	require.NoError(t, err)

	ctx := context.Background()
	bad := models.NewSample(time.Now(), "sleeping")
	good := models.NewSample(time.Now(), models.ContextResting).Set(models.MetricHeartRate, 70)
	require.NoError(t, pub.Publish(ctx, bad))
	require.NoError(t, pub.Publish(ctx, good))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
}

func TestClose(t *testing.T) {
	b := startBroker(t)
	c := dial(t, b, "")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := c.Publish(context.Background(), models.NewSample(time.Now(), models.ContextResting))
	require.ErrorIs(t, err, ErrNotConnected)

	err = c.Subscribe(context.Background(), func(context.Context, []byte) error { return nil })
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, Options{Broker: "tcp://" + freeAddr(t), ConnectTimeout: time.Second})
	require.Error(t, err)
}
