package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverbot/internal/config"
	"driverbot/internal/modules/order"
)

type fakeAck struct {
	mu       sync.Mutex
	acked    []uint64
	rejected []uint64
}

func (f *fakeAck) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAck) Nack(uint64, bool, bool) error { return nil }

func (f *fakeAck) Reject(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, tag)
	return nil
}

type recordingHandler struct {
	mu     sync.Mutex
	bodies []string
}

func (h *recordingHandler) HandleRaw(_ context.Context, body []byte) order.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bodies = append(h.bodies, string(body))
	return order.ActionNone
}

func TestProcessAcksAfterHandling(t *testing.T) {
	ack := &fakeAck{}
	h := &recordingHandler{}
	c := NewConsumer(config.EventsConfig{Queue: "orders.events"}, h, nil)

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"id": 1}`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"id": 3}`)}
	close(deliveries)

	err := c.process(context.Background(), deliveries)
	require.ErrorIs(t, err, ErrDeliveriesClosed)
	assert.Equal(t, []string{`{"id": 1}`, `{"id": 3}`}, h.bodies)
	assert.Equal(t, []uint64{1, 3}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.rejected)
}

func TestProcessStopsOnCancel(t *testing.T) {
	c := NewConsumer(config.EventsConfig{}, &recordingHandler{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.process(ctx, make(chan amqp.Delivery)) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("process did not stop")
	}
}

// stepBackOff records NextBackOff and Reset calls and never waits long.
type stepBackOff struct {
	mu     sync.Mutex
	events []string
}

func (b *stepBackOff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, "next")
	return time.Millisecond
}

func (b *stepBackOff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, "reset")
}

func (b *stepBackOff) log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func TestRunResetsBackOffAfterConnect(t *testing.T) {
	c := NewConsumer(config.EventsConfig{}, &recordingHandler{}, nil)
	bo := &stepBackOff{}
	c.newBackOff = func() backoff.BackOff { return bo }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var attempts, closed int
	c.open = func() (<-chan amqp.Delivery, func(), error) {
		attempts++
		switch attempts {
		case 1, 2, 4:
			return nil, nil, errors.New("connection refused")
		case 3:
			// Connects, then the broker drops the channel.
			ch := make(chan amqp.Delivery)
			close(ch)
			return ch, func() { closed++ }, nil
		default:
			cancel()
			return nil, nil, errors.New("connection refused")
		}
	}

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 1, closed)
	assert.Equal(t, []string{"next", "next", "reset", "next", "next"}, bo.log())
}
