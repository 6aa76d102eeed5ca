// README: AMQP consumer feeding order events into the dispatcher.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"driverbot/internal/config"
	"driverbot/internal/modules/order"
)

var ErrDeliveriesClosed = errors.New("events: delivery channel closed")

// Handler consumes one raw order payload; *dispatch.Dispatcher implements it.
type Handler interface {
	HandleRaw(ctx context.Context, body []byte) order.Action
}

type Consumer struct {
	cfg     config.EventsConfig
	handler Handler
	logger  *slog.Logger

	// open starts a session; tests replace it.
	open       func() (<-chan amqp.Delivery, func(), error)
	newBackOff func() backoff.BackOff
}

func NewConsumer(cfg config.EventsConfig, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	c := &Consumer{cfg: cfg, handler: handler, logger: logger}
	c.open = c.dial
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = 0
		b.MaxInterval = 30 * time.Second
		return b
	}
	return c
}

// Run consumes until ctx is done, reconnecting with backoff when the broker
// drops. The backoff starts over after every successful connect.
func (c *Consumer) Run(ctx context.Context) error {
	b := c.newBackOff()
	for {
		deliveries, closeFn, err := c.open()
		if err == nil {
			b.Reset()
			err = c.process(ctx, deliveries)
			closeFn()
		}
		if ctx.Err() != nil {
			return nil
		}
		wait := b.NextBackOff()
		c.logger.Warn("order event consumer disconnected", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// dial connects, declares the queue and starts consuming. The returned func
// closes the channel and the connection.
func (c *Consumer) dial() (<-chan amqp.Delivery, func(), error) {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("events: channel: %w", err)
	}
	closeFn := func() {
		ch.Close()
		conn.Close()
	}

	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("events: declare %s: %w", c.cfg.Queue, err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("events: qos: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "driverbot", false, false, false, false, nil)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("events: consume: %w", err)
	}
	c.logger.Info("consuming order events", "queue", q.Name, "prefetch", c.cfg.Prefetch)
	return deliveries, closeFn, nil
}

// process handles deliveries one by one. Every delivery is acked after handling;
// empty bodies are rejected without requeue.
func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			if len(d.Body) == 0 {
				if err := d.Reject(false); err != nil {
					c.logger.Warn("reject failed", "delivery_tag", d.DeliveryTag, "error", err)
				}
				continue
			}
			action := c.handler.HandleRaw(ctx, d.Body)
			c.logger.Debug("order event handled", "delivery_tag", d.DeliveryTag, "action", action)
			if err := d.Ack(false); err != nil {
				c.logger.Warn("ack failed", "delivery_tag", d.DeliveryTag, "error", err)
			}
		}
	}
}
