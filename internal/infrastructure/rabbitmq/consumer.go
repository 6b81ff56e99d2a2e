package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-user-auth/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. deliveryCount is the number of
// earlier delivery attempts the broker reports for it.
type Handler func(ctx context.Context, body []byte, deliveryCount int) domain.DispatchOutcome

type consumeChannel interface {
	declarer
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ErrConnectionLost is returned by Run when the broker closes the delivery stream.
var ErrConnectionLost = errors.New("rabbitmq: delivery stream closed")

// Consumer drains the work queue with manual acknowledgement.
type Consumer struct {
	url      string
	topo     Topology
	prefetch int
}

func NewConsumer(url string, topo Topology, prefetch int) *Consumer {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Consumer{url: url, topo: topo, prefetch: prefetch}
}

// Run connects, declares the queue and hands every delivery to h until ctx
// is done or the connection drops. Callers are expected to call Run again
// after ErrConnectionLost.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	conn, err := Dial(ctx, c.url, DialOptions{})
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	slog.Info("rabbitmq: consuming", "queue", c.topo.Queue, "prefetch", c.prefetch)
	return c.consume(ctx, ch, h)
}

func (c *Consumer) consume(ctx context.Context, ch consumeChannel, h Handler) error {
	if err := c.topo.Declare(ch); err != nil {
		return err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, c.topo.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.topo.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrConnectionLost
			}
			c.handle(ctx, d, h)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	outcome := h(ctx, d.Body, deliveryCount(d.Headers))

	var err error
	switch outcome {
	case domain.DispatchAck:
		err = d.Ack(false)
	case domain.DispatchRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Reject(false)
	}
	if err != nil {
		slog.Warn("rabbitmq: settle delivery", "outcome", outcome.String(), "message_id", d.MessageId, "err", err)
	}
}

// deliveryCount reads the quorum queue x-delivery-count header. It is
// absent on the first delivery.
func deliveryCount(h amqp.Table) int {
	switch v := h["x-delivery-count"].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}
