package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-user-auth/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type publishChannel interface {
	declarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type dialFunc func(ctx context.Context) (publishChannel, io.Closer, error)

// Publisher sends DispatchMessages to the work queue. The broker connection
// is opened on first use and reopened after any failed publish.
type Publisher struct {
	topo Topology
	dial dialFunc
	now  func() time.Time

	mu     sync.Mutex
	ch     publishChannel
	closer io.Closer
}

func NewPublisher(url string, topo Topology) *Publisher {
	return newPublisher(topo, func(ctx context.Context) (publishChannel, io.Closer, error) {
		// request path: a few quick tries, never an unbounded wait
		conn, err := Dial(ctx, url, DialOptions{MaxTries: 3, MaxElapsed: 5 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		return ch, conn, nil
	})
}

func newPublisher(topo Topology, dial dialFunc) *Publisher {
	return &Publisher{topo: topo, dial: dial, now: time.Now}
}

// Publish sends msg as a persistent JSON message. Errors wrap
// domain.ErrDependencyUnavailable.
func (p *Publisher) Publish(ctx context.Context, msg domain.DispatchMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode dispatch message: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w: %w", p.topo.Queue, domain.ErrDependencyUnavailable, err)
	}

	err = ch.PublishWithContext(ctx, "", p.topo.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		p.drop(ch)
		return fmt.Errorf("publish to %s: %w: %w", p.topo.Queue, domain.ErrDependencyUnavailable, err)
	}
	return nil
}

// channel returns the cached channel or dials a new one. The lock is never
// held while dialing; a dial that loses the race is closed.
func (p *Publisher) channel(ctx context.Context) (publishChannel, error) {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch != nil {
		return ch, nil
	}

	ch, closer, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.topo.Declare(ch); err != nil {
		_ = closer.Close()
		return nil, err
	}

	p.mu.Lock()
	if p.ch != nil {
		existing := p.ch
		p.mu.Unlock()
		_ = closer.Close()
		return existing, nil
	}
	p.ch, p.closer = ch, closer
	p.mu.Unlock()
	return ch, nil
}

func (p *Publisher) drop(ch publishChannel) {
	p.mu.Lock()
	if p.ch != ch {
		p.mu.Unlock()
		return
	}
	closer := p.closer
	p.ch, p.closer = nil, nil
	p.mu.Unlock()

	if err := closer.Close(); err != nil {
		slog.Debug("rabbitmq: close stale connection", "err", err)
	}
}

// Close releases the broker connection, if one is open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	closer := p.closer
	p.ch, p.closer = nil, nil
	p.mu.Unlock()
	if closer == nil {
		return nil
	}
	return closer.Close()
}
