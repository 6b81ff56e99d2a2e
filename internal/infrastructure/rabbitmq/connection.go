package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DialOptions bounds how long Dial keeps retrying. Zero values retry until
// ctx is done.
type DialOptions struct {
	MaxTries   uint
	MaxElapsed time.Duration
}

// Dial connects to the broker, retrying with exponential backoff.
func Dial(ctx context.Context, url string, opts DialOptions) (*amqp.Connection, error) {
	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		return amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
		})
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(opts.MaxTries),
		backoff.WithMaxElapsedTime(opts.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("rabbitmq: dial failed, retrying", "err", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}
