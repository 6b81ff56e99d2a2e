package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-user-auth/internal/domain"
)

const bucketPrefix = "login:attempts:"

type counterStore interface {
	IncrWithExpiryOnFirstWrite(ctx context.Context, key string, window time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Config sets the fixed window policy.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	// FailOpen allows attempts when the counter store is unreachable.
	FailOpen bool
}

// Limiter counts login attempts per identity in fixed windows. The window
// starts at the first attempt and is not extended by later ones.
type Limiter struct {
	store counterStore
	cfg   Config
}

func New(store counterStore, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// Normalize maps an identity to its bucket name.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func bucketKey(identity string) string {
	return bucketPrefix + Normalize(identity)
}

// Check records an attempt and returns domain.ErrRateLimited once the
// identity has exceeded MaxAttempts in the current window.
func (l *Limiter) Check(ctx context.Context, identity string) error {
	n, err := l.store.IncrWithExpiryOnFirstWrite(ctx, bucketKey(identity), l.cfg.Window)
	if err != nil {
		if l.cfg.FailOpen {
			slog.Warn("login rate limiter degraded, allowing attempt", "err", err)
			return nil
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	if n > int64(l.cfg.MaxAttempts) {
		return fmt.Errorf("%d attempts in window: %w", n, domain.ErrRateLimited)
	}
	return nil
}

// Reset clears the identity's bucket. Failures are logged only.
func (l *Limiter) Reset(ctx context.Context, identity string) {
	if err := l.store.Delete(ctx, bucketKey(identity)); err != nil {
		slog.Warn("login rate limit not reset", "err", err)
	}
}
