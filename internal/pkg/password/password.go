package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-user-auth/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt with a fixed cost and a bound on comparison time.
type Hasher struct {
	cost    int
	timeout time.Duration
}

func NewHasher(cost int, timeout time.Duration) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, timeout: timeout}
}

func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare reports whether plain matches hash. It returns domain.ErrTimeout if
// the comparison does not finish within the configured timeout or before ctx
// is done; the comparison goroutine is left to finish on its own.
func (h *Hasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if ctx.Err() != nil {
		return false, fmt.Errorf("compare password: %w", domain.ErrTimeout)
	}

	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("compare password: %w", err)
		}
	case <-ctx.Done():
		return false, fmt.Errorf("compare password: %w", domain.ErrTimeout)
	}
}
