package http

import (
	"context"
	"time"

	"github.com/go-user-auth/internal/domain"
	"github.com/go-user-auth/internal/transport/http/handler"
)

// AccountStore is the minimal interface the router requires from an account store.
// Both the Postgres and the DynamoDB store satisfy it.
type AccountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error)
}

// CacheStore is the TTL key-value store holding tickets, rate buckets and
// the refresh registry.
type CacheStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	IncrWithExpiryOnFirstWrite(ctx context.Context, key string, window time.Duration) (int64, error)
	ConsumeIfEqual(ctx context.Context, key, expected string) (bool, time.Duration, error)
}

// Publisher is the producer side of the dispatch channel.
type Publisher interface {
	Publish(ctx context.Context, msg domain.DispatchMessage) error
}

// TokenProvider signs and verifies every token kind.
type TokenProvider interface {
	Sign(kind domain.TokenKind, userID, email string) (domain.IssuedToken, error)
	Verify(kind domain.TokenKind, token string) (*domain.Identity, error)
	TTL(kind domain.TokenKind) time.Duration
}

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) (bool, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Accounts  AccountStore
	Cache     CacheStore
	Publisher Publisher
	Tokens    TokenProvider
	Hasher    PasswordHasher
	// Checks are probed by GET /health.
	Checks map[string]handler.Pinger
}
