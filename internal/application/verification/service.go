package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-user-auth/internal/domain"
)

const ticketPrefix = "verify:"

type Service interface {
	// Issue signs a verification token for the account, records its ticket
	// and queues the email. The token is returned even if queueing fails.
	Issue(ctx context.Context, accountID, email string) (string, error)
	// Redeem consumes the ticket for token and marks the account verified.
	// A token can be redeemed at most once.
	Redeem(ctx context.Context, token string) error
}

type ticketStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	ConsumeIfEqual(ctx context.Context, key, expected string) (bool, time.Duration, error)
}

type tokenProvider interface {
	Sign(kind domain.TokenKind, userID, email string) (domain.IssuedToken, error)
	Verify(kind domain.TokenKind, token string) (*domain.Identity, error)
}

type publisher interface {
	Publish(ctx context.Context, msg domain.DispatchMessage) error
}

type accountStore interface {
	Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error)
}

type service struct {
	tickets   ticketStore
	tokens    tokenProvider
	publisher publisher
	accounts  accountStore
	ttl       time.Duration
}

type ServiceDeps struct {
	Tickets   ticketStore
	Tokens    tokenProvider
	Publisher publisher
	Accounts  accountStore
	TTL       time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tickets:   deps.Tickets,
		tokens:    deps.Tokens,
		publisher: deps.Publisher,
		accounts:  deps.Accounts,
		ttl:       deps.TTL,
	}
}

func ticketKey(token string) string {
	return ticketPrefix + token
}

func (s *service) Issue(ctx context.Context, accountID, email string) (string, error) {
	tok, err := s.tokens.Sign(domain.TokenVerification, accountID, email)
	if err != nil {
		return "", err
	}
	if err := s.tickets.Set(ctx, ticketKey(tok.Value), accountID, s.ttl); err != nil {
		return "", fmt.Errorf("store verification ticket: %w", err)
	}
	if err := s.publisher.Publish(ctx, domain.DispatchMessage{Email: email, Token: tok.Value}); err != nil {
		slog.Warn("verification email not queued", "user_id", accountID, "err", err)
	}
	return tok.Value, nil
}

func (s *service) Redeem(ctx context.Context, token string) error {
	ident, err := s.tokens.Verify(domain.TokenVerification, token)
	if err != nil {
		return fmt.Errorf("verify token: %w", domain.ErrInvalidOrExpired)
	}

	key := ticketKey(token)
	consumed, remaining, err := s.tickets.ConsumeIfEqual(ctx, key, ident.UserID)
	if err != nil {
		return err
	}
	if !consumed {
		return fmt.Errorf("ticket: %w", domain.ErrInvalidOrExpired)
	}

	verified := true
	if _, err := s.accounts.Update(ctx, ident.UserID, domain.AccountUpdate{IsVerified: &verified}); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("account gone: %w", domain.ErrInvalidOrExpired)
		}
		// put the ticket back so the link keeps working once the store recovers
		if remaining > 0 {
			if rerr := s.tickets.Set(ctx, key, ident.UserID, remaining); rerr != nil {
				slog.Warn("verification ticket not restored", "user_id", ident.UserID, "err", rerr)
			}
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}
