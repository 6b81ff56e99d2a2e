package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-user-auth/internal/domain"
)

const registryPrefix = "refresh:"

type LoginResult struct {
	Tokens  domain.TokenPair
	Account *domain.Account
}

// Service is the sole authority on session validity. It mints access and
// refresh tokens and keeps one live refresh token per account in the registry.
type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	// Refresh returns a new access token; the refresh token is not rotated.
	Refresh(ctx context.Context, refreshToken string) (domain.IssuedToken, error)
	// Logout always succeeds from the caller's point of view.
	Logout(ctx context.Context, refreshToken string)
	// Revoke drops the account's live refresh token, if any.
	Revoke(ctx context.Context, accountID string)
}

type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error)
}

type registry interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

type loginLimiter interface {
	Check(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string)
}

type passwordChecker interface {
	Compare(ctx context.Context, hash, plain string) (bool, error)
}

type tokenProvider interface {
	Sign(kind domain.TokenKind, userID, email string) (domain.IssuedToken, error)
	Verify(kind domain.TokenKind, token string) (*domain.Identity, error)
	TTL(kind domain.TokenKind) time.Duration
}

type service struct {
	accounts accountStore
	registry registry
	limiter  loginLimiter
	password passwordChecker
	tokens   tokenProvider
	now      func() time.Time
}

type ServiceDeps struct {
	Accounts accountStore
	Registry registry
	Limiter  loginLimiter
	Password passwordChecker
	Tokens   tokenProvider
	Now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		accounts: deps.Accounts,
		registry: deps.Registry,
		limiter:  deps.Limiter,
		password: deps.Password,
		tokens:   deps.Tokens,
		now:      now,
	}
}

func registryKey(accountID string) string {
	return registryPrefix + accountID
}

var errBadCredentials = fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.limiter.Check(ctx, email); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if acct.PasswordHash == "" {
		return nil, errBadCredentials
	}
	ok, err := s.password.Compare(ctx, acct.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errBadCredentials
	}

	if !acct.IsVerified {
		return nil, fmt.Errorf("please verify your email first: %w", domain.ErrUnverified)
	}
	if !acct.IsActive {
		return nil, fmt.Errorf("account is deactivated: %w", domain.ErrDeactivated)
	}

	now := s.now()
	updated, err := s.accounts.Update(ctx, acct.ID, domain.AccountUpdate{LastLoginAt: &now})
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	access, err := s.tokens.Sign(domain.TokenAccess, acct.ID, acct.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Sign(domain.TokenRefresh, acct.ID, acct.Email)
	if err != nil {
		return nil, err
	}

	// a missing registry entry only breaks refresh later, not this login
	if err := s.registry.Set(ctx, registryKey(acct.ID), refresh.Value, s.tokens.TTL(domain.TokenRefresh)); err != nil {
		slog.Warn("refresh token not registered", "user_id", acct.ID, "err", err)
	}
	s.limiter.Reset(ctx, email)

	return &LoginResult{
		Tokens:  domain.TokenPair{Access: access, Refresh: refresh},
		Account: updated,
	}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (domain.IssuedToken, error) {
	ident, err := s.tokens.Verify(domain.TokenRefresh, refreshToken)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("verify refresh token: %w", domain.ErrInvalidToken)
	}

	key := registryKey(ident.UserID)
	stored, found, err := s.registry.Get(ctx, key)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if !found {
		return domain.IssuedToken{}, fmt.Errorf("no live refresh token: %w", domain.ErrInvalidToken)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		slog.Warn("stale refresh token presented, revoking session", "user_id", ident.UserID)
		if err := s.registry.Delete(ctx, key); err != nil {
			slog.Warn("refresh registry entry not revoked", "user_id", ident.UserID, "err", err)
		}
		return domain.IssuedToken{}, fmt.Errorf("refresh token superseded: %w", domain.ErrInvalidToken)
	}

	return s.tokens.Sign(domain.TokenAccess, ident.UserID, ident.Email)
}

func (s *service) Logout(ctx context.Context, refreshToken string) {
	ident, err := s.tokens.Verify(domain.TokenRefresh, refreshToken)
	if err != nil {
		slog.Debug("logout with unusable refresh token", "err", err)
		return
	}
	s.Revoke(ctx, ident.UserID)
}

func (s *service) Revoke(ctx context.Context, accountID string) {
	if err := s.registry.Delete(ctx, registryKey(accountID)); err != nil {
		slog.Warn("refresh registry entry not cleared", "user_id", accountID, "err", err)
	}
}
