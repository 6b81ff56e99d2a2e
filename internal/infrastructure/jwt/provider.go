package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "go-user-auth"

func init() {
	// exp and iat carry milliseconds so a token refreshed within the same
	// second still expires later than the one it replaces
	jwt.TimePrecision = time.Millisecond
}

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type key struct {
	secret []byte
	ttl    time.Duration
}

// Provider signs and verifies HS256 JWTs. Every token kind has its own
// secret and audience so a token of one kind never verifies as another.
type Provider struct {
	keys map[domain.TokenKind]key
	now  func() time.Time
}

// Option customises a Provider.
type Option func(*Provider)

// WithClock replaces time.Now for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(cfg *config.Config, opts ...Option) *Provider {
	p := &Provider{
		keys: map[domain.TokenKind]key{
			domain.TokenAccess:       {secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTokenTTL},
			domain.TokenRefresh:      {secret: []byte(cfg.RefreshJWTSecret), ttl: cfg.RefreshTokenTTL},
			domain.TokenVerification: {secret: []byte(cfg.VerificationJWTSecret), ttl: cfg.VerificationTTL()},
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TTL returns the configured lifetime of the given token kind.
func (p *Provider) TTL(kind domain.TokenKind) time.Duration {
	return p.keys[kind].ttl
}

func (p *Provider) Sign(kind domain.TokenKind, userID, email string) (domain.IssuedToken, error) {
	k, ok := p.keys[kind]
	if !ok {
		return domain.IssuedToken{}, fmt.Errorf("sign: unknown token kind %q", kind)
	}
	now := p.now()
	exp := now.Add(k.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{string(kind)},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return domain.IssuedToken{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, expiry, issuer and audience and returns the identity.
func (p *Provider) Verify(kind domain.TokenKind, tokenStr string) (*domain.Identity, error) {
	k, ok := p.keys[kind]
	if !ok {
		return nil, fmt.Errorf("verify: unknown token kind %q", kind)
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return k.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(kind)),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token claims")
	}
	id := &domain.Identity{UserID: claims.UserID, Email: claims.Email}
	if claims.IssuedAt != nil {
		id.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
