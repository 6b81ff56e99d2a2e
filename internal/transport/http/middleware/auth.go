package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-user-auth/internal/domain"
)

// Cookie names carrying the session tokens.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type contextKey string

const identityKey contextKey = "identity"

type accessVerifier interface {
	Verify(kind domain.TokenKind, token string) (*domain.Identity, error)
}

// Auth returns middleware that verifies the access token and injects the
// identity into context. The cookie wins over the Authorization header.
// Verification is local to the signing secret; no store is consulted.
func Auth(v accessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "No token provided")
				return
			}
			ident, err := v.Verify(domain.TokenAccess, token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*domain.Identity)
	return id, ok
}
