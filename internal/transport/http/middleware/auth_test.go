package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-user-auth/internal/config"
	"github.com/go-user-auth/internal/domain"
	jwtinfra "github.com/go-user-auth/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(opts ...jwtinfra.Option) *jwtinfra.Provider {
	return jwtinfra.NewProvider(&config.Config{
		JWTSecret:              "access-secret",
		RefreshJWTSecret:       "refresh-secret",
		VerificationJWTSecret:  "verify-secret",
		VerificationTTLSeconds: 3600,
		AccessTokenTTL:         15 * time.Minute,
		RefreshTokenTTL:        24 * time.Hour,
	}, opts...)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

// identityEcho writes the user id found in context.
func identityEcho(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(id.UserID))
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestAuth_MissingToken(t *testing.T) {
	p := newTestProvider()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "No token provided", errorBody(t, rr))
}

func TestAuth_BadToken(t *testing.T) {
	p := newTestProvider()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid or expired token", errorBody(t, rr))
}

func TestAuth_ExpiredToken(t *testing.T) {
	past := newTestProvider(jwtinfra.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	tok, err := past.Sign(domain.TokenAccess, "u1", "a@test.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	rr := httptest.NewRecorder()
	Auth(newTestProvider())(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_RefreshTokenRejected(t *testing.T) {
	p := newTestProvider()
	tok, err := p.Sign(domain.TokenRefresh, "u1", "a@test.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidBearer(t *testing.T) {
	p := newTestProvider()
	tok, err := p.Sign(domain.TokenAccess, "u1", "a@test.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tok.Value)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(identityEcho)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", rr.Body.String())
}

func TestAuth_CookieTakesPrecedence(t *testing.T) {
	p := newTestProvider()
	fromCookie, err := p.Sign(domain.TokenAccess, "cookie-user", "")
	require.NoError(t, err)
	fromHeader, err := p.Sign(domain.TokenAccess, "header-user", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: fromCookie.Value})
	req.Header.Set("Authorization", "Bearer "+fromHeader.Value)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(identityEcho)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cookie-user", rr.Body.String())
}

func TestIdentityFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := IdentityFromContext(req.Context())
	assert.False(t, ok)
}
