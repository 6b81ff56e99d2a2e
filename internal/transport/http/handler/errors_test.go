package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-user-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondWith(e errorResponder, err error) (int, MessageEnvelope) {
	rr := httptest.NewRecorder()
	e.respond(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
	var env MessageEnvelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return rr.Code, env
}

func TestErrorResponder_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bad: %w", domain.ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("dup: %w", domain.ErrConflict), http.StatusConflict},
		{fmt.Errorf("gone: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("creds: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("ticket: %w", domain.ErrInvalidOrExpired), http.StatusBadRequest},
		{fmt.Errorf("stale: %w", domain.ErrInvalidToken), http.StatusUnauthorized},
		{fmt.Errorf("6 attempts: %w", domain.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("verify first: %w", domain.ErrUnverified), http.StatusForbidden},
		{fmt.Errorf("off: %w", domain.ErrDeactivated), http.StatusForbidden},
		{fmt.Errorf("bcrypt: %w", domain.ErrTimeout), http.StatusServiceUnavailable},
		{fmt.Errorf("redis: %w", domain.ErrDependencyUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, _ := respondWith(errorResponder{}, tc.err)
		assert.Equal(t, tc.want, code, tc.err.Error())
	}
}

func TestErrorResponder_MessageStripsSentinel(t *testing.T) {
	_, env := respondWith(errorResponder{}, fmt.Errorf("email cannot be updated: %w", domain.ErrBadRequest))
	assert.Equal(t, "email cannot be updated", env.Error)

	_, env = respondWith(errorResponder{}, domain.ErrNotFound)
	assert.Equal(t, "not found", env.Error)
}

func TestErrorResponder_FixedMessagesHideInternals(t *testing.T) {
	_, env := respondWith(errorResponder{exposeDetail: true}, fmt.Errorf("redis get refresh:u1: %w", domain.ErrDependencyUnavailable))
	assert.Equal(t, "Service temporarily unavailable", env.Error)
	assert.NotContains(t, env.Error, "refresh:u1")
}

func TestErrorResponder_InternalDetailOnlyInDevelopment(t *testing.T) {
	_, env := respondWith(errorResponder{exposeDetail: false}, errors.New("pq: relation users does not exist"))
	assert.Equal(t, "Internal server error", env.Error)
	assert.Equal(t, "Something went wrong", env.Message)

	_, env = respondWith(errorResponder{exposeDetail: true}, errors.New("pq: relation users does not exist"))
	require.Equal(t, "Internal server error", env.Error)
	assert.Equal(t, "pq: relation users does not exist", env.Message)
}
