package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-user-auth/internal/domain"
	redisinfra "github.com/go-user-auth/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, failOpen bool) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(redisinfra.NewCache(rdb), Config{MaxAttempts: 5, Window: 10 * time.Minute, FailOpen: failOpen}), mr
}

func TestCheck_SixthAttemptBlocked(t *testing.T) {
	l, _ := newLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Check(ctx, "a@test.com"), "attempt %d", i+1)
	}
	assert.ErrorIs(t, l.Check(ctx, "a@test.com"), domain.ErrRateLimited)
	assert.ErrorIs(t, l.Check(ctx, "a@test.com"), domain.ErrRateLimited)
}

func TestCheck_IdentityNormalized(t *testing.T) {
	l, mr := newLimiter(t, true)
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, " A@Test.com "))
	require.NoError(t, l.Check(ctx, "a@test.com"))

	got, err := mr.Get("login:attempts:a@test.com")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestCheck_WindowNotExtendedByLaterAttempts(t *testing.T) {
	l, mr := newLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = l.Check(ctx, "a@test.com")
		mr.FastForward(time.Minute)
	}
	// six minutes in, four remain on the original window
	assert.Equal(t, 4*time.Minute, mr.TTL("login:attempts:a@test.com"))

	mr.FastForward(4*time.Minute - time.Second)
	assert.ErrorIs(t, l.Check(ctx, "a@test.com"), domain.ErrRateLimited)

	mr.FastForward(2 * time.Second)
	assert.NoError(t, l.Check(ctx, "a@test.com"))
}

func TestCheck_SeparateIdentities(t *testing.T) {
	l, _ := newLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = l.Check(ctx, "a@test.com")
	}
	assert.NoError(t, l.Check(ctx, "b@test.com"))
}

func TestReset_StartsFreshWindow(t *testing.T) {
	l, mr := newLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = l.Check(ctx, "a@test.com")
	}
	l.Reset(ctx, "a@test.com")
	assert.False(t, mr.Exists("login:attempts:a@test.com"))
	assert.NoError(t, l.Check(ctx, "a@test.com"))
}

func TestCheck_FailOpen(t *testing.T) {
	l, mr := newLimiter(t, true)
	mr.SetError("ERR server unavailable")

	assert.NoError(t, l.Check(context.Background(), "a@test.com"))
	l.Reset(context.Background(), "a@test.com")
}

func TestCheck_FailClosed(t *testing.T) {
	l, mr := newLimiter(t, false)
	mr.SetError("ERR server unavailable")

	err := l.Check(context.Background(), "a@test.com")
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
}
