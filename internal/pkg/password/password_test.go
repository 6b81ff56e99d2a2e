package password

import (
	"context"
	"testing"
	"time"

	"github.com/go-user-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, time.Second)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := h.Compare(context.Background(), hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Compare(context.Background(), hash, "wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompare_MalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, time.Second)
	_, err := h.Compare(context.Background(), "not-a-hash", "pw")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTimeout)
}

func TestCompare_CancelledContextTimesOut(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, 0)
	hash, err := h.Hash("pw")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Compare(ctx, hash, "pw")
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99, 0).cost)
}
