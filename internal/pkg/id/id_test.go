package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_SortsByCreation(t *testing.T) {
	a := New()
	b := New()
	assert.Len(t, a, 26)
	assert.True(t, Valid(a))
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, a[:10], b[:10])
}

func TestValid_RejectsGarbage(t *testing.T) {
	assert.False(t, Valid(""))
	assert.False(t, Valid("not-a-ulid"))
}
