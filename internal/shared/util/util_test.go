package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentDigest(t *testing.T) {
	a := ContentDigest([]byte("x = 1\n"))
	b := ContentDigest([]byte("x = 1\n"))
	c := ContentDigest([]byte("x = 2\n"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(1, 2)

	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
}
