package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("client-a"), "request %d should be allowed within burst", i)
	}
}

func TestAllowRejectsBeyondBurst(t *testing.T) {
	l := New(2, time.Minute)

	assert.True(t, l.Allow("client-b"))
	assert.True(t, l.Allow("client-b"))
	assert.False(t, l.Allow("client-b"))
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(1, time.Minute)

	assert.True(t, l.Allow("client-c"))
	assert.False(t, l.Allow("client-c"))
	assert.True(t, l.Allow("client-d"))
}
