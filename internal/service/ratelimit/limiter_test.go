package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowPerKey(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, l.Allow("manual"))
	assert.True(t, l.Allow("manual"))
	assert.False(t, l.Allow("manual"))
	assert.True(t, l.Allow("other"))
}

func TestUnlimited(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k"))
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	assert.True(t, l.Allow("k"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}
