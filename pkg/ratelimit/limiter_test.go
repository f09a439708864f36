package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllow(t *testing.T) {
	sw := NewSlidingWindow(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	time.Sleep(120 * time.Millisecond)
	assert.True(t, sw.Allow())

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestSlidingWindowWaitBlocksUntilSlotFrees(t *testing.T) {
	sw := NewSlidingWindow(1, 80*time.Millisecond)
	require.NoError(t, sw.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestSlidingWindowWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(0))
	assert.IsType(t, &SlidingWindow{}, New(60))

	u := New(-1)
	for i := 0; i < 100; i++ {
		assert.True(t, u.Allow())
	}
	assert.NoError(t, u.Wait(context.Background()))
}
