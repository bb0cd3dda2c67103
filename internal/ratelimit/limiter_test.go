package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/stretchr/testify/require"
)

func TestNilLimiterNeverBlocks(t *testing.T) {
	l := New("remote", 0)
	assert.Zero(t, l)
	assert.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, "", l.Name())
}

func TestWaitAllowsBurst(t *testing.T) {
	l := New("remote", 3)
	require.NotNil(t, l)
	assert.Equal(t, "remote", l.Name())

	start := time.Now()
	for range 3 {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.True(t, time.Since(start) < 200*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	l := New("remote", 1)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for remote")
}
