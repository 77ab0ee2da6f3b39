package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLoginLimiter(t *testing.T) {
	mr, client := newMiniRedis(t)
	limiter := NewRedisLoginLimiter(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other clients have their own window.
	ok, err = limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLoginLimiterReset(t *testing.T) {
	_, client := newMiniRedis(t)
	limiter := NewRedisLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	ok, _ := limiter.Allow(ctx, "k")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "k"))
	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowLogin(t *testing.T) {
	_, client := newMiniRedis(t)
	limiter := NewRedisLoginLimiter(client, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, AllowLogin(ctx, limiter, "k"))
	assert.ErrorIs(t, AllowLogin(ctx, limiter, "k"), ErrTooManyAttempts)
	assert.NoError(t, AllowLogin(ctx, nil, "k"))
}

func TestAllowLoginRedisDown(t *testing.T) {
	mr, client := newMiniRedis(t)
	limiter := NewRedisLoginLimiter(client, 1, time.Minute)
	mr.Close()

	err := AllowLogin(context.Background(), limiter, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooManyAttempts)
}
