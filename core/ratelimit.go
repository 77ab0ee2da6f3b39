package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts is returned when a client exceeded its login allowance.
var ErrTooManyAttempts = errors.New("too many login attempts")

// LoginLimiter throttles login attempts per client key.
type LoginLimiter interface {
	// Allow records one attempt for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset clears the counter for key after a successful login.
	Reset(ctx context.Context, key string) error
}

const loginLimitPrefix = "login_attempts:"

// RedisLoginLimiter is a fixed-window counter shared by every server instance.
type RedisLoginLimiter struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// INCR the window counter and arm its expiry on the first hit, atomically.
var loginLimitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func NewRedisLoginLimiter(client redis.Cmdable, maxAttempts int, window time.Duration) *RedisLoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLoginLimiter{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := loginLimitScript.Run(ctx, l.client, []string{loginLimitPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n <= int64(l.maxAttempts), nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, loginLimitPrefix+key).Err()
}

// AllowLogin records an attempt for key. It returns ErrTooManyAttempts when key
// is over its allowance and nil when limiter is nil.
func AllowLogin(ctx context.Context, limiter LoginLimiter, key string) error {
	if limiter == nil {
		return nil
	}
	ok, err := limiter.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("login limiter: %w", err)
	}
	if !ok {
		return ErrTooManyAttempts
	}
	return nil
}
