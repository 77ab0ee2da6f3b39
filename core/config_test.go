package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "APP_ENV", "NODE_ENV", "SESSION_SECRET", "SESSION_KEY", "SSO_ENABLED",
		"DEMO_USER_EMAIL", "DEMO_USER_PASSWORD_HASH", "DATABASE_URL", "POSTGRES_URL",
		"REDIS_URL", "SESSION_BACKEND", "LOGIN_MAX_ATTEMPTS", "LOGIN_WINDOW_SECONDS", "COOKIE_SAMESITE",
		"CSRF_ENABLED", "TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.SSOEnabled)
	assert.Equal(t, "demo@example.com", cfg.DemoUserEmail)
	assert.Equal(t, DefaultDemoPasswordHash, cfg.DemoUserPasswordHash)
	assert.Equal(t, SessionBackendCookie, cfg.SessionBackend)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10, cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
	assert.Equal(t, "Lax", cfg.CookieSameSite)
	assert.False(t, cfg.CSRFEnabled)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestDefaultDemoUserPassword(t *testing.T) {
	t.Setenv("DEMO_USER_PASSWORD_HASH", "")

	u := DemoUser(Load())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("demo123")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("APP_ENV", "")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SSO_ENABLED", "true")
	t.Setenv("SSO_ALLOWED_DOMAINS", " example.com , ,corp.example ")
	t.Setenv("DEMO_USER_EMAIL", "someone@example.org")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("HASH_CONCURRENCY", "3")
	t.Setenv("LOGIN_WINDOW_SECONDS", "not-a-number")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "s3cret", cfg.SessionKey)
	assert.True(t, cfg.SSOEnabled)
	assert.Equal(t, []string{"example.com", "corp.example"}, cfg.SSOAllowedDomains)
	assert.Equal(t, "someone@example.org", cfg.DemoUserEmail)
	assert.Equal(t, SessionBackendRedis, cfg.SessionBackend)
	assert.Equal(t, 3, cfg.HashConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
}
