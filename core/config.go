package core

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime settings for the server process.
type Config struct {
	Port                 string        // HTTP listen port (e.g., "3000")
	Env                  string        // environment/mode label shown at startup
	SessionKey           string        // Cookie signing key
	CookieSecure         bool          // Whether to set Secure flag on session cookie
	CookieSameSite       string        // SameSite policy: Strict/Lax/None
	LogDir               string        // Directory to write application logs (empty -> stdout only)
	SSOEnabled           bool          // feature flag for the /sso-login routes
	SSOAllowedDomains    []string      // optional SSO domain allowlist (empty -> every domain)
	DemoUserEmail        string        // seed email for the demo user
	DemoUserPasswordHash string        // bcrypt hash for the demo user
	UsersFile            string        // optional YAML file with additional seed users
	DatabaseURL          string        // PostgreSQL DSN (empty -> in-memory users)
	RedisURL             string        // Redis URL (redis://host:port/db), empty disables redis features
	SessionBackend       string        // cookie | redis
	HashConcurrency      int           // max concurrent bcrypt comparisons
	LoginMaxAttempts     int           // login attempts allowed per window and client IP
	LoginWindow          time.Duration // login throttle window
	AllowedOrigins       []string      // extra origins accepted by the origin check
	TrustedProxies       []string      // proxy IPs/CIDRs whose X-Forwarded-For is honoured (empty -> none)
	CSRFEnabled          bool          // require a per-session CSRF token on form posts
	BcryptCost           int           // cost used by cmd/hashpw
}

// DefaultDemoPasswordHash is the bcrypt hash (cost 10) of DefaultDemoPassword.
const DefaultDemoPasswordHash = "$2a$10$WkhLpW2OyQXhy01mzaPEf.hvZ6L5hSBw9KzPaCjxZAM0arIe6gxwi"

// DefaultDemoPassword is the demo user's password when DEMO_USER_PASSWORD_HASH is unset.
const DefaultDemoPassword = "password123"

// Load populates Config from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:                 firstNonEmpty(os.Getenv("PORT"), "3000"),
		Env:                  firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), "development"),
		SessionKey:           firstNonEmpty(os.Getenv("SESSION_SECRET"), os.Getenv("SESSION_KEY"), "change-this-session-key"),
		CookieSecure:         boolFromEnv("COOKIE_SECURE", false),
		CookieSameSite:       firstNonEmpty(os.Getenv("COOKIE_SAMESITE"), "Lax"),
		LogDir:               os.Getenv("LOG_DIR"),
		SSOEnabled:           boolFromEnv("SSO_ENABLED", false),
		SSOAllowedDomains:    parseCSV(os.Getenv("SSO_ALLOWED_DOMAINS")),
		DemoUserEmail:        firstNonEmpty(os.Getenv("DEMO_USER_EMAIL"), "demo@example.com"),
		DemoUserPasswordHash: firstNonEmpty(os.Getenv("DEMO_USER_PASSWORD_HASH"), DefaultDemoPasswordHash),
		UsersFile:            os.Getenv("USERS_FILE"),
		DatabaseURL:          firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("POSTGRES_URL")),
		RedisURL:             os.Getenv("REDIS_URL"),
		SessionBackend:       strings.ToLower(firstNonEmpty(os.Getenv("SESSION_BACKEND"), SessionBackendCookie)),
		HashConcurrency:      intFromEnv("HASH_CONCURRENCY", runtime.GOMAXPROCS(0)),
		LoginMaxAttempts:     intFromEnv("LOGIN_MAX_ATTEMPTS", 10),
		LoginWindow:          time.Duration(intFromEnv("LOGIN_WINDOW_SECONDS", 900)) * time.Second,
		AllowedOrigins:       parseCSV(os.Getenv("ALLOWED_ORIGINS")),
		TrustedProxies:       parseCSV(os.Getenv("TRUSTED_PROXIES")),
		CSRFEnabled:          boolFromEnv("CSRF_ENABLED", false),
		BcryptCost:           intFromEnv("BCRYPT_COST", 10),
	}
}

const (
	SessionBackendCookie = "cookie"
	SessionBackendRedis  = "redis"
)

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// boolFromEnv reads a boolean from env var name, falling back to defaultVal when empty or invalid.
func boolFromEnv(name string, defaultVal bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// intFromEnv reads an int from env var name, falling back to defaultVal when empty or invalid.
func intFromEnv(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// parseCSV splits comma-separated list and trims spaces; empty entries are skipped.
func parseCSV(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
