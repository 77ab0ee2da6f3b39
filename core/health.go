package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthCheck is a named dependency probe reported by /healthz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// RedisHealthCheck probes a go-redis client.
func RedisHealthCheck(client redis.UniversalClient) HealthCheck {
	return HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// PostgresHealthCheck probes a pgx pool.
func PostgresHealthCheck(pool *pgxpool.Pool) HealthCheck {
	return HealthCheck{Name: "postgres", Ping: pool.Ping}
}

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status        string            `json:"status"`
	Env           string            `json:"env"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// CollectHealth runs every check with a shared deadline.
func CollectHealth(ctx context.Context, cfg Config, checks []HealthCheck, startedAt time.Time) HealthStatus {
	st := HealthStatus{Status: "ok", Env: cfg.Env}
	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	if len(checks) == 0 {
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st.Checks = make(map[string]string, len(checks))
	for _, hc := range checks {
		if err := hc.Ping(ctx); err != nil {
			st.Status = "degraded"
			st.Checks[hc.Name] = err.Error()
			continue
		}
		st.Checks[hc.Name] = "ok"
	}
	return st
}

func healthHandler(cfg Config, checks []HealthCheck, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := CollectHealth(c.Request.Context(), cfg, checks, startedAt)
		code := http.StatusOK
		if st.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	}
}
