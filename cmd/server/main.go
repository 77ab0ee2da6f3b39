package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"login-demo/core"
)

const serviceName = "login-demo"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}
	cfg := core.Load()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "server.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	shutdownTracing := core.SetupTracing(serviceName)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	seed, err := core.SeedUsers(cfg)
	if err != nil {
		log.Fatalf("failed to load seed users: %v", err)
	}

	var checks []core.HealthCheck
	var users core.UserRepository
	if cfg.DatabaseURL != "" {
		db, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.Close()
		if err := core.Migrate(ctx, db); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		pgUsers := core.NewPgUserRepository(db)
		if err := core.BootstrapUsers(ctx, pgUsers, seed); err != nil {
			log.Fatalf("bootstrap users failed: %v", err)
		}
		users = pgUsers
		checks = append(checks, core.PostgresHealthCheck(db))
	} else {
		memUsers, err := core.NewMemoryUserRepository(seed...)
		if err != nil {
			log.Fatalf("invalid seed users: %v", err)
		}
		log.Printf("loaded %d in-memory users", memUsers.Len())
		users = memUsers
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		checks = append(checks, core.RedisHealthCheck(redisClient))
	}

	var store sessions.Store
	switch cfg.SessionBackend {
	case core.SessionBackendRedis:
		if redisClient == nil {
			log.Fatalf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		store = core.NewRedisStore(redisClient, []byte(cfg.SessionKey))
	case core.SessionBackendCookie:
		store = sessions.NewCookieStore([]byte(cfg.SessionKey))
	default:
		log.Fatalf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}

	creds, err := core.NewCredentialStore(users, core.NewHashPool(cfg.HashConcurrency), core.HashCost(cfg.DemoUserPasswordHash))
	if err != nil {
		log.Fatalf("failed to init credential store: %v", err)
	}

	srv := core.Server{Config: cfg, Store: store, Creds: creds, Checks: checks}
	if redisClient != nil {
		srv.Limiter = core.NewRedisLoginLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}
	router := core.NewRouter(srv)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server is running in %s mode on port %s (sso=%t, sessions=%s)", cfg.Env, cfg.Port, cfg.SSOEnabled, cfg.SessionBackend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
