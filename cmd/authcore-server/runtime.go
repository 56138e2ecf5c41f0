package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/store/postgres"
)

const throttleSweepInterval = time.Minute

// Runtime owns the engine, its backends and the HTTP server.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	engine     *authcore.Engine
	throttle   *middleware.Throttle
	httpServer *http.Server
	cleanupFn  func()
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath, nil)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log)
	logger.Info("bootstrapping authcore server",
		"addr", cfg.HTTP.Addr,
		"accounts", cfg.Storage.Accounts,
		"sessions", cfg.Storage.Sessions,
		"lockout", cfg.Storage.Lockout,
	)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	b := authcore.New().
		WithConfig(cfg.engineConfig()).
		WithLogger(logger)
	if cfg.Auth.Audit {
		b = b.WithAuditSink(authcore.NewSlogSink(logger))
	}

	var redisClient redis.UniversalClient
	if cfg.usesRedis() {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cleanup()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	if cfg.usesPostgres() {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if cfg.Postgres.EnsureSchema {
			if err := postgres.EnsureSchema(ctx, pool); err != nil {
				cleanup()
				return nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		if cfg.Storage.Accounts == "postgres" {
			b = b.WithAccountStore(postgres.NewAccountStore(pool))
		}
		if cfg.Storage.Sessions == "postgres" {
			b = b.WithSessionRegistry(postgres.NewSessionStore(pool))
		}
	}

	if cfg.Storage.Accounts == "memory" {
		logger.Warn("accounts are kept in memory and lost on restart")
		b = b.WithAccountStore(account.NewMemoryStore())
	}
	switch cfg.Storage.Sessions {
	case "memory":
		b = b.WithSessionRegistry(session.NewMemoryStore())
	case "redis":
		b = b.WithSessionRegistry(session.NewStore(redisClient, cfg.Redis.Prefix))
	}
	if cfg.Storage.Lockout == "redis" {
		b = b.WithLockoutStore(lockout.NewRedisStore(redisClient, 0))
	}

	engine, err := b.Build()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	cleanups = append(cleanups, engine.Close)

	opts := httpapi.Options{
		Logger:     logger,
		TrustProxy: cfg.HTTP.TrustProxy,
	}
	var throttle *middleware.Throttle
	if cfg.Throttle.Enabled {
		throttle = middleware.NewThrottle(middleware.ThrottleConfig{
			Rate:       cfg.Throttle.Rate,
			Burst:      cfg.Throttle.Burst,
			TrustProxy: cfg.HTTP.TrustProxy,
		})
		opts.Throttle = throttle
	}
	if cfg.Auth.Metrics {
		opts.Metrics = prometheus.NewExporter(engine).Handler()
	}

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		throttle: throttle,
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.NewRouter(engine, opts),
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		},
		cleanupFn: cleanup,
	}, nil
}

// Run serves until SIGINT/SIGTERM or a server failure, then shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.cfg.Auth.PurgeInterval > 0 {
		go r.purgeLoop(ctx, r.cfg.Auth.PurgeInterval)
	}
	if r.throttle != nil {
		go r.throttle.Run(ctx, throttleSweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("http shutdown incomplete", "error", err)
	}
	r.cleanupFn()
	return runErr
}

func (r *Runtime) purgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.engine.PurgeExpiredSessions(ctx)
			if err != nil {
				r.logger.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
