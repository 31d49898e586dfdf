// Package main is the entry point of the curriculum progress API.
//
// Startup is staged: configuration, logging, storage, Redis, application
// handlers, then the HTTP server. SIGINT or SIGTERM triggers a graceful
// shutdown bounded by APP_SHUTDOWN_TIMEOUT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/curriculum-progress/config"
	"github.com/alem-hub/curriculum-progress/internal/application/command"
	"github.com/alem-hub/curriculum-progress/internal/application/query"
	"github.com/alem-hub/curriculum-progress/internal/domain/progress"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/auth"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/messaging"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/redis"
	httpserver "github.com/alem-hub/curriculum-progress/internal/interface/http"
	"github.com/alem-hub/curriculum-progress/internal/interface/http/handlers"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
	"github.com/alem-hub/curriculum-progress/pkg/retry"
)

func main() {
	configPath := flag.String("config", ".", "directory containing an optional app.env")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting curriculum progress API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Database.Driver),
	)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Storage
	// ─────────────────────────────────────────────────────────────────────────
	repo, closeStorage, err := setupStorage(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	defer closeStorage()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Redis (optional, per-learner write limit)
	// ─────────────────────────────────────────────────────────────────────────
	var writeLimiter httpserver.WriteLimiter
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		redisConfig := redis.DefaultConfig()
		redisConfig.Host = cfg.Redis.Host
		redisConfig.Port = cfg.Redis.Port
		redisConfig.Password = cfg.Redis.Password
		redisConfig.DB = cfg.Redis.DB
		redisConfig.PoolSize = cfg.Redis.PoolSize
		redisConfig.MinIdleConns = cfg.Redis.MinIdleConns
		redisConfig.DialTimeout = cfg.Redis.DialTimeout
		redisConfig.ReadTimeout = cfg.Redis.ReadTimeout
		redisConfig.WriteTimeout = cfg.Redis.WriteTimeout

		client, err := retry.DoWithData(ctx, func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(ctx, redisConfig)
		}, retry.Startup(logRetry(log, "redis"))...)
		if err != nil {
			log.Warn("failed to connect to Redis, write limit disabled", logger.Err(err))
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = client.Close()
			}()
			counter := redis.NewBreakerCounter(client, redis.DefaultBreakerConfig(), log)
			writeLimiter = redis.NewWriteLimiter(counter, cfg.RateLimit.WritesPerUser, cfg.RateLimit.WriteWindow)
			health.AddCheck("redis", handlers.NewPingCheck(client))
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()
	if err := messaging.RegisterProgressSubscribers(eventBus, log); err != nil {
		return fmt.Errorf("failed to register subscribers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	authenticator, err := auth.NewJWTAuthenticator(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		Leeway: cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	deps := httpserver.Dependencies{
		UpsertProgress: command.NewUpsertProgressHandler(repo, eventBus, log),
		GetProgress:    query.NewGetProgressHandler(repo),
		GetStats:       query.NewGetStatsHandler(repo),
		Lessons:        query.NewLessonsHandler(repo),
		Authenticator:  authenticator,
		WriteLimiter:   writeLimiter,
		HealthChecker:  health,
		Logger:         log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	httpConfig.RateLimitPerMinute = cfg.RateLimit.PerIPPerMinute
	httpConfig.Version = cfg.App.Version

	server := httpserver.NewServer(httpConfig, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("HTTP server error", logger.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	opts.AddCaller = cfg.IsDevelopment()

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// setupStorage opens the configured repository and registers its health check.
// The returned func releases it.
func setupStorage(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	health *handlers.CompositeHealthChecker,
) (progress.Repository, func(), error) {
	if cfg.Database.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, records are lost on restart")
		repo := memory.NewProgressRepository()
		health.AddCheck("storage", handlers.NewPingCheck(repo))
		return repo, func() {}, nil
	}

	log.Info("connecting to database...")
	dbConfig := postgres.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConns = cfg.Database.MaxConns
	dbConfig.MinConns = cfg.Database.MinConns
	dbConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	dbConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, dbConfig)
	}, retry.Startup(logRetry(log, "database"))...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeFn := func() {
		log.Info("closing database connection...")
		conn.Close()
	}
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations...")
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", logger.Int("applied", applied))
	}

	health.AddCheck("database", handlers.NewPingCheck(conn))
	return postgres.NewProgressRepository(conn), closeFn, nil
}

func logRetry(log *logger.Logger, dependency string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			logger.String("dependency", dependency),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}
