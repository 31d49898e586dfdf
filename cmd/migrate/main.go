// Package main applies and inspects the progress schema migrations.
//
// Usage:
//
//	migrate [-config dir] up      apply pending migrations
//	migrate [-config dir] down    revert the latest migration
//	migrate [-config dir] status  list migrations and their state
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/curriculum-progress/config"
	"github.com/alem-hub/curriculum-progress/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/curriculum-progress/pkg/logger"
)

var errUsage = errors.New("usage: migrate [-config dir] up|down|status")

func main() {
	configPath := flag.String("config", ".", "directory containing an optional app.env")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, *configPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, action string) error {
	switch action {
	case "up", "down", "status":
	default:
		return errUsage
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver != config.StoragePostgres {
		return fmt.Errorf("STORAGE_DRIVER=%s has no schema to migrate", cfg.Database.Driver)
	}

	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	log := logger.New(opts).With(logger.Component("migrate"))

	dbConfig := postgres.DefaultConfig()
	dbConfig.URL = cfg.Database.URL
	dbConfig.MaxConns = 2
	dbConfig.MinConns = 0
	dbConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	switch action {
	case "up":
		applied, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", logger.Int("applied", applied))

	case "down":
		version, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("nothing to roll back")
			return nil
		}
		log.Info("migration rolled back", logger.Int("version", version))

	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "pending"
			if m.IsApplied {
				state = "applied " + m.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%03d  %-28s %s\n", m.Version, m.Name, state)
		}
	}

	return nil
}
