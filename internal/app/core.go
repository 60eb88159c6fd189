package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/shortlink/codegen"
	"github.com/sundayezeilo/shortlink/internal/cache"
	"github.com/sundayezeilo/shortlink/internal/config"
	db "github.com/sundayezeilo/shortlink/internal/db/sqlc"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/maintenance"
	"github.com/sundayezeilo/shortlink/internal/migrations"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// Core is the storage and domain layer shared by the server and linkctl.
type Core struct {
	Pool    *pgxpool.Pool
	Cache   cache.Backend
	Repo    shortener.Repository
	Service shortener.Service
	Sweeper *maintenance.Sweeper
}

// BuildCore connects to the database, applies migrations when configured,
// opens the cache backend and builds the resolver and sweeper.
func BuildCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	pool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := Migrate(cfg, logger, true); err != nil {
			pool.Close()
			return nil, err
		}
	}

	backend, err := cache.Open(ctx, cache.Options{
		Backend:         cfg.Cache.Backend,
		DefaultTTL:      cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Prefix:          cfg.Cache.KeyPrefix,
		RedisAddr:       cfg.Redis.Addr,
		RedisPassword:   cfg.Redis.Password,
		RedisDB:         cfg.Redis.DB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	logger.Info("cache ready", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL.String())

	repo := shortener.NewRepository(db.New(pool), &shortener.RepositoryConfig{
		IDGenerator: idgen.NewV7(),
	})

	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		Cache:             backend,
		CodeGenerator:     codegen.New(),
		Strategy:          shortener.Strategy(cfg.Shortener.Strategy),
		CodeLength:        cfg.Shortener.CodeLength,
		AttemptsPerLength: cfg.Shortener.AttemptsPerLength,
		MaxAttempts:       cfg.Shortener.MaxAttempts,
		CacheTTL:          cfg.Cache.TTL,
		Logger:            logger,
	})

	sweeper := maintenance.New(repo, &maintenance.Config{
		Interval:                cfg.Sweeper.Interval,
		ClickRetentionMonths:    cfg.Sweeper.ClickRetentionMonths,
		DeadLinkRetentionMonths: cfg.Sweeper.DeadLinkRetentionMonths,
		BatchSize:               cfg.Sweeper.BatchSize,
		Cache:                   backend,
		Logger:                  logger,
	})

	return &Core{
		Pool:    pool,
		Cache:   backend,
		Repo:    repo,
		Service: svc,
		Sweeper: sweeper,
	}, nil
}

// Close releases the cache backend and the connection pool.
func (c *Core) Close() error {
	var err error
	if c.Cache != nil {
		err = c.Cache.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	return err
}

// Migrate applies (up) or rolls back (down) every embedded migration.
func Migrate(cfg *config.Config, logger *slog.Logger, up bool) error {
	m, err := migrations.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	if up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	return errors.Join(err, m.Close())
}
