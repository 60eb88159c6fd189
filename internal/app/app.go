package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/ratelimit"
	"github.com/sundayezeilo/shortlink/internal/server"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Core    *Core
	Tracker *shortener.Tracker
	Server  *server.Server
	Handler *shortener.Handler

	limiter     ratelimit.Limiter
	limiterConn *redis.Client // set when the limiter is Redis-backed
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := SetupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	core, err := BuildCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Core:   core,
	}

	a.Tracker = shortener.NewTracker(core.Repo, &shortener.TrackerConfig{
		Workers:     cfg.Tracker.Workers,
		BufferSize:  cfg.Tracker.BufferSize,
		Timeout:     cfg.Tracker.Timeout,
		IDGenerator: idgen.NewV7(),
		Logger:      logger,
	})

	if cfg.RateLimit.Enabled {
		if err := a.setupLimiter(ctx); err != nil {
			_ = core.Close()
			return nil, fmt.Errorf("failed to set up rate limiter: %w", err)
		}
	}

	a.Handler = shortener.NewHandler(shortener.HandlerConfig{
		Service: core.Service,
		Clicks:  a.Tracker,
		Logger:  logger,
		BaseURL: cfg.Server.BaseURL,
	})

	a.Server = server.New(cfg, logger, server.Dependencies{
		Handler: a.Handler,
		Store:   core.Pool,
		Cache:   core.Cache,
		Tracker: a.Tracker,
		Limiter: a.limiter,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"cache", cfg.Cache.Backend,
		"code_strategy", cfg.Shortener.Strategy,
		"rate_limit", cfg.RateLimit.Enabled,
	)

	return a, nil
}

func (a *App) setupLimiter(ctx context.Context) error {
	rl := a.Config.RateLimit

	switch rl.Backend {
	case "redis":
		client := newRedisClient(a.Config.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis %s: %w", a.Config.Redis.Addr, err)
		}
		a.limiterConn = client
		a.limiter = ratelimit.NewRedis(client, rl.Requests, rl.Window, ratelimit.DefaultKeyPrefix)
	default:
		a.limiter = ratelimit.NewMemory(rl.Requests, rl.Window)
	}

	a.Logger.Info("rate limiting enabled",
		"backend", rl.Backend,
		"requests", rl.Requests,
		"window", rl.Window.String(),
	)
	return nil
}

// Start runs the click tracker, the sweeper and the rate limiter janitor,
// then serves HTTP until shutdown. Background work is stopped before Start
// returns.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Tracker.Start()

	var wg sync.WaitGroup
	if a.Config.Sweeper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Core.Sweeper.Run(ctx)
		}()
	}
	if mem, ok := a.limiter.(*ratelimit.Memory); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mem.RunJanitor(ctx, a.Config.RateLimit.Window, a.Logger)
		}()
	}

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	serveErr := a.Server.Start(ctx)

	cancel()
	wg.Wait()

	stopCtx, stop := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer stop()
	if err := a.Tracker.Stop(stopCtx); err != nil {
		a.Logger.Warn("click tracker did not drain", "error", err.Error())
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}

// Shutdown releases connections held by the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error
	if a.limiterConn != nil {
		errs = append(errs, a.limiterConn.Close())
	}
	if a.Core != nil {
		errs = append(errs, a.Core.Close())
	}
	return errors.Join(errs...)
}

// LoadEnv loads .env file only in non-production environments.
func LoadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// SetupLogger creates a structured JSON logger on stdout based on the log level.
func SetupLogger(level string) *slog.Logger {
	return NewLogger(os.Stdout, level)
}

// NewLogger creates a structured JSON logger writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
