package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	App           AppConfig
	Observability ObservabilityConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Shortener     ShortenerConfig
	Tracker       TrackerConfig
	Sweeper       SweeperConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" required:"true"`
	Port        string `envconfig:"DB_PORT" required:"true"`
	User        string `envconfig:"DB_USER" required:"true"`
	Password    string `envconfig:"DB_PASSWORD" required:"true"`
	Name        string `envconfig:"DB_NAME" required:"true"`
	SSLMode     string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns    int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns    int32  `envconfig:"DB_MIN_CONNS" required:"true"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"` // apply pending migrations at startup
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ObservabilityConfig identifies the running service in logs and health output.
type ObservabilityConfig struct {
	ServiceName    string `envconfig:"SERVICE_NAME" default:"shortlink"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

// RedisConfig is shared by the Redis cache backend and the Redis rate limiter.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db must be non-negative, got %d", c.DB)
	}
	return nil
}

// CacheConfig holds link cache configuration.
type CacheConfig struct {
	Backend         string        `envconfig:"CACHE_BACKEND" default:"memory"` // memory, redis
	TTL             time.Duration `envconfig:"CACHE_TTL" default:"60m"`
	CleanupInterval time.Duration `envconfig:"CACHE_CLEANUP_INTERVAL" default:"10m"`
	KeyPrefix       string        `envconfig:"CACHE_KEY_PREFIX" default:"link:"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "redis" {
		return fmt.Errorf("invalid cache backend: %s (must be one of: memory, redis)", c.Backend)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cache cleanup interval must be positive")
	}
	return nil
}

// ShortenerConfig controls code allocation.
type ShortenerConfig struct {
	CodeLength        int    `envconfig:"CODE_LENGTH" default:"7"`
	Strategy          string `envconfig:"CODE_STRATEGY" default:"random"` // random, sequence
	AttemptsPerLength int    `envconfig:"CODE_ATTEMPTS_PER_LENGTH" default:"10"`
	MaxAttempts       int    `envconfig:"CODE_MAX_ATTEMPTS" default:"30"`
}

// Validate validates the shortener configuration.
func (c *ShortenerConfig) Validate() error {
	if c.CodeLength < 3 || c.CodeLength > 32 {
		return fmt.Errorf("code length must be between 3 and 32, got %d", c.CodeLength)
	}
	if c.Strategy != "random" && c.Strategy != "sequence" {
		return fmt.Errorf("invalid code strategy: %s (must be one of: random, sequence)", c.Strategy)
	}
	if c.AttemptsPerLength <= 0 {
		return fmt.Errorf("attempts per length must be positive")
	}
	if c.MaxAttempts < c.AttemptsPerLength {
		return fmt.Errorf("max attempts (%d) cannot be less than attempts per length (%d)", c.MaxAttempts, c.AttemptsPerLength)
	}
	return nil
}

// TrackerConfig holds click tracker configuration.
type TrackerConfig struct {
	Workers    int           `envconfig:"TRACKER_WORKERS" default:"4"`
	BufferSize int           `envconfig:"TRACKER_BUFFER" default:"1024"`
	Timeout    time.Duration `envconfig:"TRACKER_TIMEOUT" default:"5s"`
}

// Validate validates the tracker configuration.
func (c *TrackerConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("tracker workers must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("tracker buffer must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("tracker timeout must be positive")
	}
	return nil
}

// SweeperConfig holds maintenance sweeper configuration.
type SweeperConfig struct {
	Enabled                 bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Interval                time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	ClickRetentionMonths    int           `envconfig:"SWEEP_CLICK_RETENTION_MONTHS" default:"6"`
	DeadLinkRetentionMonths int           `envconfig:"SWEEP_DEAD_LINK_RETENTION_MONTHS" default:"12"`
	BatchSize               int           `envconfig:"SWEEP_BATCH_SIZE" default:"1000"`
}

// Validate validates the sweeper configuration.
func (c *SweeperConfig) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.ClickRetentionMonths <= 0 {
		return fmt.Errorf("click retention must be at least one month")
	}
	if c.DeadLinkRetentionMonths <= 0 {
		return fmt.Errorf("dead link retention must be at least one month")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("sweep batch size must be positive")
	}
	return nil
}

// RateLimitConfig holds per-client request limiting configuration.
type RateLimitConfig struct {
	Enabled  bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Backend  string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory"` // memory, redis
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Backend != "memory" && c.Backend != "redis" {
		return fmt.Errorf("invalid rate limit backend: %s (must be one of: memory, redis)", c.Backend)
	}
	if c.Requests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.Window < time.Millisecond {
		return fmt.Errorf("rate limit window must be at least 1ms")
	}
	return nil
}

type section struct {
	name   string
	target interface{ Validate() error }
}

func process(sections ...section) error {
	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.target.Validate(); err != nil {
			return fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables only.
// (Do .env loading in cmd/server/main.go for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	err := process(
		section{"Server", &cfg.Server},
		section{"Database", &cfg.Database},
		section{"App", &cfg.App},
		section{"Observability", &cfg.Observability},
		section{"Redis", &cfg.Redis},
		section{"Cache", &cfg.Cache},
		section{"Shortener", &cfg.Shortener},
		section{"Tracker", &cfg.Tracker},
		section{"Sweeper", &cfg.Sweeper},
		section{"RateLimit", &cfg.RateLimit},
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker loads the sections needed by offline tooling: no HTTP server,
// tracker or rate limiter settings are read.
func LoadWorker() (*Config, error) {
	cfg := &Config{}

	err := process(
		section{"Database", &cfg.Database},
		section{"App", &cfg.App},
		section{"Redis", &cfg.Redis},
		section{"Cache", &cfg.Cache},
		section{"Shortener", &cfg.Shortener},
		section{"Sweeper", &cfg.Sweeper},
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
