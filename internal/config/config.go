package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/joshdurbin/newsfeed/internal/cache"
	"github.com/joshdurbin/newsfeed/internal/repository"
	"github.com/joshdurbin/newsfeed/internal/retry"
	"github.com/joshdurbin/newsfeed/internal/store"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	API       APIConfig
	Retry     RetryConfig
	Cache     CacheConfig
	Store     StoreConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Telemetry TelemetryConfig
}

// APIConfig describes the remote feed API
type APIConfig struct {
	BaseURL   string        `env:"NEWSFEED_API_URL"`
	Timeout   time.Duration `env:"NEWSFEED_API_TIMEOUT"`
	AuthToken string        `env:"NEWSFEED_API_TOKEN"`

	// RateLimit caps outgoing requests per second; 0 disables it
	RateLimit float64 `env:"NEWSFEED_API_RATE_LIMIT"`
	RateBurst int     `env:"NEWSFEED_API_RATE_BURST"`

	// Fixtures routes requests to named server fixtures
	Fixtures       bool   `env:"NEWSFEED_API_FIXTURES"`
	FixtureDir     string `env:"NEWSFEED_API_FIXTURE_DIR"`
	FeedMultiplier int    `env:"NEWSFEED_API_FEED_MULTIPLIER"`
}

// RetryConfig holds the operation level retry schedule
type RetryConfig struct {
	MaxAttempts int           `env:"NEWSFEED_RETRY_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `env:"NEWSFEED_RETRY_BASE_DELAY"`
	MaxDelay    time.Duration `env:"NEWSFEED_RETRY_MAX_DELAY"`
	JitterMin   float64       `env:"NEWSFEED_RETRY_JITTER_MIN"`
	JitterMax   float64       `env:"NEWSFEED_RETRY_JITTER_MAX"`
	StatusCodes []int         `env:"NEWSFEED_RETRY_STATUS_CODES" envSeparator:","`
}

// CacheConfig sizes the in-memory caches
type CacheConfig struct {
	DetailCapacity        int           `env:"NEWSFEED_CACHE_DETAILS"`
	PageCapacity          int           `env:"NEWSFEED_CACHE_PAGES"`
	MediaCapacity         int           `env:"NEWSFEED_CACHE_MEDIA"`
	MediaMaxBytes         int64         `env:"NEWSFEED_CACHE_MEDIA_BYTES"`
	SerializeInteractions bool          `env:"NEWSFEED_SERIALIZE_INTERACTIONS"`
	SweepInterval         time.Duration `env:"NEWSFEED_SWEEP_INTERVAL"`
}

// StoreConfig selects and configures the durable local store
type StoreConfig struct {
	Backend       string        `env:"NEWSFEED_STORE"`
	Path          string        `env:"NEWSFEED_DB_PATH"`
	RedisAddr     string        `env:"NEWSFEED_REDIS_ADDR"`
	RedisPassword string        `env:"NEWSFEED_REDIS_PASSWORD"`
	RedisDB       int           `env:"NEWSFEED_REDIS_DB"`
	TTL           time.Duration `env:"NEWSFEED_TTL"`
}

// ServerConfig configures the fixture server
type ServerConfig struct {
	Port       string        `env:"NEWSFEED_PORT"`
	Posts      int           `env:"NEWSFEED_SERVER_POSTS"`
	PageSize   int           `env:"NEWSFEED_SERVER_PAGE_SIZE"`
	FixtureDir string        `env:"NEWSFEED_SERVER_FIXTURE_DIR"`
	FailRate   float64       `env:"NEWSFEED_SERVER_FAIL_RATE"`
	FailStatus int           `env:"NEWSFEED_SERVER_FAIL_STATUS"`
	Latency    time.Duration `env:"NEWSFEED_SERVER_LATENCY"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Verbose bool `env:"NEWSFEED_VERBOSE"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string `env:"NEWSFEED_OTLP_ENDPOINT"`
	Insecure    bool   `env:"NEWSFEED_OTLP_INSECURE"`
	ServiceName string `env:"NEWSFEED_SERVICE_NAME"`
}

// Default returns the built-in configuration
func Default() *Config {
	r := retry.DefaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			Timeout:        30 * time.Second,
			RateBurst:      1,
			FeedMultiplier: 1,
		},
		Retry: RetryConfig{
			MaxAttempts: r.MaxAttempts,
			BaseDelay:   r.BaseDelay,
			MaxDelay:    r.MaxDelay,
			JitterMin:   r.JitterMin,
			JitterMax:   r.JitterMax,
			StatusCodes: append([]int(nil), client.DefaultRetryStatusCodes...),
		},
		Cache: CacheConfig{
			DetailCapacity: 200,
			PageCapacity:   20,
			MediaCapacity:  200,
			MediaMaxBytes:  repository.DefaultMediaCost,
			SweepInterval:  time.Hour,
		},
		Store: StoreConfig{
			Backend:   BackendSQLite,
			Path:      "./newsfeed.db",
			RedisAddr: "localhost:6379",
			TTL:       store.DefaultTTL,
		},
		Server: ServerConfig{
			Port:       "8080",
			Posts:      50,
			PageSize:   10,
			FailStatus: 503,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "newsfeed",
		},
	}
}

// Load returns the defaults overlaid with NEWSFEED_* environment variables.
// Callers validate once command line overrides are applied.
func Load() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API base URL must be absolute, got: %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive, got: %v", c.API.Timeout)
	}

	if c.API.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative, got: %v", c.API.RateLimit)
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}

	if c.Cache.DetailCapacity < 0 || c.Cache.PageCapacity < 0 || c.Cache.MediaCapacity < 0 {
		return fmt.Errorf("cache capacities cannot be negative")
	}

	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got: %v", c.Cache.SweepInterval)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.TTL < 0 {
		return fmt.Errorf("store TTL cannot be negative, got: %v", c.Store.TTL)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Server.FailRate < 0 || c.Server.FailRate > 1 {
		return fmt.Errorf("server fail rate must be between 0 and 1, got: %v", c.Server.FailRate)
	}

	return nil
}

// RetryPolicy converts the retry settings
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
		JitterMin:   c.Retry.JitterMin,
		JitterMax:   c.Retry.JitterMax,
	}
}

// PostOptions builds the post repository options; metrics may be nil
func (c *Config) PostOptions(details cache.Metrics, pages cache.Metrics) repository.Options {
	opts := repository.DefaultOptions()
	opts.TTL = c.Store.TTL
	opts.DetailCache.Capacity = c.Cache.DetailCapacity
	opts.DetailCache.Metrics = details
	opts.PageCache.Capacity = c.Cache.PageCapacity
	opts.PageCache.Metrics = pages
	opts.SerializeInteractions = c.Cache.SerializeInteractions
	return opts
}

// MediaOptions builds the media repository options; metrics may be nil
func (c *Config) MediaOptions(metrics cache.Metrics) repository.MediaOptions {
	opts := repository.DefaultMediaOptions()
	opts.TTL = c.Store.TTL
	opts.Cache.Capacity = c.Cache.MediaCapacity
	opts.Cache.MaxCost = c.Cache.MediaMaxBytes
	opts.Cache.Metrics = metrics
	return opts
}
