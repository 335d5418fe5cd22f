package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/coursereviews/pkg/config"
	"github.com/utafrali/coursereviews/pkg/database"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout      time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	MaxRequestBodyBytes int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"65536"`

	// Pprof debug endpoints (IP allowlist in CIDR notation, empty disables)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Storage
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"reviews"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"reviews_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"coursereviews"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis read cache
	CacheEnabled  bool          `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	CachePrefix   string        `env:"CACHE_PREFIX" envDefault:"coursereviews"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"review-stats-repair"`

	// Stats refresh job; 0 disables it.
	StatsRefreshInterval    time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"0s"`
	StatsRefreshConcurrency int           `env:"STATS_REFRESH_CONCURRENCY" envDefault:"4"`

	// Write-route rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.DBMaxConns < c.DBMinConns {
			return fmt.Errorf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.DBMaxConns, c.DBMinConns)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be > 0 when caching is enabled, got %s", c.CacheTTL)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.StatsRefreshInterval < 0 {
		return fmt.Errorf("STATS_REFRESH_INTERVAL must be >= 0, got %s", c.StatsRefreshInterval)
	}
	if c.StatsRefreshConcurrency < 1 {
		return fmt.Errorf("STATS_REFRESH_CONCURRENCY must be >= 1, got %d", c.StatsRefreshConcurrency)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool configuration for pkg/database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the client configuration for pkg/database.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// SlowQueryThreshold returns the slow query logging threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
