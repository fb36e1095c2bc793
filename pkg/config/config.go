package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/modulink/pkg/middleware"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage"
)

// Cache modes
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Auth modes
const (
	AuthHeader = "header"
	AuthOIDC   = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Cache         CacheConfig
	Auth          AuthConfig
	Notify        NotifyConfig
	Catalog       CatalogConfig
	Jobs          JobsConfig
	RateLimit     RateLimitConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CacheConfig selects the access decision cache. Redis settings live in
// Storage.
type CacheConfig struct {
	Mode   string
	TTL    time.Duration
	Size   int
	Prefix string
}

// AuthConfig selects how callers are identified
type AuthConfig struct {
	Mode          string
	UserHeader    string
	OIDCIssuerURL string
	OIDCClientID  string
	// OIDCUserInfo also accepts opaque access tokens via the userinfo endpoint
	OIDCUserInfo bool
}

// NotifyConfig lists the webhooks receiving entitlement events
type NotifyConfig struct {
	WebhookURLs []string
	Secret      string
	Workers     int
	QueueSize   int
	Timeout     time.Duration
	MaxAttempts int
}

// CatalogConfig points at the module catalog seed
type CatalogConfig struct {
	SeedFile   string
	Watch      bool
	WatchDelay time.Duration
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	IntegritySchedule string
	IntegrityTimeout  time.Duration
}

// RateLimitConfig bounds mutating requests per tenant
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables. Variables in
// the file named by MODULINK_ENV_FILE (default ".env") fill in what the
// environment leaves unset; a missing file is not an error.
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(getEnv("MODULINK_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Cache:         loadCacheConfig(),
		Auth:          loadAuthConfig(),
		Notify:        loadNotifyConfig(),
		Catalog:       loadCatalogConfig(),
		Jobs:          loadJobsConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MODULINK_HOST", "0.0.0.0"),
		Port:            getEnv("MODULINK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MODULINK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MODULINK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MODULINK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MODULINK_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    int64(getEnvInt("MODULINK_MAX_BODY_BYTES", 1<<20)),
		HealthPort:      getEnv("MODULINK_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.PostgresURL = getEnv("MODULINK_POSTGRES_URL", cfg.PostgresURL)
	if maxConns := getEnvInt("MODULINK_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("MODULINK_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	cfg.PostgresTimeout = getEnvDuration("MODULINK_POSTGRES_TIMEOUT", cfg.PostgresTimeout)
	cfg.PostgresMaxLifetime = getEnvDuration("MODULINK_POSTGRES_MAX_LIFETIME", cfg.PostgresMaxLifetime)
	cfg.PostgresMaxIdleTime = getEnvDuration("MODULINK_POSTGRES_MAX_IDLE_TIME", cfg.PostgresMaxIdleTime)

	cfg.S3Endpoint = getEnv("MODULINK_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("MODULINK_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("MODULINK_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("MODULINK_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("MODULINK_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("MODULINK_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	cfg.RedisURL = getEnv("MODULINK_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("MODULINK_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("MODULINK_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("MODULINK_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("MODULINK_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Mode:   strings.ToLower(getEnv("MODULINK_CACHE_MODE", CacheNone)),
		TTL:    getEnvDuration("MODULINK_CACHE_TTL", 5*time.Minute),
		Size:   getEnvInt("MODULINK_CACHE_SIZE", 10000),
		Prefix: getEnv("MODULINK_CACHE_PREFIX", "modulink"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Mode:          strings.ToLower(getEnv("MODULINK_AUTH_MODE", AuthHeader)),
		UserHeader:    getEnv("MODULINK_AUTH_USER_HEADER", middleware.UserIDHeader),
		OIDCIssuerURL: getEnv("MODULINK_OIDC_ISSUER_URL", ""),
		OIDCClientID:  getEnv("MODULINK_OIDC_CLIENT_ID", ""),
		OIDCUserInfo:  getEnvBool("MODULINK_OIDC_USERINFO", false),
	}
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebhookURLs: getEnvList("MODULINK_WEBHOOK_URLS"),
		Secret:      getEnv("MODULINK_WEBHOOK_SECRET", ""),
		Workers:     getEnvInt("MODULINK_WEBHOOK_WORKERS", 2),
		QueueSize:   getEnvInt("MODULINK_WEBHOOK_QUEUE_SIZE", 256),
		Timeout:     getEnvDuration("MODULINK_WEBHOOK_TIMEOUT", 10*time.Second),
		MaxAttempts: getEnvInt("MODULINK_WEBHOOK_MAX_ATTEMPTS", notify.DefaultRetryConfig().MaxAttempts),
	}
}

func loadCatalogConfig() CatalogConfig {
	return CatalogConfig{
		SeedFile:   getEnv("MODULINK_CATALOG_SEED", ""),
		Watch:      getEnvBool("MODULINK_CATALOG_WATCH", false),
		WatchDelay: getEnvDuration("MODULINK_CATALOG_WATCH_DELAY", 500*time.Millisecond),
	}
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		IntegritySchedule: getEnv("MODULINK_INTEGRITY_SCHEDULE", "@every 1h"),
		IntegrityTimeout:  getEnvDuration("MODULINK_INTEGRITY_TIMEOUT", 5*time.Minute),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	d := middleware.DefaultRateLimitConfig()
	return RateLimitConfig{
		Enabled:           getEnvBool("MODULINK_RATE_LIMIT_ENABLED", true),
		RequestsPerMinute: getEnvInt("MODULINK_RATE_LIMIT_PER_MINUTE", d.RequestsPerWindow),
		Burst:             getEnvInt("MODULINK_RATE_LIMIT_BURST", d.BurstSize),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("MODULINK_LOG_LEVEL", "info"),
		LogFormat:          getEnv("MODULINK_LOG_FORMAT", observability.FormatJSON),
		MetricsEnabled:     getEnvBool("MODULINK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MODULINK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MODULINK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MODULINK_OTEL_SERVICE_NAME", "modulink"),
		OTelServiceVersion: getEnv("MODULINK_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MODULINK_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("MODULINK_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Cache.Mode {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache")
		}
	default:
		return fmt.Errorf("invalid cache mode: %s (must be none, memory, or redis)", c.Cache.Mode)
	}
	if c.Cache.Mode != CacheNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	switch c.Auth.Mode {
	case AuthHeader:
		if c.Auth.UserHeader == "" {
			return fmt.Errorf("user header is required for header auth")
		}
	case AuthOIDC:
		if c.Auth.OIDCIssuerURL == "" || c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer URL and client id are required for oidc auth")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be header or oidc)", c.Auth.Mode)
	}

	if len(c.Notify.WebhookURLs) > 0 && c.Notify.Secret == "" {
		return fmt.Errorf("webhook secret is required when webhooks are configured")
	}

	if c.Catalog.Watch && c.Catalog.SeedFile == "" {
		return fmt.Errorf("catalog seed file is required to watch it")
	}

	if _, err := cron.ParseStandard(c.Jobs.IntegritySchedule); err != nil {
		return fmt.Errorf("invalid integrity schedule %q: %w", c.Jobs.IntegritySchedule, err)
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive when enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OTel sample ratio must be between 0 and 1")
	}

	return nil
}

// OTel converts the observability settings for observability.InitOTel
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// Notifier converts the webhook settings for notify.NewWebhookNotifier
func (c NotifyConfig) Notifier() notify.Config {
	targets := make([]notify.Target, 0, len(c.WebhookURLs))
	for _, url := range c.WebhookURLs {
		targets = append(targets, notify.Target{URL: url, Secret: c.Secret})
	}
	retry := notify.DefaultRetryConfig()
	retry.MaxAttempts = c.MaxAttempts
	return notify.Config{
		Targets:   targets,
		Workers:   c.Workers,
		QueueSize: c.QueueSize,
		Timeout:   c.Timeout,
		Retry:     retry,
	}
}

// Limiter converts the rate limit settings
func (c RateLimitConfig) Limiter() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RequestsPerWindow: c.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         c.Burst,
	}
}

// getEnv returns an environment variable value or a default
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to read env file %s: %w", path, err)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
