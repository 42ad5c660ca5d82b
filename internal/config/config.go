// Package config provides configuration management for the paper sharing service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "PAPERSHARE"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// LLM provider names.
const (
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
	LLMProviderNone   = "none"
)

// minSessionSecretLength is the minimum HS256 key size in bytes.
const minSessionSecretLength = 32

// Config holds all configuration for the paper sharing service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Auth contains session and identity provider settings.
	Auth AuthConfig `mapstructure:"auth"`
	// Storage contains media host (S3) settings.
	Storage StorageConfig `mapstructure:"storage"`
	// Cache contains redis cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// LLM contains settings for the title suggestion model.
	LLM LLMConfig `mapstructure:"llm"`
	// Search contains semantic search settings.
	Search SearchConfig `mapstructure:"search"`
	// Media contains remote PDF download settings.
	Media MediaConfig `mapstructure:"media"`
	// Kafka contains Kafka publisher and consumer settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Outbox contains outbox relay settings.
	Outbox OutboxConfig `mapstructure:"outbox"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// IdleTimeout is the keep-alive idle timeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSAllowedOrigin is returned in Access-Control-Allow-Origin for upload preflights.
	CORSAllowedOrigin string `mapstructure:"cors_allowed_origin"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// AuthConfig holds session token and identity provider settings.
type AuthConfig struct {
	// SessionSecret signs session tokens (loaded from PAPERSHARE_AUTH_SESSION_SECRET).
	SessionSecret string `mapstructure:"-"`
	// SessionTTL is the lifetime of an issued session token.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// Issuer is the iss claim of issued session tokens.
	Issuer string `mapstructure:"issuer"`
	// CookieName is the cookie that may carry the session token.
	CookieName string `mapstructure:"cookie_name"`
	// CookieSecure marks the session cookie Secure (HTTPS only).
	CookieSecure bool `mapstructure:"cookie_secure"`
	// Google contains Google sign-in settings.
	Google GoogleAuthConfig `mapstructure:"google"`
}

// GoogleAuthConfig holds Google sign-in settings.
type GoogleAuthConfig struct {
	// Enabled turns on the Google sign-in endpoint.
	Enabled bool `mapstructure:"enabled"`
	// ClientID is the OAuth client id; it is the expected ID token audience.
	ClientID string `mapstructure:"client_id"`
	// JWKSURL is the Google signing key set endpoint.
	JWKSURL string `mapstructure:"jwks_url"`
	// KeyRefreshInterval is how long a fetched key set is reused.
	KeyRefreshInterval time.Duration `mapstructure:"key_refresh_interval"`
}

// StorageConfig holds media host settings.
type StorageConfig struct {
	// Enabled turns on file uploads to the media host.
	Enabled bool `mapstructure:"enabled"`
	// Endpoint overrides the S3 endpoint (for MinIO and other S3-compatible hosts).
	Endpoint string `mapstructure:"endpoint"`
	// Region is the bucket region.
	Region string `mapstructure:"region"`
	// Bucket is the bucket that stores paper PDFs.
	Bucket string `mapstructure:"bucket"`
	// Prefix is prepended to every object key.
	Prefix string `mapstructure:"prefix"`
	// PublicBaseURL is the base of URLs handed back to clients.
	PublicBaseURL string `mapstructure:"public_base_url"`
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool `mapstructure:"use_path_style"`
	// MaxUploadSize is the largest accepted PDF in bytes.
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
	// AccessKeyID is the static access key (loaded from PAPERSHARE_STORAGE_ACCESS_KEY_ID).
	AccessKeyID string `mapstructure:"-"`
	// SecretAccessKey is the static secret (loaded from PAPERSHARE_STORAGE_SECRET_ACCESS_KEY).
	SecretAccessKey string `mapstructure:"-"`
}

// CacheConfig holds redis cache settings.
type CacheConfig struct {
	// Enabled turns on the redis cache.
	Enabled bool `mapstructure:"enabled"`
	// Address is the redis host:port.
	Address string `mapstructure:"address"`
	// DB is the redis logical database.
	DB int `mapstructure:"db"`
	// Password is the redis password (loaded from PAPERSHARE_CACHE_PASSWORD).
	Password string `mapstructure:"-"`
	// Prefix namespaces every cache key.
	Prefix string `mapstructure:"prefix"`
	// TitleTTL is how long LLM title suggestions are cached.
	TitleTTL time.Duration `mapstructure:"title_ttl"`
	// FeedTTL is how long the home feed is cached.
	FeedTTL time.Duration `mapstructure:"feed_ttl"`
}

// LLMConfig holds settings for the model that suggests paper titles.
type LLMConfig struct {
	// Provider is the LLM provider (openai, gemini, none).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// RateLimitRPS is the sustained number of LLM calls per second.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
	// RateLimitBurst is the burst size for the rate limiter.
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Gemini contains Google Gemini-specific settings.
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from PAPERSHARE_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the OpenAI model to use.
	Model string `mapstructure:"model"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from PAPERSHARE_LLM_GEMINI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// Model is the Gemini model name.
	Model string `mapstructure:"model"`
}

// SearchConfig holds semantic search settings.
type SearchConfig struct {
	// SemanticEnabled turns on LLM title expansion.
	SemanticEnabled bool `mapstructure:"semantic_enabled"`
	// MaxTitles caps the number of suggested titles used in the filter.
	MaxTitles int `mapstructure:"max_titles"`
	// RecentLimit is the number of papers returned for an empty query and on the home feed.
	RecentLimit int `mapstructure:"recent_limit"`
	// ResultLimit caps the number of papers a search returns.
	ResultLimit int `mapstructure:"result_limit"`
	// RateLimitWait is the longest a search waits for an LLM rate limit token
	// before falling back to substring matching.
	RateLimitWait time.Duration `mapstructure:"rate_limit_wait"`
}

// MediaConfig holds remote PDF download settings.
type MediaConfig struct {
	// DownloadTimeout is the timeout for fetching a remote PDF.
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	// MaxDownloadSize is the largest remote PDF the proxy or importer will read.
	MaxDownloadSize int64 `mapstructure:"max_download_size"`
	// AllowPrivateNetworks disables SSRF checks. Test environments only.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

// KafkaConfig holds Kafka settings for the outbox relay and the feed listener.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing and consuming is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic outbox events are published to.
	Topic string `mapstructure:"topic"`
	// GroupID is the consumer group of the feed invalidation listener.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// OutboxConfig holds outbox relay settings.
type OutboxConfig struct {
	// PollInterval is how often the relay polls for pending events.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// BatchSize is the number of events claimed per poll.
	BatchSize int `mapstructure:"batch_size"`
	// MaxAttempts is the number of publish attempts before an event is dead-lettered.
	MaxAttempts int `mapstructure:"max_attempts"`
	// Retention is how long events are kept before the sweeper deletes them.
	Retention time.Duration `mapstructure:"retention"`
	// SweepInterval is how often expired events are deleted.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// Enabled turns on the media import workflow.
	Enabled bool `mapstructure:"enabled"`
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue name for media import workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC health server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-sharing-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" so config files cannot set them.
func loadSecrets(cfg *Config) {
	cfg.Auth.SessionSecret = os.Getenv(EnvPrefix + "_AUTH_SESSION_SECRET")

	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Gemini.APIKey = os.Getenv(EnvPrefix + "_LLM_GEMINI_API_KEY")

	cfg.Storage.AccessKeyID = os.Getenv(EnvPrefix + "_STORAGE_ACCESS_KEY_ID")
	cfg.Storage.SecretAccessKey = os.Getenv(EnvPrefix + "_STORAGE_SECRET_ACCESS_KEY")

	cfg.Cache.Password = os.Getenv(EnvPrefix + "_CACHE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origin", "*")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "papershare")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_sharing_service")
	// Use PAPERSHARE_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Auth defaults
	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.issuer", "paper-sharing-service")
	v.SetDefault("auth.cookie_name", "session")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.google.enabled", false)
	v.SetDefault("auth.google.client_id", "")
	v.SetDefault("auth.google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("auth.google.key_refresh_interval", "1h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.use_path_style", false)
	v.SetDefault("storage.max_upload_size", 50*1024*1024)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.prefix", "papershare:")
	v.SetDefault("cache.title_ttl", "24h")
	v.SetDefault("cache.feed_ttl", "1m")

	// LLM defaults
	v.SetDefault("llm.provider", LLMProviderNone)
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.rate_limit_rps", 2.0)
	v.SetDefault("llm.rate_limit_burst", 5)
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")

	// Search defaults
	v.SetDefault("search.semantic_enabled", true)
	v.SetDefault("search.max_titles", 25)
	v.SetDefault("search.recent_limit", 20)
	v.SetDefault("search.result_limit", 100)
	v.SetDefault("search.rate_limit_wait", 2*time.Second)

	// Media download defaults
	v.SetDefault("media.download_timeout", "60s")
	v.SetDefault("media.max_download_size", 100*1024*1024)
	v.SetDefault("media.allow_private_networks", false)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.outbox.paper_sharing_service")
	v.SetDefault("kafka.group_id", "paper-sharing-service-feed")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Outbox relay defaults
	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.sweep_interval", "1h")

	// Temporal defaults
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "paper-sharing")
	v.SetDefault("temporal.task_queue", "paper-media-import")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paper_sharing")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Auth.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("%s_AUTH_SESSION_SECRET must be at least %d bytes", EnvPrefix, minSessionSecretLength)
	}
	if c.Auth.Google.Enabled && c.Auth.Google.ClientID == "" {
		return fmt.Errorf("auth.google.client_id is required when Google sign-in is enabled")
	}

	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required when storage is enabled")
		}
		if c.Storage.MaxUploadSize <= 0 {
			return fmt.Errorf("storage max_upload_size must be positive")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	if c.Outbox.Retention <= 0 {
		return fmt.Errorf("outbox retention must be positive")
	}

	if c.Search.MaxTitles <= 0 {
		return fmt.Errorf("search max_titles must be positive")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case LLMProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case LLMProviderGemini:
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_GEMINI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case LLMProviderNone, "":
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	return nil
}
