// Package config provides configuration management for the paper feed service.
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

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PAPERFEED"

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

// Bookmark store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all configuration for the paper feed service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings. Only used when
	// Bookmarks.Store is "postgres".
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains bookmark event settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Bookmarks contains bookmark storage settings.
	Bookmarks BookmarksConfig `mapstructure:"bookmarks"`
	// PaperSources contains the source strategy settings.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
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
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from PAPERFEED_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 1).
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

// KafkaConfig holds bookmark event settings.
type KafkaConfig struct {
	// Enabled controls whether bookmark events are published and consumed.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the bookmark events topic.
	Topic string `mapstructure:"topic"`
	// GroupID is the consumer group prefix; the instance id is appended.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// InstanceID identifies this process in published events. Defaults to the hostname.
	InstanceID string `mapstructure:"instance_id"`
}

// ConsumerGroup returns the consumer group of this instance.
func (c *KafkaConfig) ConsumerGroup() string {
	return c.GroupID + "." + c.InstanceID
}

// BookmarksConfig holds bookmark storage settings.
type BookmarksConfig struct {
	// Store is the bookmark store kind (memory, postgres).
	Store string `mapstructure:"store"`
	// FanoutConcurrency bounds concurrent detail fetches when listing bookmarks.
	FanoutConcurrency int `mapstructure:"fanout_concurrency"`
}

// PaperSourcesConfig holds configuration for the source strategies.
type PaperSourcesConfig struct {
	// Active is the strategy in use (mock, api, scraper).
	Active string `mapstructure:"active"`
	// UserAgent is sent with every upstream request.
	UserAgent string `mapstructure:"user_agent"`
	// Mock contains mock strategy settings.
	Mock MockSourceConfig `mapstructure:"mock"`
	// AlphaXiv contains API strategy settings.
	AlphaXiv AlphaXivSourceConfig `mapstructure:"alphaxiv"`
	// Scraper contains scraper strategy settings.
	Scraper ScraperSourceConfig `mapstructure:"scraper"`
	// PDF configures full-text downloads.
	PDF PDFConfig `mapstructure:"pdf"`
}

// PDFConfig holds paper PDF download settings.
type PDFConfig struct {
	SiteURL string        `mapstructure:"site_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize caps a download in bytes.
	MaxSize int64 `mapstructure:"max_size"`
}

// MockSourceConfig holds mock strategy settings.
type MockSourceConfig struct {
	// Delay is artificial latency added to every call.
	Delay time.Duration `mapstructure:"delay"`
}

// AlphaXivSourceConfig holds API strategy settings.
type AlphaXivSourceConfig struct {
	// BaseURL is the API root.
	BaseURL string `mapstructure:"base_url"`
	// AssetBaseURL prefixes relative thumbnail paths.
	AssetBaseURL string `mapstructure:"asset_base_url"`
	// SiteURL is the public website used for canonical links.
	SiteURL string `mapstructure:"site_url"`
	// PageSize is the feed page size.
	PageSize int `mapstructure:"page_size"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests.
	BurstSize int `mapstructure:"burst_size"`
}

// ScraperSourceConfig holds scraper strategy settings.
type ScraperSourceConfig struct {
	// SiteURL is the website root.
	SiteURL string `mapstructure:"site_url"`
	// AssetBaseURL hosts default thumbnails.
	AssetBaseURL string `mapstructure:"asset_base_url"`
	// Timeout is the timeout for page fetches.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests.
	BurstSize int `mapstructure:"burst_size"`
	// SelectorsFile optionally overrides the built-in selector table.
	SelectorsFile string `mapstructure:"selectors_file"`
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

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/paper-feed-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	loadSecrets(&cfg)

	if cfg.Kafka.InstanceID == "" {
		cfg.Kafka.InstanceID = defaultInstanceID()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "paper-feed"
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperfeed")
	v.SetDefault("database.name", "paper_feed")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paper_feed")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "paper_feed.bookmarks")
	v.SetDefault("kafka.group_id", "paper-feed")
	v.SetDefault("kafka.batch_size", 1)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.instance_id", "")

	// Bookmark defaults
	v.SetDefault("bookmarks.store", StoreMemory)
	v.SetDefault("bookmarks.fanout_concurrency", 8)

	// Paper sources defaults
	v.SetDefault("paper_sources.active", "api")
	v.SetDefault("paper_sources.user_agent", "Helixir-PaperFeed/1.0")
	v.SetDefault("paper_sources.mock.delay", "0s")

	v.SetDefault("paper_sources.alphaxiv.base_url", "https://api.alphaxiv.org/")
	v.SetDefault("paper_sources.alphaxiv.asset_base_url", "https://paper-assets.alphaxiv.org")
	v.SetDefault("paper_sources.alphaxiv.site_url", "https://www.alphaxiv.org")
	v.SetDefault("paper_sources.alphaxiv.page_size", 20)
	v.SetDefault("paper_sources.alphaxiv.timeout", "15s")
	v.SetDefault("paper_sources.alphaxiv.rate_limit", 5.0)
	v.SetDefault("paper_sources.alphaxiv.burst_size", 5)

	v.SetDefault("paper_sources.scraper.site_url", "https://www.alphaxiv.org")
	v.SetDefault("paper_sources.scraper.asset_base_url", "https://paper-assets.alphaxiv.org")
	v.SetDefault("paper_sources.scraper.timeout", "20s")
	v.SetDefault("paper_sources.scraper.rate_limit", 2.0)
	v.SetDefault("paper_sources.scraper.burst_size", 2)
	v.SetDefault("paper_sources.scraper.selectors_file", "")
	v.SetDefault("paper_sources.pdf.site_url", "https://www.alphaxiv.org")
	v.SetDefault("paper_sources.pdf.timeout", "60s")
	v.SetDefault("paper_sources.pdf.max_size", 100<<20)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate source selection
	switch strings.ToLower(strings.TrimSpace(c.PaperSources.Active)) {
	case "mock", "api", "scraper":
	default:
		return fmt.Errorf("invalid paper source: %q (expected mock, api or scraper)", c.PaperSources.Active)
	}
	if c.PaperSources.Mock.Delay < 0 {
		return fmt.Errorf("mock delay must not be negative")
	}
	if c.PaperSources.AlphaXiv.RateLimit <= 0 || c.PaperSources.Scraper.RateLimit <= 0 {
		return fmt.Errorf("paper source rate limits must be positive")
	}
	if c.PaperSources.PDF.MaxSize < 0 {
		return fmt.Errorf("pdf max_size must not be negative")
	}

	// Validate bookmark store
	if c.Bookmarks.FanoutConcurrency <= 0 {
		return fmt.Errorf("bookmarks fanout_concurrency must be positive")
	}
	switch c.Bookmarks.Store {
	case StoreMemory:
	case StorePostgres:
		// Validate database config
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
	default:
		return fmt.Errorf("invalid bookmark store: %q (expected memory or postgres)", c.Bookmarks.Store)
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	return nil
}
