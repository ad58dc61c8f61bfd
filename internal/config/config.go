package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the mining engine
type Config struct {
	// Database
	DatabaseURL string

	// Server
	APIPort int

	// OAuth providers
	GoogleClientID     string
	GoogleClientSecret string
	AzureClientID      string
	AzureClientSecret  string
	OAuthRedirectURL   string

	// IMAP bounds
	MaxConnsPerAccount int
	MaxConnsPerFolder  int
	ConnectTimeout     time.Duration

	// Fetching
	FetchChunkSize int
	FetchBody      bool
	BodyMaxBytes   int

	// Parsing
	WorkerCount int // 0 = available parallelism - 1

	// Aggregation
	FlushBatchSize int

	// Domain validation
	DNSCacheTTL time.Duration
	DNSTimeout  time.Duration

	// Logging
	LogLevel string

	// Security
	AllowedOrigins string
	AppEnv         string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var err error
	if cfg.APIPort, err = intEnv("API_PORT", 8081); err != nil {
		return nil, err
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.AzureClientID = os.Getenv("AZURE_CLIENT_ID")
	cfg.AzureClientSecret = os.Getenv("AZURE_CLIENT_SECRET")
	cfg.OAuthRedirectURL = os.Getenv("OAUTH_REDIRECT_URL")
	if cfg.OAuthRedirectURL == "" {
		cfg.OAuthRedirectURL = "http://localhost:8081/oauth/callback"
	}

	if cfg.MaxConnsPerAccount, err = intEnv("IMAP_MAX_CONNECTIONS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxConnsPerFolder, err = intEnv("IMAP_MAX_CONNECTIONS_PER_FOLDER", 1); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = durationEnv("IMAP_CONNECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.FetchChunkSize, err = intEnv("FETCH_CHUNK_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.BodyMaxBytes, err = intEnv("BODY_MAX_BYTES", 8192); err != nil {
		return nil, err
	}

	// FETCH_BODY (default: true)
	fetchBody := os.Getenv("FETCH_BODY")
	if fetchBody == "" {
		cfg.FetchBody = true
	} else {
		enabled, err := strconv.ParseBool(fetchBody)
		if err != nil {
			return nil, fmt.Errorf("FETCH_BODY must be a valid boolean: %w", err)
		}
		cfg.FetchBody = enabled
	}

	if cfg.WorkerCount, err = intEnv("PARSE_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.FlushBatchSize, err = intEnv("FLUSH_BATCH_SIZE", 200); err != nil {
		return nil, err
	}

	if cfg.DNSCacheTTL, err = durationEnv("DNS_CACHE_TTL", 240*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DNSTimeout, err = durationEnv("DNS_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.MaxConnsPerAccount < 1 {
		return fmt.Errorf("MaxConnsPerAccount must be at least 1")
	}
	if c.MaxConnsPerFolder < 1 {
		return fmt.Errorf("MaxConnsPerFolder must be at least 1")
	}
	if c.FetchChunkSize < 1 {
		return fmt.Errorf("FetchChunkSize must be at least 1")
	}
	if c.BodyMaxBytes < 1 {
		return fmt.Errorf("BodyMaxBytes must be at least 1")
	}
	if c.FlushBatchSize < 1 {
		return fmt.Errorf("FlushBatchSize must be at least 1")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Int("imap_max_connections", c.MaxConnsPerAccount),
		slog.Int("imap_max_connections_per_folder", c.MaxConnsPerFolder),
		slog.Duration("imap_connect_timeout", c.ConnectTimeout),
		slog.Int("fetch_chunk_size", c.FetchChunkSize),
		slog.Bool("fetch_body", c.FetchBody),
		slog.Int("body_max_bytes", c.BodyMaxBytes),
		slog.Int("parse_workers", c.WorkerCount),
		slog.Int("flush_batch_size", c.FlushBatchSize),
		slog.Duration("dns_cache_ttl", c.DNSCacheTTL),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("google_oauth_set", c.GoogleClientID != ""),
		slog.Bool("azure_oauth_set", c.AzureClientID != ""),
	)
}

// intEnv reads an integer environment variable with a default
func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

// durationEnv reads a duration environment variable with a default
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}
