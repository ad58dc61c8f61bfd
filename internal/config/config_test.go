package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so host environment
// never leaks into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "API_PORT",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
		"AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET", "OAUTH_REDIRECT_URL",
		"IMAP_MAX_CONNECTIONS", "IMAP_MAX_CONNECTIONS_PER_FOLDER", "IMAP_CONNECT_TIMEOUT",
		"FETCH_CHUNK_SIZE", "BODY_MAX_BYTES", "FETCH_BODY",
		"PARSE_WORKERS", "FLUSH_BATCH_SIZE",
		"DNS_CACHE_TTL", "DNS_TIMEOUT",
		"LOG_LEVEL", "ALLOWED_ORIGINS", "APP_ENV",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/miner")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.APIPort)
	assert.Equal(t, 5, cfg.MaxConnsPerAccount)
	assert.Equal(t, 1, cfg.MaxConnsPerFolder)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 200, cfg.FetchChunkSize)
	assert.True(t, cfg.FetchBody)
	assert.Equal(t, 8192, cfg.BodyMaxBytes)
	assert.Equal(t, 0, cfg.WorkerCount)
	assert.Equal(t, 200, cfg.FlushBatchSize)
	assert.Equal(t, 240*time.Hour, cfg.DNSCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.DNSTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "http://localhost:8081/oauth/callback", cfg.OAuthRedirectURL)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/miner")
	t.Setenv("API_PORT", "9090")
	t.Setenv("IMAP_MAX_CONNECTIONS", "10")
	t.Setenv("IMAP_CONNECT_TIMEOUT", "10s")
	t.Setenv("FETCH_BODY", "false")
	t.Setenv("DNS_CACHE_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, 10, cfg.MaxConnsPerAccount)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.FetchBody)
	assert.Equal(t, time.Hour, cfg.DNSCacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric port", "API_PORT", "eighty"},
		{"non-numeric chunk size", "FETCH_CHUNK_SIZE", "many"},
		{"bad duration", "IMAP_CONNECT_TIMEOUT", "soon"},
		{"bad boolean", "FETCH_BODY", "maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/miner")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestValidate_Bounds(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:        "postgres://localhost/miner",
			APIPort:            8081,
			MaxConnsPerAccount: 5,
			MaxConnsPerFolder:  1,
			FetchChunkSize:     200,
			BodyMaxBytes:       8192,
			FlushBatchSize:     200,
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.APIPort = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.APIPort = 70000
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.MaxConnsPerAccount = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.FetchChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.FlushBatchSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateProduction(t *testing.T) {
	cfg := &Config{
		DatabaseURL:    "postgres://db.internal/miner?sslmode=require",
		AllowedOrigins: "https://app.example.com",
	}
	assert.NoError(t, cfg.ValidateProduction())

	cfg.AllowedOrigins = ""
	assert.Error(t, cfg.ValidateProduction(), "origins are required in production")

	cfg.AllowedOrigins = "*"
	assert.Error(t, cfg.ValidateProduction(), "wildcard origins are rejected")

	cfg.AllowedOrigins = "https://app.example.com"
	cfg.DatabaseURL = "postgres://db.internal/miner?sslmode=disable"
	assert.Error(t, cfg.ValidateProduction(), "plaintext database links are rejected")
}

func TestLoadWithValidation_ProductionGate(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db.internal/miner?sslmode=require")
	t.Setenv("APP_ENV", "production")

	_, err := LoadWithValidation()
	require.Error(t, err, "production requires ALLOWED_ORIGINS")

	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")
	cfg, err := LoadWithValidation()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.AppEnv)
}
