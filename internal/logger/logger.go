// Package logger configures structured logging for the mining engine.
// Credential material (passwords, tokens) is redacted before any
// record reaches a handler.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

const redactedValue = "[REDACTED]"

// New creates a JSON slog.Logger at the given level with credential
// redaction applied to every attribute.
func New(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactSensitive,
	})
	return slog.New(handler)
}

// NewWithHandler wraps a custom handler with the same redaction,
// mainly for tests.
func NewWithHandler(handler slog.Handler) *slog.Logger {
	return slog.New(handler)
}

// redactSensitive replaces values of credential-bearing attributes.
func redactSensitive(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		a.Value = slog.StringValue(redactedValue)
	}
	return a
}

// parseLevel maps a config string to a slog level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isSensitiveKey checks if a key might contain credential material.
func isSensitiveKey(key string) bool {
	sensitiveKeys := map[string]bool{
		"password":      true,
		"token":         true,
		"access_token":  true,
		"refresh_token": true,
		"secret":        true,
		"authorization": true,
		"auth":          true,
		"credential":    true,
		"credentials":   true,
		"api_key":       true,
		"apikey":        true,
	}
	return sensitiveKeys[strings.ToLower(key)]
}
