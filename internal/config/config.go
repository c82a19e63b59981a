// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// ServerURL is the backend base URL, e.g. http://localhost:8000.
	ServerURL string
	// WSPath is the streaming endpoint path on the backend host.
	WSPath string
	// UserID is the caller-supplied free-text identifier.
	UserID string
	// DBPath is the local SQLite database for prompt handoff and transcripts.
	DBPath string
	// ReconnectDelay is the fixed delay before a mid-session reconnect attempt.
	ReconnectDelay time.Duration

	// Devserver settings.
	Port        string
	FrontendURL string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ServerURL:      getEnv("SERVER_URL", "http://localhost:8000"),
		WSPath:         getEnv("WS_PATH", "/ws"),
		UserID:         getEnv("USER_ID", "anonymous"),
		DBPath:         getEnv("DB_PATH", "./data/multiflex.db"),
		ReconnectDelay: getEnvDuration("RECONNECT_DELAY", 2*time.Second),
		Port:           getEnv("PORT", "8000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL cannot be empty")
	}
	if _, err := url.Parse(c.ServerURL); err != nil {
		return fmt.Errorf("SERVER_URL is not a valid URL: %w", err)
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with /")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be > 0")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	return nil
}

// WebSocketURL derives the ws:// or wss:// endpoint from the server URL.
func (c *Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = c.WSPath
	return u.String(), nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	// Accept plain seconds for compatibility with the old frontend config.
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
