package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	SessionIdleTimeout  time.Duration
	SessionHistoryLimit int
	ToolTimeout         time.Duration

	AllowAnyOrigin bool
	// StrictIntent makes closed-set violations panic instead of degrading.
	// Meant for dev and test builds only.
	StrictIntent bool

	DatabaseURL string
	SQLitePath  string

	ProductsPath string
	OutletsPath  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "zuschat"),
		ShutdownTimeout:     15 * time.Second,
		SessionIdleTimeout:  30 * time.Minute,
		SessionHistoryLimit: 12,
		ToolTimeout:         5 * time.Second,
		DatabaseURL:         trimmedEnv("DATABASE_URL"),
		SQLitePath:          trimmedEnv("ZUSCHAT_SQLITE_PATH"),
		ProductsPath:        trimmedEnv("ZUSCHAT_PRODUCTS_PATH"),
		OutletsPath:         trimmedEnv("ZUSCHAT_OUTLETS_PATH"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("APP_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("APP_TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionHistoryLimit, err = intFromEnv("APP_SESSION_HISTORY_LIMIT", cfg.SessionHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StrictIntent, err = boolFromEnv("APP_STRICT_INTENT", cfg.StrictIntent)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.SessionHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_HISTORY_LIMIT must be positive")
	}
	if cfg.ToolTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_TOOL_TIMEOUT must be positive")
	}
	if cfg.DatabaseURL != "" && cfg.SQLitePath != "" {
		return Config{}, fmt.Errorf("DATABASE_URL and ZUSCHAT_SQLITE_PATH are mutually exclusive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
