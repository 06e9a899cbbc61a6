package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the webapp service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string

	SessionCookieName      string
	SessionTTL             time.Duration
	SessionJanitorInterval time.Duration

	FlashMaxAge        time.Duration
	FlashMaxPerSession int

	DatabaseURL string

	DashboardAPIURL string
	UpstreamTimeout time.Duration

	GitHubClientID     string
	GitHubClientSecret string
	GitHubAuthorizeURL string
	GitHubTokenURL     string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:               envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:       envOrDefault("APP_METRICS_NAMESPACE", "webapp"),
		LogLevel:               envOrDefault("APP_LOG_LEVEL", "info"),
		SessionCookieName:      envOrDefault("SESSION_COOKIE_NAME", "webapp_session"),
		DashboardAPIURL:        envOrDefault("DASHBOARD_API_URL", "https://dashboard.snapcraft.io"),
		GitHubClientID:         stringsTrimSpace("GITHUB_CLIENT_ID"),
		GitHubClientSecret:     stringsTrimSpace("GITHUB_CLIENT_SECRET"),
		GitHubAuthorizeURL:     envOrDefault("GITHUB_AUTHORIZE_URL", "https://github.com/login/oauth/authorize"),
		GitHubTokenURL:         envOrDefault("GITHUB_TOKEN_URL", "https://github.com/login/oauth/access_token"),
		DatabaseURL:            stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:        15 * time.Second,
		SessionTTL:             30 * 24 * time.Hour,
		SessionJanitorInterval: time.Minute,
		FlashMaxAge:            60 * time.Second,
		FlashMaxPerSession:     25,
		UpstreamTimeout:        10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionJanitorInterval, err = durationFromEnv("SESSION_JANITOR_INTERVAL", cfg.SessionJanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.FlashMaxAge, err = durationFromEnv("FLASH_MAX_AGE", cfg.FlashMaxAge)
	if err != nil {
		return Config{}, err
	}
	cfg.FlashMaxPerSession, err = intFromEnv("FLASH_MAX_PER_SESSION", cfg.FlashMaxPerSession)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("SESSION_TTL must be at least 1m")
	}
	if cfg.FlashMaxAge <= 0 {
		return Config{}, fmt.Errorf("FLASH_MAX_AGE must be positive")
	}
	if cfg.FlashMaxPerSession <= 0 {
		return Config{}, fmt.Errorf("FLASH_MAX_PER_SESSION must be positive")
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

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
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
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
