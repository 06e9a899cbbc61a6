package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.SessionCookieName != "webapp_session" {
		t.Fatalf("SessionCookieName = %q", cfg.SessionCookieName)
	}
	if cfg.FlashMaxAge != 60*time.Second {
		t.Fatalf("FlashMaxAge = %v, want 60s", cfg.FlashMaxAge)
	}
	if cfg.FlashMaxPerSession != 25 {
		t.Fatalf("FlashMaxPerSession = %d, want 25", cfg.FlashMaxPerSession)
	}
	if cfg.DashboardAPIURL != "https://dashboard.snapcraft.io" {
		t.Fatalf("DashboardAPIURL = %q", cfg.DashboardAPIURL)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("FLASH_MAX_AGE", "5m")
	t.Setenv("FLASH_MAX_PER_SESSION", "100")
	t.Setenv("DATABASE_URL", "postgres://localhost/webapp")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want :9090", cfg.BindAddr)
	}
	if cfg.FlashMaxAge != 5*time.Minute {
		t.Fatalf("FlashMaxAge = %v, want 5m", cfg.FlashMaxAge)
	}
	if cfg.FlashMaxPerSession != 100 {
		t.Fatalf("FlashMaxPerSession = %d, want 100", cfg.FlashMaxPerSession)
	}
	if cfg.DatabaseURL != "postgres://localhost/webapp" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("FLASH_MAX_PER_SESSION", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject FLASH_MAX_PER_SESSION=0")
	}

	setCoreEnvEmpty(t)
	t.Setenv("SESSION_TTL", "5s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject SESSION_TTL below 1m")
	}

	setCoreEnvEmpty(t)
	t.Setenv("FLASH_MAX_AGE", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject unparseable FLASH_MAX_AGE")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"SESSION_COOKIE_NAME",
		"SESSION_TTL",
		"SESSION_JANITOR_INTERVAL",
		"FLASH_MAX_AGE",
		"FLASH_MAX_PER_SESSION",
		"DATABASE_URL",
		"DASHBOARD_API_URL",
		"UPSTREAM_TIMEOUT",
		"GITHUB_CLIENT_ID",
		"GITHUB_CLIENT_SECRET",
		"GITHUB_AUTHORIZE_URL",
		"GITHUB_TOKEN_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
