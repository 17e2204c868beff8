package config

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Env != "production" {
		t.Fatalf("expected default env production, got %s", cfg.Env)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.QueueBackend != "memory" {
		t.Fatalf("expected default queue backend memory, got %s", cfg.QueueBackend)
	}
	if cfg.OpsThresholds.QueueDepthWarn != 80 {
		t.Fatalf("expected default queue depth warn threshold 80, got %d", cfg.OpsThresholds.QueueDepthWarn)
	}
}

func TestFromEnv_RespectsOverrides(t *testing.T) {
	t.Setenv("FOREX_ENV", "development")
	t.Setenv("FOREX_PORT", "9090")
	t.Setenv("TASK_QUEUE_BACKEND", "shared")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg := FromEnv()
	if cfg.Env != "development" {
		t.Fatalf("expected overridden env development, got %s", cfg.Env)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected overridden port 9090, got %d", cfg.Port)
	}
	if cfg.QueueBackend != "shared" {
		t.Fatalf("expected overridden queue backend shared, got %s", cfg.QueueBackend)
	}
	if cfg.RateLimitMax != 5 {
		t.Fatalf("expected overridden rate limit max 5, got %d", cfg.RateLimitMax)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.com" {
		t.Fatalf("expected a parsed, trimmed CORS origin list, got %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("FOREX_PORT", "not-a-number")
	cfg := FromEnv()
	if cfg.Port != 8080 {
		t.Fatalf("expected an unparseable value to fall back to the default, got %d", cfg.Port)
	}
}
