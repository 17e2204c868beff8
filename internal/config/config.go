// Package config centralizes every environment-variable-backed setting
// named in the external-interfaces configuration table, mirroring how
// cmd/server/main.go (teacher) declares cli.Flag{EnvVars: ...} entries but
// collecting the results into one struct the rest of the program depends
// on instead of threading *cli.Context everywhere.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"forexcopilot/internal/kvstore"
	"forexcopilot/internal/ops"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Env  string
	Host string
	Port int

	ForexStreamEnabled  bool
	ForexStreamInterval time.Duration
	ForexUpstreamURL    string

	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration
	WSStaleSeconds      int

	QueueEnabled bool
	QueueBackend string // "memory" | "shared"
	QueueWorkers int
	QueueMaxSize int

	KVStore kvstore.Config

	RateLimitEnabled       bool
	RateLimitMax           int
	RateLimitWindowSeconds int
	AuthRateLimitEnabled   bool
	AuthRateLimitMax       int
	AuthRateLimitWindow    int

	CORSOrigins        []string
	CORSAllowAll       bool
	CORSMaxAgeSeconds  int
	AllowedHosts       []string
	EnableCSP          bool
	EnableHSTS         bool
	MaxRequestBodyByte int64

	JWTSecret string
	APIPrefix string

	OpsThresholds ops.Thresholds
	OpsWebhook    ops.WebhookConfig
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDurationSeconds(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(n) * time.Second
}

func envList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromEnv resolves a Config from the process environment, applying the
// same defaults §6 documents for each key.
func FromEnv() Config {
	apiPrefix := envString("API_PREFIX", "/api")

	return Config{
		Env:  envString("FOREX_ENV", "production"),
		Host: envString("FOREX_HOST", "0.0.0.0"),
		Port: envInt("FOREX_PORT", 8080),

		ForexStreamEnabled:  envBool("FOREX_STREAM_ENABLED", true),
		ForexStreamInterval: envDurationSeconds("FOREX_STREAM_INTERVAL", 10*time.Second),
		ForexUpstreamURL:    envString("FOREX_UPSTREAM_URL", ""),

		WSHeartbeatInterval: envDurationSeconds("WS_HEARTBEAT_INTERVAL", 20*time.Second),
		WSHeartbeatTimeout:  envDurationSeconds("WS_HEARTBEAT_TIMEOUT", 60*time.Second),
		WSStaleSeconds:      envInt("OPS_ALERT_WS_STALE_SECONDS", 120),

		QueueEnabled: envBool("TASK_QUEUE_ENABLED", true),
		QueueBackend: envString("TASK_QUEUE_BACKEND", "memory"),
		QueueWorkers: envInt("TASK_QUEUE_WORKERS", 4),
		QueueMaxSize: envInt("TASK_QUEUE_MAX_SIZE", 500),

		KVStore: kvstore.Config{
			Enabled:               envBool("KV_ENABLED", false),
			URL:                   envString("KV_URL", "redis://localhost:6379/0"),
			ConnectTimeoutSeconds: envFloat("KV_CONNECT_TIMEOUT_SECONDS", 2),
			SocketTimeoutSeconds:  envFloat("KV_SOCKET_TIMEOUT_SECONDS", 2),
			RetrySeconds:          envFloat("KV_RETRY_SECONDS", 5),
		},

		RateLimitEnabled:       envBool("RATE_LIMIT_ENABLED", true),
		RateLimitMax:           envInt("RATE_LIMIT_MAX", 120),
		RateLimitWindowSeconds: envInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		AuthRateLimitEnabled:   envBool("AUTH_RATE_LIMIT_ENABLED", true),
		AuthRateLimitMax:       envInt("AUTH_RATE_LIMIT_MAX", 20),
		AuthRateLimitWindow:    envInt("AUTH_RATE_LIMIT_WINDOW_SECONDS", 60),

		CORSOrigins:        envList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		CORSAllowAll:       envBool("CORS_ALLOW_ALL", false),
		CORSMaxAgeSeconds:  envInt("CORS_MAX_AGE_SECONDS", 300),
		AllowedHosts:       envList("ALLOWED_HOSTS", nil),
		EnableCSP:          envBool("ENABLE_CSP", true),
		EnableHSTS:         envBool("ENABLE_HSTS", false),
		MaxRequestBodyByte: int64(envInt("MAX_REQUEST_BODY_BYTES", 1<<20)),

		JWTSecret: envString("JWT_SECRET", ""),
		APIPrefix: apiPrefix,

		OpsThresholds: ops.Thresholds{
			QueueDepthWarn:         envInt("OPS_ALERT_QUEUE_DEPTH_WARN", 80),
			QueueDepthCrit:         envInt("OPS_ALERT_QUEUE_DEPTH_CRIT", 150),
			QueueFailedWarn:        envInt("OPS_ALERT_QUEUE_FAILED_WARN", 1),
			WSStaleCountWarn:       envInt("OPS_ALERT_WS_STALE_COUNT_WARN", 1),
			ForexFailureStreakWarn: envInt("OPS_ALERT_FOREX_FAILURE_STREAK_WARN", 3),
			ForexRetryWarnSeconds:  envFloat("OPS_ALERT_FOREX_RETRY_WARN_SECONDS", 20),
		},
		OpsWebhook: ops.WebhookConfig{
			URL:            envString("OPS_ALERT_WEBHOOK_URL", ""),
			Provider:       envString("OPS_ALERT_WEBHOOK_PROVIDER", ""),
			MinSeverity:    ops.Severity(envString("OPS_ALERT_WEBHOOK_MIN_SEVERITY", string(ops.SeverityWarning))),
			TimeoutSeconds: envFloat("OPS_ALERT_WEBHOOK_TIMEOUT_SECONDS", 5),
			AuthHeader:     envString("OPS_ALERT_WEBHOOK_AUTH_HEADER", ""),
			AuthValue:      envString("OPS_ALERT_WEBHOOK_AUTH_VALUE", ""),
		},
	}
}
