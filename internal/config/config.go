package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Saved configuration backends.
const (
	SavedStorePostgres = "postgres"
	SavedStoreRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	CatalogSourceURL       string
	CatalogRefreshInterval time.Duration
	CatalogCacheTTL        time.Duration
	PricingTablesPath      string
	CurrencyCode           string
	Locale                 string

	SessionTTL       time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	ShareSecret      string
	ShareBaseURL     string
	SavedStore       string
	IdempotencyTTL   time.Duration
	RateLimitPromo   string

	OutboundTimeout     time.Duration
	OutboundMaxAttempts int
	OutboundBackoffBase time.Duration
	OutboundJitterPct   float64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	ShutdownGracePeriod time.Duration
	ReadHeaderTimeout   time.Duration
	MaxBodyBytes        int64
	SecureHeaders       bool
	HSTSMaxAge          int

	LogFormat            string
	LogLevel             string
	MetricsEnabled       bool
	MetricsNamespace     string
	MetricsBucketsMS     string
	TracingEnabled       bool
	TracingExporter      string
	OTLPEndpoint         string
	TracingSamplingRatio float64
	PprofEnabled         bool
	PprofUser            string
	PprofPass            string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CatalogSourceURL:       strings.TrimSpace(k.String("CATALOG_SOURCE_URL")),
		CatalogRefreshInterval: parseDuration(k.String("CATALOG_REFRESH_INTERVAL"), "5m"),
		CatalogCacheTTL:        parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		PricingTablesPath:      strings.TrimSpace(k.String("PRICING_TABLES_PATH")),
		CurrencyCode:           strings.ToUpper(strings.TrimSpace(k.String("CURRENCY_CODE"))),
		Locale:                 strings.TrimSpace(k.String("LOCALE")),

		SessionTTL:       parseDuration(k.String("SESSION_TTL"), "24h"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		ShareSecret:      k.String("SHARE_SECRET"),
		ShareBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("SHARE_BASE_URL")), "/"),
		SavedStore:       strings.ToLower(strings.TrimSpace(k.String("SAVED_STORE"))),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitPromo:   valueOrDefault(k.String("RATE_LIMIT_PROMO"), "30-M"),

		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "3s"),
		OutboundMaxAttempts: parseInt(k.String("OUTBOUND_MAX_ATTEMPTS"), 3),
		OutboundBackoffBase: parseDuration(k.String("OUTBOUND_BACKOFF_BASE"), "200ms"),
		OutboundJitterPct:   parseFloat(k.String("OUTBOUND_JITTER_PCT"), 0.2),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		ShutdownGracePeriod: parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "15s"),
		ReadHeaderTimeout:   parseDuration(k.String("HTTP_READ_HEADER_TIMEOUT"), "5s"),
		MaxBodyBytes:        int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 64<<10)),
		SecureHeaders:       parseBool(k.String("SECURE_HEADERS"), true),
		HSTSMaxAge:          parseInt(k.String("SECURE_HSTS_MAX_AGE"), 31536000),

		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:       parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "configurator"),
		MetricsBucketsMS:     k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:       parseBool(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:         parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SavedStore == "" {
		cfg.SavedStore = SavedStoreRedis
		if cfg.DatabaseURL != "" {
			cfg.SavedStore = SavedStorePostgres
		}
	}
	switch cfg.SavedStore {
	case SavedStoreRedis:
	case SavedStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when SAVED_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("SAVED_STORE must be %q or %q, got %q", SavedStorePostgres, SavedStoreRedis, cfg.SavedStore)
	}
	if cfg.AppEnv == "production" && cfg.ShareSecret == "" {
		return nil, errors.New("SHARE_SECRET is required in production")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return n
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return f
	}
	return fallback
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
