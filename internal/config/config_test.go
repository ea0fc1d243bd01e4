package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":    "redis://localhost:6379/0",
		"DATABASE_URL": "",
		"SAVED_STORE":  "",
		"SESSION_TTL":  "",
		"PORT":         "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, config.SavedStoreRedis, cfg.SavedStore)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
	require.Equal(t, "30-M", cfg.RateLimitPromo)
	require.Equal(t, 3, cfg.OutboundMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"REDIS_URL":            "redis://localhost:6379/0",
		"DATABASE_URL":         "postgres://app@localhost/configurator",
		"SAVED_STORE":          "",
		"PORT":                 ":9000",
		"SESSION_TTL":          "2h",
		"LOCK_TTL":             "bogus",
		"CURRENCY_CODE":        "eur",
		"SHARE_BASE_URL":       "https://shop.example/",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"OBS_ENABLE_TRACING":   "yes",
	})
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, config.SavedStorePostgres, cfg.SavedStore, "a database enables the postgres store")
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Second, cfg.LockTTL, "invalid durations fall back")
	require.Equal(t, "EUR", cfg.CurrencyCode)
	require.Equal(t, "https://shop.example", cfg.ShareBaseURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.TracingEnabled)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing redis", map[string]string{"REDIS_URL": ""}},
		{"postgres without database", map[string]string{"REDIS_URL": "redis://x", "SAVED_STORE": "postgres", "DATABASE_URL": ""}},
		{"unknown store", map[string]string{"REDIS_URL": "redis://x", "SAVED_STORE": "s3"}},
		{"production without share secret", map[string]string{"REDIS_URL": "redis://x", "SAVED_STORE": "redis", "APP_ENV": "production", "SHARE_SECRET": ""}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadForTests(tc.env)
			require.Error(t, err)
		})
	}
}
