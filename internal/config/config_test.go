package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/kvhelper/pkg/kv"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://127.0.0.1:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, 5*time.Second, cfg.Store.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.Store.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Store.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Store.JanitorInterval)
	assert.Equal(t, 600, cfg.Security.RateLimitRPM)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KVH_ENV", "prod")
	t.Setenv("KVH_BACKEND", "Memory")
	t.Setenv("KVH_JANITOR_INTERVAL", "1m")
	t.Setenv("KVH_RATE_LIMIT_RPM", "60")
	t.Setenv("KVH_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, time.Minute, cfg.Store.JanitorInterval)
	assert.Equal(t, 60, cfg.Security.RateLimitRPM)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)

	kvCfg := cfg.KV()
	assert.Equal(t, kv.BackendMemory, kvCfg.Backend)
	assert.Equal(t, time.Minute, kvCfg.JanitorInterval)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Unknown backend", "KVH_BACKEND", "etcd"},
		{"Empty redis URL", "KVH_REDIS_URL", ""},
		{"Zero rate limit", "KVH_RATE_LIMIT_RPM", "0"},
		{"Negative janitor", "KVH_JANITOR_INTERVAL", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := load(v)
			assert.Error(t, err)
		})
	}
}
