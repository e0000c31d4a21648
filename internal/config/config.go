package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/leafsii/kvhelper/pkg/kv"
)

type Config struct {
	Env      string `mapstructure:"KVH_ENV"`
	HTTPAddr string `mapstructure:"KVH_HTTP_ADDR"`

	Store    StoreConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type StoreConfig struct {
	Backend         string        `mapstructure:"KVH_BACKEND"` // "redis", "memory"
	RedisURL        string        `mapstructure:"KVH_REDIS_URL"`
	DialTimeout     time.Duration `mapstructure:"KVH_REDIS_DIAL_TIMEOUT"`
	ReadTimeout     time.Duration `mapstructure:"KVH_REDIS_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"KVH_REDIS_WRITE_TIMEOUT"`
	JanitorInterval time.Duration `mapstructure:"KVH_JANITOR_INTERVAL"` // memory backend only
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"KVH_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"KVH_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // ignore errors; env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("KVH_ENV", "dev")
	v.SetDefault("KVH_HTTP_ADDR", ":8080")
	v.SetDefault("KVH_BACKEND", string(kv.BackendRedis))
	v.SetDefault("KVH_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("KVH_REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("KVH_REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("KVH_REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("KVH_JANITOR_INTERVAL", "30s")
	v.SetDefault("KVH_RATE_LIMIT_RPM", 600)
	v.SetDefault("KVH_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Handle array parsing for comma-separated values
	if origins := v.GetString("KVH_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("KVH_CORS_ALLOWED_ORIGINS", splitList(origins))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("KVH_HTTP_ADDR is required")
	}
	switch kv.Backend(c.Store.Backend) {
	case kv.BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("KVH_REDIS_URL is required when KVH_BACKEND is redis")
		}
	case kv.BackendMemory:
	default:
		return fmt.Errorf("invalid KVH_BACKEND %q (must be redis or memory)", c.Store.Backend)
	}
	if c.Store.DialTimeout < 0 || c.Store.ReadTimeout < 0 || c.Store.WriteTimeout < 0 {
		return fmt.Errorf("redis timeouts must not be negative")
	}
	if c.Store.JanitorInterval < 0 {
		return fmt.Errorf("KVH_JANITOR_INTERVAL must not be negative")
	}
	if c.Security.RateLimitRPM <= 0 {
		return fmt.Errorf("KVH_RATE_LIMIT_RPM must be positive, got %d", c.Security.RateLimitRPM)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// KV converts the store settings into a kv.Config
func (c *Config) KV() kv.Config {
	return kv.Config{
		Backend:         kv.Backend(c.Store.Backend),
		RedisURL:        c.Store.RedisURL,
		DialTimeout:     c.Store.DialTimeout,
		ReadTimeout:     c.Store.ReadTimeout,
		WriteTimeout:    c.Store.WriteTimeout,
		JanitorInterval: c.Store.JanitorInterval,
	}
}
