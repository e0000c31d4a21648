package redis

import (
	"fmt"

	"github.com/leafsii/kvhelper/pkg/kv"
)

func init() {
	kv.RegisterBackend(kv.BackendRedis, func(cfg kv.Config) (kv.Store, error) {
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
		}

		opt, err := ParseOptions(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if cfg.DialTimeout > 0 {
			opt.DialTimeout = cfg.DialTimeout
		}
		if cfg.ReadTimeout > 0 {
			opt.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			opt.WriteTimeout = cfg.WriteTimeout
		}
		return NewWithOptions(opt)
	})
}
