package cache

import (
	"context"
	"strings"
	"time"

	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/logger"
)

// NewFromConfig returns nil when caching is disabled, which is the default.
// An unreachable redis falls back to the in-process cache.
func NewFromConfig(cfg config.Config) Cache {
	backend := strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	switch backend {
	case "", "none", "disabled", "off":
		return nil
	case "memory":
		return NewMemoryCache()
	case "redis":
		addr := strings.TrimSpace(cfg.RedisAddr)
		if addr == "" {
			logger.Warn("REDIS_ADDR is empty, using memory cache")
			return NewMemoryCache()
		}
		rc, err := NewRedisCache(RedisOptions{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisKeyPrefix,
		})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = rc.Ping(ctx)
			cancel()
			if err != nil {
				_ = rc.Close()
			}
		}
		if err != nil {
			logger.Warn("redis cache unavailable, using memory cache", "addr", addr, "err", err)
			return NewMemoryCache()
		}
		return rc
	default:
		logger.Warn("unknown CACHE_BACKEND, caching disabled", "backend", backend)
		return nil
	}
}

// TTL is CACHE_DEFAULT_TTL_SEC as a duration.
func TTL(cfg config.Config) time.Duration {
	if cfg.CacheDefaultTTLSec <= 0 {
		return 0
	}
	return time.Duration(cfg.CacheDefaultTTLSec) * time.Second
}
