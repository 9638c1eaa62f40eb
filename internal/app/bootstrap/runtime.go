package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymind/voicegate/internal/bridge"
	appconfig "github.com/relaymind/voicegate/internal/config"
	"github.com/relaymind/voicegate/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildClaimGuard returns the cross-process bridge guard when Redis is
// available, falling back to a single-process guard otherwise. The fallback
// keeps local development working but cannot dedupe across replicas.
func BuildClaimGuard(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) bridge.Guard {
	if redisClient != nil {
		return bridge.NewRedisGuard(redisClient, ttl, logger)
	}
	if logger != nil {
		logger.Warn("redis not configured, bridge dedupe is process-local")
	}
	return bridge.NewMemoryGuard(ttl)
}
