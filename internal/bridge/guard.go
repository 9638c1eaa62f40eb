package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaymind/voicegate/pkg/logging"
)

const claimKeyPrefix = "voicegate:bridge:"

// Guard grants the right to bridge a call at most once per call id.
type Guard interface {
	Claim(ctx context.Context, callID string) bool
}

// RedisGuard enforces at-most-once bridging across processes with a SETNX
// claim per call id. The TTL bounds how long a crashed claimant can block a
// retry for the same call.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisGuard {
	if client == nil {
		panic("bridge: redis client required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisGuard{client: client, ttl: ttl, logger: logger.Named("bridge_guard")}
}

// Claim returns true exactly once per call id within the TTL window. A Redis
// failure claims anyway: answering a call twice degrades to a failed provider
// action, while refusing to bridge leaves the caller in silence.
func (g *RedisGuard) Claim(ctx context.Context, callID string) bool {
	ok, err := g.client.SetNX(ctx, claimKeyPrefix+callID, 1, g.ttl).Result()
	if err != nil {
		g.logger.Warn("bridge claim check failed, proceeding", "call_id", callID, "error", err)
		return true
	}
	return ok
}

// MemoryGuard is the single-process fallback when Redis is not configured.
type MemoryGuard struct {
	mu      sync.Mutex
	claimed map[string]time.Time
	ttl     time.Duration
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryGuard{claimed: make(map[string]time.Time), ttl: ttl}
}

func (g *MemoryGuard) Claim(_ context.Context, callID string) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, at := range g.claimed {
		if now.Sub(at) > g.ttl {
			delete(g.claimed, id)
		}
	}
	if _, ok := g.claimed[callID]; ok {
		return false
	}
	g.claimed[callID] = now
	return true
}
