package services

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	visitStatsKey = "shopaudit:visit_stats"
	visitStatsTTL = 30 * time.Second
)

// StatsCache keeps the visit stats payload in Redis so dashboard polling
// does not hammer Postgres. Nil-safe: every method no-ops when Redis is
// not configured, so the API works identically without it.
type StatsCache struct {
	rdb *redis.Client
}

// OpenRedisFromEnv connects to REDIS_URL, or returns nil when unset.
func OpenRedisFromEnv() *redis.Client {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("ℹ️  REDIS_URL not set, stats caching disabled")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("⚠️ Invalid REDIS_URL, stats caching disabled: %v", err)
		return nil
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unreachable, stats caching disabled: %v", err)
		return nil
	}

	log.Println("✅ Redis connected, stats caching enabled")
	return rdb
}

func NewStatsCache(rdb *redis.Client) *StatsCache {
	return &StatsCache{rdb: rdb}
}

// GetVisitStats returns the cached stats payload, or ok=false on miss.
func (c *StatsCache) GetVisitStats(ctx context.Context) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, visitStatsKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("⚠️ Redis get failed: %v", err)
		return nil, false
	}
	return data, true
}

// SetVisitStats stores the stats payload with a short TTL.
func (c *StatsCache) SetVisitStats(ctx context.Context, data []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, visitStatsKey, data, visitStatsTTL).Err(); err != nil {
		log.Printf("⚠️ Redis set failed: %v", err)
	}
}

// Invalidate drops the cached stats after a visit lands.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, visitStatsKey).Err(); err != nil {
		log.Printf("⚠️ Redis del failed: %v", err)
	}
}
