package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a per-key sliding window rate limiter backed by Redis.
// Each key is a sorted set of request members scored by their timestamp;
// a Lua script trims expired entries, counts, and admits atomically.
type Limiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// KEYS[1] key, ARGV: now (ms), window (ms), limit, member.
// Returns 1 when the request is admitted, 0 when denied.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window + 1000)
    return 1
end
return 0
`)

// New creates a limiter with the given window. A non-positive window
// defaults to one second.
func New(redisClient *redis.Client, window time.Duration, logger *slog.Logger) *Limiter {
	if window <= 0 {
		window = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      window,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("rl:ingest:%s", key)
}

// Allow reports whether another request for key fits within limit per
// window. A limit of zero or less disables limiting. Redis errors fail open.
func (rl *Limiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(key)},
		now, rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", limit)
		return false
	}

	return true
}
