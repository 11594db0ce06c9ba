package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// InsurerLimiter enforces a per-insurer sliding window on submission
// dispatch. Insurer rails throttle aggressively, so the queue defers a job
// rather than burn an attempt on a rate-limit rejection. Backed by a Redis
// sorted set updated atomically by a Lua script.
type InsurerLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// Lua script for atomic sliding window limiting:
// drop entries older than the window, count the remainder, and either admit
// this dispatch (adding it) or reject it.
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
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

func NewInsurerLimiter(redisClient *redis.Client, logger *slog.Logger) *InsurerLimiter {
	return &InsurerLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(insurerID string) string {
	return fmt.Sprintf("rl:insurer:%s", insurerID)
}

// Allow checks whether a dispatch to this insurer fits in the current window.
// Fails open if Redis is unavailable.
func (rl *InsurerLimiter) Allow(ctx context.Context, insurerID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	key := rlKey(insurerID)
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{key},
		now, rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "insurer_id", insurerID)
		return true
	}

	if result == 0 {
		rl.logger.Debug("insurer dispatch rate limited",
			"insurer_id", insurerID,
			"limit", limit,
		)
		return false
	}

	return true
}
