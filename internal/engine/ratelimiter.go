package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether another request for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimiter is a sliding-window limiter shared across instances through
// Redis. Each key is a sorted set of request timestamps; a Lua script
// trims, counts and inserts atomically.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	limit       int
	window      time.Duration
}

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
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
else
    return 0
end
`)

// NewRateLimiter allows limit requests per window for each key. A limit of
// zero or less disables limiting.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		limit:       limit,
		window:      window,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("rl:%s", key)
}

// Allow fails open when Redis is unavailable.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(key)},
		now, rl.window.Milliseconds(), rl.limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", rl.limit)
		return false
	}
	return true
}

// LocalLimiter is the single-process fallback used when Redis is not
// configured: one token bucket per key.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    int
	window   time.Duration
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		window:   window,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

var (
	_ Limiter = (*RateLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
)
