package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/pageza/foodgram/backend/internal/logger"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	IsAllowed(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time, err error)
	Config() RateLimitConfig
}

// RateLimiter handles fixed-window rate limiting using Redis
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
	}
}

func (rl *RateLimiter) Config() RateLimitConfig {
	return rl.config
}

// IsAllowed checks if a request from the given key is allowed
func (rl *RateLimiter) IsAllowed(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()
	windowStart := now.Truncate(rl.config.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incrCmd.Val())
	remaining := rl.config.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.config.Limit, remaining, windowStart.Add(rl.config.Window), nil
}

// LocalRateLimiter is the in-process token bucket used when Redis is not
// configured. Limits are per process.
type LocalRateLimiter struct {
	config RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*localEntry
	swept    time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{
		config:   config,
		limiters: make(map[string]*localEntry),
		swept:    time.Now(),
	}
}

func (rl *LocalRateLimiter) Config() RateLimitConfig {
	return rl.config
}

// IsAllowed takes a token from key's bucket. The bucket holds Limit tokens
// and refills completely over one Window.
func (rl *LocalRateLimiter) IsAllowed(_ context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()
	every := rl.config.Window / time.Duration(rl.config.Limit)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.swept) > rl.config.Window {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.config.Window {
				delete(rl.limiters, k)
			}
		}
		rl.swept = now
	}

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rate.Every(every), rl.config.Limit)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))
	reset := now
	if tokens < 1 {
		reset = now.Add(time.Duration((1 - tokens) * float64(every)))
	}
	return allowed, remaining, reset, nil
}

// NewRecipeCreationRateLimiter limits recipe creation to limit per hour per
// user, in Redis when a client is available.
func NewRecipeCreationRateLimiter(redisClient *redis.Client, limit int) Limiter {
	config := RateLimitConfig{
		Window:    time.Hour,
		Limit:     limit,
		KeyPrefix: "rate_limit:recipe_creation",
	}
	if redisClient == nil {
		return NewLocalRateLimiter(config)
	}
	return NewRateLimiter(redisClient, config)
}

// RateLimitMiddleware enforces limiter per authenticated user, falling back
// to the client IP for anonymous callers.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	config := limiter.Config()
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := UserID(c); ok {
			key = "user:" + strconv.FormatUint(uint64(id), 10)
		}

		allowed, remaining, resetTime, err := limiter.IsAllowed(c.Request.Context(), key)
		if err != nil {
			// Fail open.
			logger.Warn("rate limit check failed", "limiter", config.KeyPrefix, "error", err)
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(time.Until(resetTime).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			RateLimitRejections.WithLabelValues(config.KeyPrefix).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": fmt.Sprintf("Request was throttled. Expected available in %d seconds.", retryAfter),
			})
			return
		}

		c.Next()
	}
}
