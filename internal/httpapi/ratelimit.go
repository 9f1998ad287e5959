package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type windowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// RateLimiter is a fixed-window counter per caller kept in Redis.
// It fails open when Redis is unavailable.
type RateLimiter struct {
	counter   windowCounter
	limit     int
	window    time.Duration
	keyPrefix string
	logger    *zap.Logger
}

func NewRateLimiter(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{counter: client, limit: limit, window: window, keyPrefix: keyPrefix, logger: logger}
}

// Middleware counts authenticated callers by tenant and user, anonymous ones by client IP.
func (limiter *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if limiter == nil || limiter.limit <= 0 {
			ctx.Next()
			return
		}
		key := limiter.keyPrefix + ":" + callerKey(ctx)
		requestCtx := ctx.Request.Context()
		count, err := limiter.counter.Incr(requestCtx, key).Result()
		if err != nil {
			limiter.logger.Warn("rate limiter unavailable", zap.Error(err))
			ctx.Next()
			return
		}
		if count == 1 {
			limiter.counter.Expire(requestCtx, key, limiter.window)
		}
		ttl, err := limiter.counter.TTL(requestCtx, key).Result()
		if err != nil || ttl < 0 {
			ttl = limiter.window
		}
		resetSeconds := strconv.Itoa(int(ttl.Round(time.Second).Seconds()))
		ctx.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(max(limiter.limit-int(count), 0)))
		ctx.Header("X-RateLimit-Reset", resetSeconds)
		if count > int64(limiter.limit) {
			ctx.Header("Retry-After", resetSeconds)
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("rate_limited", "too many requests, retry in "+ttl.Round(time.Second).String()))
			return
		}
		ctx.Next()
	}
}

func callerKey(ctx *gin.Context) string {
	if claims := getClaims(ctx); claims != nil {
		return "uid:" + claims.TenantID + ":" + claims.UserID()
	}
	return "ip:" + ctx.ClientIP()
}
