package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter defines the interface for rate limiting operations
type Limiter interface {
	// Allow checks if a request should be allowed based on rate limits
	// Returns true if allowed, false if rate limit exceeded
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)

	// AllowN checks if N requests should be allowed
	AllowN(ctx context.Context, key string, n, limit int64, window time.Duration) (bool, error)

	// Remaining returns the number of remaining requests in the current window
	Remaining(ctx context.Context, key string, limit int64, window time.Duration) (int64, error)
}

// WindowLimiter counts requests per fixed time window in Redis.
// Each window gets its own key, so counters from different windows never mix.
type WindowLimiter struct {
	redisClient *redis.Client
	logger      *zap.Logger
	fallback    bool // If true, allow requests when Redis is unavailable (fail-open)
	now         func() time.Time
}

// NewWindowLimiter creates a new fixed window rate limiter
//
// Parameters:
//   - redisClient: Redis client for storing rate limit state
//   - logger: Logger for recording rate limit events
//   - fallback: If true, allows requests when Redis fails (fail-open strategy)
func NewWindowLimiter(redisClient *redis.Client, logger *zap.Logger, fallback bool) *WindowLimiter {
	return &WindowLimiter{
		redisClient: redisClient,
		logger:      logger,
		fallback:    fallback,
		now:         time.Now,
	}
}

// Allow checks if a single request should be allowed
func (l *WindowLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	return l.AllowN(ctx, key, 1, limit, window)
}

// AllowN consumes n units of the current window and reports whether the
// window is still within limit. It uses INCRBY and EXPIRE in one pipeline.
func (l *WindowLimiter) AllowN(ctx context.Context, key string, n, limit int64, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	bucketKey := l.bucketKey(key, window)

	pipe := l.redisClient.TxPipeline()
	incrCmd := pipe.IncrBy(ctx, bucketKey, n)
	pipe.Expire(ctx, bucketKey, window+time.Second) // Add 1 second buffer

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed",
			zap.String("key", bucketKey),
			zap.Error(err),
		)
		if l.fallback {
			l.logger.Warn("rate limit check failed, allowing request (fail-open)",
				zap.String("key", key),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := incrCmd.Val()
	allowed := count <= limit
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int64("limit", limit),
			zap.Duration("window", window),
		)
	}
	return allowed, nil
}

// Remaining returns the number of requests still allowed in the current window
func (l *WindowLimiter) Remaining(ctx context.Context, key string, limit int64, window time.Duration) (int64, error) {
	count, err := l.redisClient.Get(ctx, l.bucketKey(key, window)).Int64()
	if errors.Is(err, redis.Nil) {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining requests: %w", err)
	}
	return max(limit-count, 0), nil
}

// bucketKey 按窗口长度对齐时间, 同一窗口内的请求落在同一个 key
func (l *WindowLimiter) bucketKey(key string, window time.Duration) string {
	bucket := l.now().UnixNano() / int64(window)
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}
