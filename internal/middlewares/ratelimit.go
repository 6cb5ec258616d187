package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit limits each caller to limitPerMinute requests per minute.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
func (m *MiddlewareManager) RateLimit(limitPerMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.rateLimiter == nil || limitPerMinute <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		var key string
		if userID, exists := c.Get(ContextUserID); exists {
			key = fmt.Sprintf("api:user:%v", userID)
		} else {
			key = fmt.Sprintf("api:ip:%s", c.ClientIP())
		}

		allowed, err := m.rateLimiter.Allow(ctx, key, int64(limitPerMinute), time.Minute)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed",
				zap.Error(err),
				zap.String("key", key),
			)
			// the limiter already decided whether to fail open
			if !allowed {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
				return
			}
			c.Next()
			return
		}

		if !allowed {
			remaining, _ := m.rateLimiter.Remaining(ctx, key, int64(limitPerMinute), time.Minute)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
				"remaining":   remaining,
			})
			return
		}

		c.Next()
	}
}

// MaxConcurrencyMiddleware 最大并发控制中间件
// 限制同时处理的请求数量, 超出直接返回 503
func MaxConcurrencyMiddleware(maxConcurrent int) gin.HandlerFunc {
	if maxConcurrent <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	// 使用带缓冲的 channel 作为信号量
	sem := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Service Unavailable - Too many concurrent requests",
			})
		}
	}
}
