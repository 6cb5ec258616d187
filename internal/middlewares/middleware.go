package middlewares

import (
	"github.com/Gopher0727/LockDeal/middleware/jwt"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
	"github.com/Gopher0727/LockDeal/utils/ratelimit"
)

// Keys set on the gin context by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Request-ID"

type MiddlewareManager struct {
	tokenManager *jwt.TokenManager
	rateLimiter  ratelimit.Limiter
	logger       *logger.Logger
}

// NewMiddlewareManager creates the shared middleware set. rateLimiter may be nil
// when Redis is disabled; RateLimit then lets every request through.
func NewMiddlewareManager(tokenManager *jwt.TokenManager, rateLimiter ratelimit.Limiter, logger *logger.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		tokenManager: tokenManager,
		rateLimiter:  rateLimiter,
		logger:       logger,
	}
}
