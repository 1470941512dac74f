package middleware

import (
	"fmt"
	"time"

	"gradehub/internal/common/ratelimit"
	"gradehub/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitPolicy holds fixed-window limits for one route group.
type RateLimitPolicy struct {
	Window time.Duration `yaml:"window"`
	IPMax  int           `yaml:"ipMax"`
}

// RateLimitMiddleware enforces per-IP rate limiting across the router,
// mirroring a global fixed-window limiter in front of every endpoint.
func RateLimitMiddleware(limiter *ratelimit.Limiter, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || policy.IPMax <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("gradehub:rate:ip:%s", c.ClientIP())
		if err := limiter.Allow(c.Request.Context(), key, policy.IPMax, policy.Window); err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
