package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"paygate/internal/domain"
)

// RateLimit limits requests per identity per minute using a Redis-backed
// sliding window. Shared state is required for correctness when several
// gateway instances run side by side; an in-process limiter would multiply
// the effective limit by the instance count.
func RateLimit(rdb *redis.Client, perMinute int) gin.HandlerFunc {
	limiter := redis_rate.NewLimiter(rdb)
	return func(c *gin.Context) {
		key := c.GetHeader(domain.HeaderDeveloperAddress)
		if key == "" {
			key = c.ClientIP()
		}
		res, err := limiter.Allow(c.Request.Context(), "ratelimit:"+key, redis_rate.PerMinute(perMinute))
		if err != nil {
			// Redis being down should not take the gateway with it.
			c.Next()
			return
		}
		if res.Allowed == 0 {
			c.Header("Retry-After", res.RetryAfter.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
