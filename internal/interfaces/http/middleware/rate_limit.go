// internal/interfaces/http/middleware/rate_limit.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/inventory-ledger/internal/config"
)

// RateLimit implements a fixed-window limit per client IP in redis.
// Without a redis client every request passes.
func RateLimit(cfg *config.Config, redisClient *redis.Client, log logrus.FieldLogger) gin.HandlerFunc {
	limit := cfg.Security.RateLimitPerMinute

	return func(c *gin.Context) {
		if redisClient == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s", c.ClientIP())

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		current, err := redisClient.Get(ctx, key).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			// redis down: fail open
			log.WithError(err).Warn("rate limit check failed")
			c.Next()
			return
		}

		if current >= limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := redisClient.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			log.WithError(err).Warn("rate limit counter update failed")
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-current-1))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

		c.Next()
	}
}
