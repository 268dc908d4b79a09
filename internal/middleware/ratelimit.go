// Package middleware provides HTTP middleware for the Gatehouse Echo server.
// ratelimit.go implements a per-IP fixed-window rate limiter backed by
// Redis, applied to the credential endpoints (login, signup, password
// reset) where brute-force pressure concentrates.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per (scope, IP) window in Redis, so limits
// hold across restarts and across replicas sharing the same Redis.
type RateLimiter struct {
	redis *redis.Client
}

// NewRateLimiter creates a rate limiter on the given Redis client.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{redis: rdb}
}

// Limit returns middleware allowing maxRequests per IP within window for
// the named scope. Returns 429 when exceeded. If Redis is unreachable the
// request is allowed through: losing rate limiting briefly beats turning
// every login into a 500.
func (rl *RateLimiter) Limit(scope string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := fmt.Sprintf("ratelimit:%s:%s", scope, c.RealIP())

			count, err := rl.redis.Incr(ctx, key).Result()
			if err != nil {
				slog.Warn("rate limiter unavailable",
					slog.String("scope", scope),
					slog.Any("error", err),
				)
				return next(c)
			}

			// First hit in the window owns setting the expiry.
			if count == 1 {
				if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
					slog.Warn("failed to set rate limit window",
						slog.String("scope", scope),
						slog.Any("error", err),
					)
				}
			}

			if count > int64(maxRequests) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}

			return next(c)
		}
	}
}
