package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/piresc/topup/internal/pkg/logger"
	"github.com/piresc/topup/internal/utils"
)

// Counter increments a windowed counter, creating it with ttl on first use
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimiterConfig contains configuration for the rate limiter
type RateLimiterConfig struct {
	Counter Counter
	Key     string        // Key prefix
	Limit   int           // Maximum number of requests per Period
	Period  time.Duration // Window length
}

// RateLimiterMiddleware limits requests per user (or per IP for anonymous
// callers) with a fixed window. Counter failures let the request through.
func RateLimiterMiddleware(config RateLimiterConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Limit <= 0 {
				return next(c)
			}

			identifier := UserIDFromContext(c)
			if identifier == "" {
				identifier = c.RealIP()
			}
			key := fmt.Sprintf("%s:%s", config.Key, identifier)

			count, err := config.Counter.IncrWithExpiry(c.Request().Context(), key, config.Period)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					logger.String("key", key),
					logger.Err(err))
				return next(c)
			}

			remaining := int64(config.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(config.Limit) {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(int64(config.Period.Seconds()), 10))
				return utils.TooManyRequestsResponse(c, "Rate limit exceeded")
			}

			return next(c)
		}
	}
}

// UserRateLimiter creates a per-user rate limiter under prefix
func UserRateLimiter(prefix string, limit int, period time.Duration, counter Counter) echo.MiddlewareFunc {
	return RateLimiterMiddleware(RateLimiterConfig{
		Counter: counter,
		Key:     prefix,
		Limit:   limit,
		Period:  period,
	})
}
