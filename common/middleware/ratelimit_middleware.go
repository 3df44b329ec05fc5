package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/adamstavely/cautious-lamp-sub001/common/ratelimit"
)

// KeyFunc picks the rate limit bucket for a request. An empty key skips limiting.
type KeyFunc func(c echo.Context) string

// RateLimitMiddleware limits requests per key.
// Only the listed methods count; reads pass through untouched.
// Fails open when the limiter itself errors.
func RateLimitMiddleware(limiter ratelimit.Limiter, keyFunc KeyFunc, limit int64, window time.Duration, methods ...string) echo.MiddlewareFunc {
	counted := make(map[string]bool, len(methods))
	for _, m := range methods {
		counted[m] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(counted) > 0 && !counted[c.Request().Method] {
				return next(c)
			}

			key := keyFunc(c)
			if key == "" {
				return next(c)
			}

			result, err := limiter.Check(c.Request().Context(), key, limit, window)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"key":                 key,
						"limit":               result.Limit,
						"window":              window.String(),
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
