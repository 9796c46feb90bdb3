package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"coinsight/internal/service/ratelimit"
)

// RateLimitConfig bounds per-client request rates.
type RateLimitConfig struct {
	// Burst is the bucket capacity per client.
	Burst float64
	// PerSecond is the sustained refill rate per client.
	PerSecond float64
}

// RateLimit returns middleware that throttles requests per client IP
// using a token bucket. Rejected requests get 429.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 10
	}
	limiter := ratelimit.New()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP(), cfg.Burst, cfg.PerSecond) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
