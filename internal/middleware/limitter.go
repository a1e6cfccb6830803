package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter returns nil when max <= 0; callers skip registering it.
func RateLimiter(max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		return nil
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		},
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			// Skip limiter for static files, metrics and health check
			return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/storage/")
		},
	})
}
