package ratelimit_middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	ratelimit_service "github.com/orbitdesk/orbitdesk-server/src/ratelimit/service"
)

type Config struct {
	Limiter ratelimit_service.Limiter
	Action  string
	// Limit defaults to ratelimit_service.LimitFor(Action).
	Limit *ratelimit_service.Limit
	// Identifier defaults to the client IP.
	Identifier func(c *fiber.Ctx) string
	Metrics    *ratelimit_service.Metrics
}

// RateLimitedBody is the 429 response body.
type RateLimitedBody struct {
	Error     string     `json:"error"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt"`
}

// New gates a route on the "{action}:{identifier}" sliding window. Backend
// failures let the request through.
func New(cfg Config) fiber.Handler {
	limit := ratelimit_service.LimitFor(cfg.Action)
	if cfg.Limit != nil {
		limit = *cfg.Limit
	}
	identifier := cfg.Identifier
	if identifier == nil {
		identifier = func(c *fiber.Ctx) string { return c.IP() }
	}

	return func(c *fiber.Ctx) error {
		key := ratelimit_service.Key(cfg.Action, identifier(c))
		decision := ratelimit_service.Check(c.UserContext(), cfg.Limiter, key, limit.Max, limit.WindowSeconds())
		cfg.Metrics.Observe(cfg.Action, decision)

		SetHeaders(c, limit.Max, decision)
		if decision.Allowed {
			return c.Next()
		}

		c.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(decision.ResetAt, time.Now())))
		return c.Status(fiber.StatusTooManyRequests).JSON(RateLimitedBody{
			Error:     "Too many requests",
			Remaining: decision.Remaining,
			ResetAt:   decision.ResetAt,
		})
	}
}

// SetHeaders copies the decision into the X-RateLimit-* headers.
func SetHeaders(c *fiber.Ctx, max int, d ratelimit_service.Decision) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(max))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if d.ResetAt != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below 1.
func RetryAfterSeconds(resetAt *time.Time, now time.Time) int {
	if resetAt == nil {
		return 1
	}
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
