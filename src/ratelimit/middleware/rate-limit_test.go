package ratelimit_middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	ratelimit_service "github.com/orbitdesk/orbitdesk-server/src/ratelimit/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Post("/payments/checkout", New(cfg), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRateLimit_DeniesOverBudget(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := ratelimit_service.NewMetrics(reg)
	app := newApp(Config{
		Limiter: ratelimit_service.NewMemoryLimiter(),
		Action:  ratelimit_service.ActionPayments,
		Limit:   &ratelimit_service.Limit{Max: 2, Window: time.Minute},
		Metrics: metrics,
	})

	for want := 1; want >= 0; want-- {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/payments/checkout", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(want), resp.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/payments/checkout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var body RateLimitedBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Too many requests", body.Error)
	assert.Zero(t, body.Remaining)
	assert.NotNil(t, body.ResetAt)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(ratelimit_service.ActionPayments, "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Decisions.WithLabelValues(ratelimit_service.ActionPayments, "rejected")))
}

type brokenLimiter struct{}

func (brokenLimiter) CheckLimit(context.Context, string, int, time.Duration) (ratelimit_service.Decision, error) {
	return ratelimit_service.Decision{}, errors.New("redis: connection refused")
}

func TestRateLimit_BackendFailureLetsRequestsThrough(t *testing.T) {
	app := newApp(Config{
		Limiter: brokenLimiter{},
		Action:  ratelimit_service.ActionPayments,
		Limit:   &ratelimit_service.Limit{Max: 1, Window: time.Minute},
	})

	for range 3 {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/payments/checkout", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Remaining"))
		assert.Empty(t, resp.Header.Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_CustomIdentifier(t *testing.T) {
	app := newApp(Config{
		Limiter:    ratelimit_service.NewMemoryLimiter(),
		Action:     ratelimit_service.ActionOrgManage,
		Limit:      &ratelimit_service.Limit{Max: 1, Window: time.Minute},
		Identifier: func(c *fiber.Ctx) string { return c.Get("X-User") },
	})

	send := func(user string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/payments/checkout", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("alice"))
	assert.Equal(t, fiber.StatusOK, send("bob"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("alice"))
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	assert.Equal(t, 1, RetryAfterSeconds(nil, now))
	assert.Equal(t, 1, RetryAfterSeconds(at(-time.Second), now))
	assert.Equal(t, 1, RetryAfterSeconds(at(200*time.Millisecond), now))
	assert.Equal(t, 2, RetryAfterSeconds(at(1500*time.Millisecond), now))
	assert.Equal(t, 60, RetryAfterSeconds(at(time.Minute), now))
}
