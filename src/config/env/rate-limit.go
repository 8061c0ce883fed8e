package env

import (
	"time"

	"github.com/pterm/pterm"
)

type RateLimitConfig struct {
	RedisURL           string        `envconfig:"REDIS_URL"`
	CompactEvery       time.Duration `envconfig:"RATE_LIMIT_COMPACT_EVERY" default:"5m"`
	LimitStripeWebhook bool          `envconfig:"RATE_LIMIT_WEBHOOK" default:"true"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
}

func (r RateLimitConfig) log() {
	if r.RedisURL != "" {
		pterm.DefaultLogger.Info("Rate limiting backed by Redis")
	} else {
		pterm.DefaultLogger.Info("Rate limiting backed by in-process sliding window")
	}

	if r.LimitStripeWebhook {
		pterm.DefaultLogger.Info("Stripe webhook endpoint is rate limited")
	}
}

func (a AuthConfig) log() {
	if a.JWTSecret == "" {
		pterm.DefaultLogger.Warn("AUTH_JWT_SECRET not set, subscription management is DISABLED")
	}
}
