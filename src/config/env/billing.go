package env

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

type BillingConfig struct {
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	// Zero disables the timestamp freshness check on webhook signatures.
	SignatureTolerance time.Duration `envconfig:"STRIPE_SIGNATURE_TOLERANCE" default:"0s"`
	SuccessURL         string        `envconfig:"STRIPE_SUCCESS_URL"`
	CancelURL          string        `envconfig:"STRIPE_CANCEL_URL"`
	PortalReturnURL    string        `envconfig:"STRIPE_PORTAL_RETURN_URL"`
}

type SweepConfig struct {
	CronSecret  string        `envconfig:"CRON_SECRET"`
	Schedule    string        `envconfig:"SWEEP_SCHEDULE"`
	GracePeriod time.Duration `envconfig:"SWEEP_GRACE_PERIOD" default:"720h"`
}

func (b BillingConfig) log() {
	if b.StripeSecretKey != "" {
		pterm.DefaultLogger.Info("Stripe billing integration is CONFIGURED")
	} else {
		pterm.DefaultLogger.Warn("Stripe billing integration is NOT configured (STRIPE_SECRET_KEY not set)")
	}

	if b.StripeWebhookSecret == "" {
		pterm.DefaultLogger.Warn("STRIPE_WEBHOOK_SECRET not set, the Stripe webhook endpoint will reject every event")
	}

	if b.SignatureTolerance > 0 {
		pterm.DefaultLogger.Info(fmt.Sprintf("Webhook signature tolerance: %s", b.SignatureTolerance))
	}
}

func (s SweepConfig) log() {
	if s.CronSecret == "" {
		pterm.DefaultLogger.Warn("CRON_SECRET not set, the subscription check endpoint is DISABLED")
	}

	if s.Schedule != "" {
		pterm.DefaultLogger.Info(fmt.Sprintf("Subscription sweep scheduled in-process: %q", s.Schedule))
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Past-due grace period: %s", s.GracePeriod))
}
