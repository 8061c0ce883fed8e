package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	billing_handler "github.com/orbitdesk/orbitdesk-server/src/billing/handler"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	billing_router "github.com/orbitdesk/orbitdesk-server/src/billing/router"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	email_service "github.com/orbitdesk/orbitdesk-server/src/email/service"
	ratelimit_service "github.com/orbitdesk/orbitdesk-server/src/ratelimit/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp builds the HTTP surface on top of already opened stores. The
// returned sweeper is the one behind /billing/subscription/check.
func NewApp(
	cfg env.Config,
	repo billing_repository.Repository,
	limiter ratelimit_service.Limiter,
	reg *prometheus.Registry,
) (*fiber.App, *billing_service.Sweeper) {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.Server.AllowOrigins, ","),
		ExposeHeaders: "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset",
	}))

	var provider payment.Provider
	if cfg.Billing.StripeSecretKey != "" {
		provider = payment.NewStripeProvider(cfg.Billing)
	}

	billingMetrics := billing_service.NewMetrics(reg)
	engine := billing_service.NewWebhookEngine(repo, cfg.Billing,
		billing_service.WithMetrics(billingMetrics),
		billing_service.WithNotifier(newNotifier(cfg.Email)),
	)
	sweeper := billing_service.NewSweeper(repo, cfg.Sweep,
		billing_service.WithSweepMetrics(billingMetrics),
	)

	handler := billing_handler.NewHandler(billing_handler.Deps{
		Engine:      engine,
		Sweeper:     sweeper,
		Checkout:    billing_service.NewCheckoutService(repo, provider, cfg.Billing),
		Manage:      billing_service.NewManageService(repo, provider, cfg.Billing),
		Subscribe:   billing_service.NewSubscribeService(repo, provider, cfg.Billing),
		SetupIntent: billing_service.NewSetupIntentService(provider),
		CronSecret:  cfg.Sweep.CronSecret,
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	makeDocs(app)
	billing_router.Route(app, billing_router.Deps{
		Handler: handler,
		Limiter: limiter,
		Metrics: ratelimit_service.NewMetrics(reg),
		Config:  cfg,
	})

	return app, sweeper
}

func newNotifier(cfg env.EmailConfig) billing_service.Notifier {
	if len(cfg.NotifyTo) == 0 {
		return billing_service.LogNotifier{}
	}
	return billing_service.EmailNotifier{
		Mailer: email_service.NewSMTPService(cfg),
		To:     cfg.NotifyTo,
	}
}
