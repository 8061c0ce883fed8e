package billing_router

import (
	"github.com/gofiber/fiber/v2"
	billing_handler "github.com/orbitdesk/orbitdesk-server/src/billing/handler"
	billing_middleware "github.com/orbitdesk/orbitdesk-server/src/billing/middleware"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	ratelimit_middleware "github.com/orbitdesk/orbitdesk-server/src/ratelimit/middleware"
	ratelimit_service "github.com/orbitdesk/orbitdesk-server/src/ratelimit/service"
)

type Deps struct {
	Handler *billing_handler.Handler
	Limiter ratelimit_service.Limiter
	Metrics *ratelimit_service.Metrics
	Config  env.Config
}

func Route(app *fiber.App, d Deps) {
	group := app.Group("/billing")

	webhookRoutes(group, d)
	subscriptionRoutes(group, d)
	paymentRoutes(app, d)
}

func webhookRoutes(group fiber.Router, d Deps) {
	handlers := []fiber.Handler{}
	if d.Config.RateLimit.LimitStripeWebhook {
		handlers = append(handlers, ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter: d.Limiter,
			Action:  ratelimit_service.ActionStripeWebhook,
			Metrics: d.Metrics,
		}))
	}

	// No auth, the signature authenticates Stripe.
	group.Post("/webhook/stripe", append(handlers, d.Handler.StripeWebhook)...)
}

func subscriptionRoutes(group fiber.Router, d Deps) {
	sub := group.Group("/subscription")

	// Cron trigger, bearer CRON_SECRET checked in the handler
	sub.Post("/check",
		ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter: d.Limiter,
			Action:  ratelimit_service.ActionDefault,
			Metrics: d.Metrics,
		}),
		d.Handler.SubscriptionCheck)

	sub.Post("/manage",
		billing_middleware.UserMiddleware(d.Config.Auth.JWTSecret),
		ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter:    d.Limiter,
			Action:     ratelimit_service.ActionOrgManage,
			Metrics:    d.Metrics,
			Identifier: userIdentifier,
		}),
		d.Handler.ManageSubscription)

	sub.Post("/create",
		billing_middleware.UserMiddleware(d.Config.Auth.JWTSecret),
		ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter:    d.Limiter,
			Action:     ratelimit_service.ActionOrgManage,
			Metrics:    d.Metrics,
			Identifier: userIdentifier,
		}),
		d.Handler.CreateSubscription)

	// Signup flow, the caller has no account yet
	group.Post("/setup-intent",
		ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter: d.Limiter,
			Action:  ratelimit_service.ActionOrgOnboard,
			Metrics: d.Metrics,
		}),
		d.Handler.CreateSetupIntent)
}

func paymentRoutes(app *fiber.App, d Deps) {
	payments := app.Group("/payments")

	payments.Post("/checkout",
		ratelimit_middleware.New(ratelimit_middleware.Config{
			Limiter: d.Limiter,
			Action:  ratelimit_service.ActionPayments,
			Metrics: d.Metrics,
		}),
		d.Handler.CreateCheckout)
}

func userIdentifier(c *fiber.Ctx) string {
	userID, _ := billing_middleware.UserID(c)
	return userID.String()
}
