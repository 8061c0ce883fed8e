package billing_handler

import (
	"time"

	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
)

type Handler struct {
	engine      *billing_service.WebhookEngine
	sweeper     *billing_service.Sweeper
	checkout    *billing_service.CheckoutService
	manage      *billing_service.ManageService
	subscribe   *billing_service.SubscribeService
	setupIntent *billing_service.SetupIntentService
	cronSecret  string
	now         func() time.Time
}

type Deps struct {
	Engine      *billing_service.WebhookEngine
	Sweeper     *billing_service.Sweeper
	Checkout    *billing_service.CheckoutService
	Manage      *billing_service.ManageService
	Subscribe   *billing_service.SubscribeService
	SetupIntent *billing_service.SetupIntentService
	CronSecret  string
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		engine:      d.Engine,
		sweeper:     d.Sweeper,
		checkout:    d.Checkout,
		manage:      d.Manage,
		subscribe:   d.Subscribe,
		setupIntent: d.SetupIntent,
		cronSecret:  d.CronSecret,
		now:         time.Now,
	}
}
