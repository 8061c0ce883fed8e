package billing_handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	webhookSecret = "whsec_handler_test"
	cronSecret    = "cron-secret"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stripe" }

func (stubProvider) CreateCheckoutSession(context.Context, payment.CheckoutRequest) (payment.CheckoutSession, error) {
	return payment.CheckoutSession{ID: "cs_handler", URL: "https://checkout.stripe.com/c/pay/cs_handler"}, nil
}

func (stubProvider) SetCancelAtPeriodEnd(context.Context, string, bool) error { return nil }

func (stubProvider) CreatePortalSession(context.Context, string, string) (string, error) {
	return "https://billing.stripe.com/p/session/handler", nil
}

func (stubProvider) CreateCustomer(_ context.Context, req payment.CustomerRequest) (string, error) {
	if req.Address != nil && req.Address.Country == "" {
		return "", errors.New("country is required")
	}
	return "cus_handler", nil
}

func (stubProvider) CreateSubscriptionCheckout(context.Context, payment.SubscriptionCheckoutRequest) (payment.CheckoutSession, error) {
	return payment.CheckoutSession{ID: "cs_sub_handler", URL: "https://checkout.stripe.com/c/pay/cs_sub_handler"}, nil
}

func (stubProvider) CreateSetupIntent(context.Context, string, map[string]string) (payment.SetupIntent, error) {
	return payment.SetupIntent{ID: "seti_handler", ClientSecret: "seti_handler_secret"}, nil
}

// brokenRepository fails every transaction.
type brokenRepository struct {
	*billing_repository.MemoryRepository
}

func (brokenRepository) Transaction(context.Context, func(billing_repository.Store) error) error {
	return errors.New("database is down")
}

type setup struct {
	repo     billing_repository.Repository
	provider payment.Provider
	billing  env.BillingConfig
	cron     string
}

func newTestApp(s setup) *fiber.App {
	h := NewHandler(Deps{
		Engine:      billing_service.NewWebhookEngine(s.repo, s.billing),
		Sweeper:     billing_service.NewSweeper(s.repo, env.SweepConfig{}),
		Checkout:    billing_service.NewCheckoutService(s.repo, s.provider, s.billing),
		Manage:      billing_service.NewManageService(s.repo, s.provider, s.billing),
		Subscribe:   billing_service.NewSubscribeService(s.repo, s.provider, s.billing),
		SetupIntent: billing_service.NewSetupIntentService(s.provider),
		CronSecret:  s.cron,
	})

	app := fiber.New()
	app.Post("/billing/webhook/stripe", h.StripeWebhook)
	app.Post("/billing/subscription/check", h.SubscriptionCheck)
	app.Post("/payments/checkout", h.CreateCheckout)
	app.Post("/billing/subscription/create", h.CreateSubscription)
	app.Post("/billing/setup-intent", h.CreateSetupIntent)
	return app
}

func webhookRequest(t *testing.T, evt map[string]any, sign bool) *http.Request {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, "/billing/webhook/stripe", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if sign {
		req.Header.Set("Stripe-Signature", billing_service.SignPayload(webhookSecret, time.Now().Unix(), body))
	}
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func checkoutEvent(id string) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":                  "cs_1",
			"client_reference_id": "pr_1",
			"payment_intent":      "pi_1",
		}},
	}
}

func TestStripeWebhook(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{ID: "pr_1"}))
	app := newTestApp(setup{repo: repo, billing: env.BillingConfig{StripeWebhookSecret: webhookSecret}})

	resp, err := app.Test(webhookRequest(t, checkoutEvent("evt_1"), true))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, billing_model.WebhookResponse{Received: true, Processed: true}, decode[billing_model.WebhookResponse](t, resp))

	resp, err = app.Test(webhookRequest(t, checkoutEvent("evt_1"), true))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, billing_model.WebhookResponse{Received: true, Duplicate: true}, decode[billing_model.WebhookResponse](t, resp))

	resp, err = app.Test(webhookRequest(t, map[string]any{"id": "evt_2", "type": "customer.created", "data": map[string]any{"object": map[string]any{}}}, true))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, billing_model.WebhookResponse{Received: true, Ignored: true, Reason: "unsupported_event_type"}, decode[billing_model.WebhookResponse](t, resp))

	pr, err := repo.GetPaymentRequest(context.Background(), "pr_1")
	require.NoError(t, err)
	assert.Equal(t, billing_model.PaymentStatusPaid, pr.Status)
}

func TestStripeWebhook_Errors(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	configured := env.BillingConfig{StripeWebhookSecret: webhookSecret}

	resp, err := newTestApp(setup{repo: repo}).Test(webhookRequest(t, checkoutEvent("evt_1"), true))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	resp, err = newTestApp(setup{repo: repo, billing: configured}).Test(webhookRequest(t, checkoutEvent("evt_1"), false))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	bad := webhookRequest(t, checkoutEvent("evt_1"), false)
	bad.Header.Set("Stripe-Signature", "t=1,v1=00")
	resp, err = newTestApp(setup{repo: repo, billing: configured}).Test(bad)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = newTestApp(setup{repo: brokenRepository{repo}, billing: configured}).Test(webhookRequest(t, checkoutEvent("evt_1"), true))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, billing_model.WebhookResponse{Received: true, Error: "Webhook processing failed"}, decode[billing_model.WebhookResponse](t, resp))

	assert.Equal(t, 0, repo.EventCount())
}

func TestSubscriptionCheck(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateSubscription(&billing_entity.Subscription{
		Status:   billing_model.SubscriptionStatusTrialing,
		TrialEnd: &past,
	}))

	send := func(app *fiber.App, auth string) *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/billing/subscription/check", nil)
		if auth != "" {
			req.Header.Set(fiber.HeaderAuthorization, auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, fiber.StatusServiceUnavailable, send(newTestApp(setup{repo: repo}), "Bearer anything").StatusCode)

	app := newTestApp(setup{repo: repo, cron: cronSecret})
	assert.Equal(t, fiber.StatusUnauthorized, send(app, "").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, send(app, "Bearer wrong").StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, send(app, cronSecret).StatusCode)

	resp := send(app, "Bearer "+cronSecret)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[billing_model.SweepResponse](t, resp)
	assert.True(t, body.Ok)
	assert.NotEmpty(t, body.Timestamp)
	assert.Equal(t, billing_model.SweepResults{ExpiredTrials: 1}, body.Results)
}

func TestCreateCheckout(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{ID: "pr_1", Amount: 1000, Currency: "usd"}))
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{ID: "pr_paid", Status: billing_model.PaymentStatusPaid}))

	send := func(app *fiber.App, body map[string]any) *http.Response {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(fiber.MethodPost, "/payments/checkout", bytes.NewReader(b))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}
	valid := func(id string) map[string]any {
		return map[string]any{"requestId": id, "amount": 10, "currency": "usd", "description": "Annual plan"}
	}

	app := newTestApp(setup{repo: repo, provider: stubProvider{}})

	resp := send(app, valid("pr_1"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, billing_model.CheckoutResponse{
		URL:       "https://checkout.stripe.com/c/pay/cs_handler",
		SessionID: "cs_handler",
	}, decode[billing_model.CheckoutResponse](t, resp))

	assert.Equal(t, fiber.StatusNotFound, send(app, valid("pr_missing")).StatusCode)
	assert.Equal(t, fiber.StatusConflict, send(app, valid("pr_paid")).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, send(app, map[string]any{"requestId": "pr_1", "amount": -5, "currency": "usd", "description": "x"}).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, send(app, map[string]any{"requestId": "pr_1", "amount": 5, "currency": "dollars", "description": "x"}).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, send(app, map[string]any{"requestId": "pr_1", "amount": 1000}).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, send(app, map[string]any{"requestId": "pr_1", "amount": 10, "currency": "eur"}).StatusCode)

	noProvider := newTestApp(setup{repo: repo})
	assert.Equal(t, fiber.StatusServiceUnavailable, send(noProvider, valid("pr_1")).StatusCode)
}

func TestCreateSetupIntent(t *testing.T) {
	send := func(app *fiber.App, body string) *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/billing/setup-intent", bytes.NewReader([]byte(body)))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}
	repo := billing_repository.NewMemoryRepository()
	app := newTestApp(setup{repo: repo, provider: stubProvider{}})

	assert.Equal(t, fiber.StatusBadRequest, send(app, `{"email":"not-an-email"}`).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, send(app, `{"email":"ops@acme.test","billingAddress":{"country":"Germany"}}`).StatusCode)
	assert.Equal(t, fiber.StatusInternalServerError, send(app, `{"email":"ops@acme.test","billingAddress":{"city":"Berlin"}}`).StatusCode)

	resp := send(app, `{"email":"ops@acme.test","companyName":"Acme","billingAddress":{"city":"Berlin","country":"DE"}}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode[billing_service.SetupIntentResult](t, resp)
	assert.True(t, out.Ok)
	assert.Equal(t, "seti_handler", out.SetupIntentID)
	assert.Equal(t, "cus_handler", out.CustomerID)

	unconfigured := newTestApp(setup{repo: repo})
	assert.Equal(t, fiber.StatusServiceUnavailable, send(unconfigured, `{"email":"ops@acme.test"}`).StatusCode)
}

func TestCreateSubscription_NeedsUser(t *testing.T) {
	app := newTestApp(setup{repo: billing_repository.NewMemoryRepository(), provider: stubProvider{}})

	req := httptest.NewRequest(fiber.MethodPost, "/billing/subscription/create",
		bytes.NewReader([]byte(`{"orgId":"9f1c2f8e-5d7a-4a43-9f3e-0c2b1a6d7e11","planId":"pro"}`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
