package billing_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
	"github.com/stripe/stripe-go/v84"
)

var ErrWebhookNotConfigured = errors.New("stripe webhook secret is not configured")

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type WebhookResult struct {
	Outcome   Outcome
	EventID   string
	EventType string
	// Resolved is ResolveStepNone when no local row matched.
	Resolved ResolveStep
	// Applied is false when the row was found but left unchanged.
	Applied bool
}

type WebhookEngine struct {
	repo      billing_repository.Repository
	secret    string
	tolerance time.Duration
	now       func() time.Time
	notifier  Notifier
	metrics   *Metrics
}

type EngineOption func(*WebhookEngine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *WebhookEngine) { e.now = now }
}

func WithNotifier(n Notifier) EngineOption {
	return func(e *WebhookEngine) { e.notifier = n }
}

func WithMetrics(m *Metrics) EngineOption {
	return func(e *WebhookEngine) { e.metrics = m }
}

func NewWebhookEngine(repo billing_repository.Repository, cfg env.BillingConfig, opts ...EngineOption) *WebhookEngine {
	e := &WebhookEngine{
		repo:      repo,
		secret:    cfg.StripeWebhookSecret,
		tolerance: cfg.SignatureTolerance,
		now:       time.Now,
		notifier:  LogNotifier{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleWebhook authenticates body, claims the event and applies its
// transition. The claim and the transition share one transaction, so a store
// failure leaves no ledger row and the provider's redelivery is applied.
//
// Returned errors wrap ErrWebhookNotConfigured, ErrMissingSignature,
// ErrInvalidSignature, billing_model.ErrMalformedEvent or ErrStoreFailure.
func (e *WebhookEngine) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if e.secret == "" {
		return WebhookResult{}, ErrWebhookNotConfigured
	}

	now := e.now()
	if err := VerifySignatureWithTolerance(body, signature, e.secret, e.tolerance, now); err != nil {
		e.metrics.webhook("", "rejected")
		return WebhookResult{}, err
	}

	evt, err := billing_model.ParseStripeEvent(body)
	if err != nil {
		e.metrics.webhook("", "malformed")
		return WebhookResult{}, err
	}
	result := WebhookResult{EventID: evt.ID, EventType: string(evt.Type)}

	if !evt.Supported() {
		result.Outcome = OutcomeIgnored
		e.metrics.webhook(result.EventType, string(result.Outcome))
		return result, nil
	}

	payload, err := billing_model.DecodePayload(evt)
	if err != nil {
		e.metrics.webhook(result.EventType, "malformed")
		return result, err
	}

	var notes []Notification
	err = e.repo.Transaction(ctx, func(store billing_repository.Store) error {
		claim, err := ClaimEvent(ctx, store, evt, now)
		if err != nil {
			return err
		}
		if claim == AlreadyClaimed {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		result.Outcome = OutcomeProcessed
		notes, err = e.route(ctx, store, evt, payload, now, &result)
		return err
	})
	if err != nil {
		e.metrics.webhook(result.EventType, "failed")
		pterm.DefaultLogger.Error(fmt.Sprintf("Stripe webhook %s (%s) failed: %v", evt.ID, evt.Type, err))
		if !errors.Is(err, ErrStoreFailure) {
			err = fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
		return result, err
	}

	e.metrics.webhook(result.EventType, string(result.Outcome))
	if result.Outcome == OutcomeDuplicate {
		pterm.DefaultLogger.Info(fmt.Sprintf("Stripe webhook %s already processed, skipping", evt.ID))
		return result, nil
	}

	notifyAll(ctx, e.notifier, notes)
	return result, nil
}

func (e *WebhookEngine) route(
	ctx context.Context,
	store billing_repository.Store,
	evt billing_model.StripeEvent,
	payload billing_model.EventPayload,
	now time.Time,
	result *WebhookResult,
) ([]Notification, error) {
	switch p := payload.(type) {
	case billing_model.CheckoutSessionPayload:
		pr, step, err := ResolveCheckoutPayment(ctx, store, p)
		if err != nil {
			return nil, err
		}
		if pr == nil {
			e.unresolved(evt, fmt.Sprintf("checkout session %s", p.ID))
			return nil, nil
		}
		result.Resolved = step
		return e.applyPayment(ctx, store, evt, pr, step, PlanCheckoutCompleted(evt, p, *pr, now), result)

	case billing_model.ChargePayload:
		pr, step, err := ResolveRefundedPayment(ctx, store, p)
		if err != nil {
			return nil, err
		}
		if pr == nil {
			e.unresolved(evt, fmt.Sprintf("charge %s (payment intent %q)", p.ID, p.PaymentIntent))
			return nil, nil
		}
		result.Resolved = step
		return e.applyPayment(ctx, store, evt, pr, step, PlanChargeRefunded(evt, p, *pr, now), result)

	case billing_model.InvoicePayload:
		sub, step, err := ResolveSubscription(ctx, store, p.SubscriptionID(), p.Customer.String())
		if err != nil {
			return nil, err
		}
		if sub == nil {
			e.unresolved(evt, fmt.Sprintf("invoice %s (subscription %q, customer %q)", p.ID, p.SubscriptionID(), p.Customer))
			return nil, nil
		}
		result.Resolved = step
		return e.applySubscription(ctx, store, evt, sub, step, PlanInvoicePaymentFailed(evt, *sub, now), result)

	case billing_model.SubscriptionPayload:
		sub, step, err := ResolveSubscription(ctx, store, p.ID, p.Customer.String())
		if err != nil {
			return nil, err
		}
		if sub == nil {
			e.unresolved(evt, fmt.Sprintf("subscription %s (customer %q)", p.ID, p.Customer))
			return nil, nil
		}
		result.Resolved = step

		plan := PlanSubscriptionUpdated(evt, p, *sub, now)
		if evt.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			plan = PlanSubscriptionDeleted(evt, *sub, now)
		}
		return e.applySubscription(ctx, store, evt, sub, step, plan, result)

	default:
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s (%s) has no handler", evt.ID, evt.Type))
		return nil, nil
	}
}

func (e *WebhookEngine) unresolved(evt billing_model.StripeEvent, what string) {
	e.metrics.unresolved(string(evt.Type))
	pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s (%s): no local record for %s, acknowledged without changes", evt.ID, evt.Type, what))
}

func (e *WebhookEngine) applyPayment(
	ctx context.Context,
	store billing_repository.Store,
	evt billing_model.StripeEvent,
	pr *billing_entity.PaymentRequest,
	step ResolveStep,
	plan Plan[billing_model.PaymentTransition],
	result *WebhookResult,
) ([]Notification, error) {
	if plan.Skip != "" {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: payment request %s skipped: %s", evt.ID, pr.ID, plan.Skip))
		return nil, nil
	}
	if plan.Anomaly != "" {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: payment request %s: %s", evt.ID, pr.ID, plan.Anomaly))
	}

	applied, err := store.ApplyPaymentTransition(ctx, pr.ID, plan.Transition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	result.Applied = applied
	if !applied {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: payment request %s changed concurrently, left as is", evt.ID, pr.ID))
		return nil, nil
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Payment request %s -> %s (event %s, matched by %s)", pr.ID, plan.Transition.To, evt.ID, step))
	return []Notification{{
		Cause:      evt.ID,
		EntityKind: "payment_request",
		EntityID:   pr.ID,
		Status:     string(plan.Transition.To),
	}}, nil
}

func (e *WebhookEngine) applySubscription(
	ctx context.Context,
	store billing_repository.Store,
	evt billing_model.StripeEvent,
	sub *billing_entity.Subscription,
	step ResolveStep,
	plan Plan[billing_model.SubscriptionTransition],
	result *WebhookResult,
) ([]Notification, error) {
	if plan.Skip != "" {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: subscription %s skipped: %s", evt.ID, sub.ID, plan.Skip))
		return nil, nil
	}
	if plan.Anomaly != "" {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: subscription %s: %s", evt.ID, sub.ID, plan.Anomaly))
	}

	applied, err := store.ApplySubscriptionTransition(ctx, sub.ID, plan.Transition)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	result.Applied = applied
	if !applied {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Stripe webhook %s: subscription %s changed concurrently, left as is", evt.ID, sub.ID))
		return nil, nil
	}

	status := plan.Transition.To
	if status == "" {
		status = sub.Status
	}
	pterm.DefaultLogger.Info(fmt.Sprintf("Subscription %s -> %s (event %s, matched by %s)", sub.ID, status, evt.ID, step))
	return []Notification{{
		Cause:      evt.ID,
		EntityKind: "subscription",
		EntityID:   sub.ID.String(),
		Status:     string(status),
	}}, nil
}
