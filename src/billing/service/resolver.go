package billing_service

import (
	"context"
	"errors"
	"fmt"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
)

// ResolveStep names the lookup that located an entity.
type ResolveStep int

const (
	ResolveStepNone ResolveStep = iota
	ResolveStepDirectID
	ResolveStepCheckoutSession
	ResolveStepCustomer
)

func (s ResolveStep) String() string {
	switch s {
	case ResolveStepDirectID:
		return "direct_id"
	case ResolveStepCheckoutSession:
		return "checkout_session"
	case ResolveStepCustomer:
		return "customer"
	default:
		return "none"
	}
}

type lookup[T any] struct {
	step ResolveStep
	key  string
	find func(context.Context, string) (*T, error)
}

// firstMatch tries each lookup in order and stops at the first row found.
// Lookups with an empty key are skipped.
func firstMatch[T any](ctx context.Context, lookups []lookup[T]) (*T, ResolveStep, error) {
	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		row, err := l.find(ctx, l.key)
		if errors.Is(err, billing_repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, ResolveStepNone, fmt.Errorf("%w: resolve by %s: %w", ErrStoreFailure, l.step, err)
		}
		return row, l.step, nil
	}
	return nil, ResolveStepNone, nil
}

func byPaymentMetadata(store billing_repository.Store, key string) func(context.Context, string) (*billing_entity.PaymentRequest, error) {
	return func(ctx context.Context, value string) (*billing_entity.PaymentRequest, error) {
		return store.FindPaymentRequestByMetadata(ctx, key, value)
	}
}

// ResolveCheckoutPayment locates the payment request a completed checkout
// session pays for.
func ResolveCheckoutPayment(ctx context.Context, store billing_repository.Store, p billing_model.CheckoutSessionPayload) (*billing_entity.PaymentRequest, ResolveStep, error) {
	return firstMatch(ctx, []lookup[billing_entity.PaymentRequest]{
		{ResolveStepDirectID, p.ClientReferenceID, store.GetPaymentRequest},
		{ResolveStepDirectID, p.Metadata[billing_model.StripeMetaRequestID], store.GetPaymentRequest},
		{ResolveStepDirectID, p.PaymentIntent.String(), byPaymentMetadata(store, billing_model.MetaStripePaymentIntentID)},
		{ResolveStepCheckoutSession, p.ID, byPaymentMetadata(store, billing_model.MetaCheckoutSessionID)},
	})
}

// ResolveRefundedPayment locates the payment request a refunded charge belongs
// to. The last fallback depends on the charge carrying checkout_session_id
// in its metadata.
func ResolveRefundedPayment(ctx context.Context, store billing_repository.Store, p billing_model.ChargePayload) (*billing_entity.PaymentRequest, ResolveStep, error) {
	return firstMatch(ctx, []lookup[billing_entity.PaymentRequest]{
		{ResolveStepDirectID, p.PaymentIntent.String(), byPaymentMetadata(store, billing_model.MetaStripePaymentIntentID)},
		{ResolveStepDirectID, p.ID, byPaymentMetadata(store, billing_model.MetaStripeChargeID)},
		{ResolveStepDirectID, p.Metadata[billing_model.StripeMetaRequestID], store.GetPaymentRequest},
		{ResolveStepCheckoutSession, p.Metadata[billing_model.StripeMetaCheckoutSessionID], byPaymentMetadata(store, billing_model.MetaCheckoutSessionID)},
	})
}

// ResolveSubscription prefers the Stripe subscription id and only falls back
// to the customer's org when the event does not name a known subscription.
func ResolveSubscription(ctx context.Context, store billing_repository.Store, stripeSubscriptionID, stripeCustomerID string) (*billing_entity.Subscription, ResolveStep, error) {
	return firstMatch(ctx, []lookup[billing_entity.Subscription]{
		{ResolveStepDirectID, stripeSubscriptionID, store.FindSubscriptionByStripeID},
		{ResolveStepCustomer, stripeCustomerID, store.FindLiveSubscriptionByCustomer},
	})
}
