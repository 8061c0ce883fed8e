package billing_service

import (
	"fmt"
	"time"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"github.com/stripe/stripe-go/v84"
)

// Plan is what a handler decided for one event against the current row.
// A non-empty Skip leaves the row untouched. Anomaly is logged but the
// transition still applies.
type Plan[T any] struct {
	Transition T
	Skip       string
	Anomaly    string
}

var providerStatuses = map[stripe.SubscriptionStatus]billing_model.SubscriptionStatus{
	stripe.SubscriptionStatusActive:            billing_model.SubscriptionStatusActive,
	stripe.SubscriptionStatusPastDue:           billing_model.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusCanceled:          billing_model.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusUnpaid:            billing_model.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusTrialing:          billing_model.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusIncomplete:        billing_model.SubscriptionStatusIncomplete,
	stripe.SubscriptionStatusIncompleteExpired: billing_model.SubscriptionStatusExpired,
}

// MapProviderStatus translates a Stripe subscription status. Unknown values
// pass through unchanged and report false.
func MapProviderStatus(status string) (billing_model.SubscriptionStatus, bool) {
	mapped, ok := providerStatuses[stripe.SubscriptionStatus(status)]
	if !ok {
		return billing_model.SubscriptionStatus(status), false
	}
	return mapped, true
}

func causeMetadata(evt billing_model.StripeEvent) map[string]any {
	return map[string]any{
		billing_model.MetaStripeEvent:   string(evt.Type),
		billing_model.MetaStripeEventID: evt.ID,
	}
}

func PlanCheckoutCompleted(evt billing_model.StripeEvent, p billing_model.CheckoutSessionPayload, current billing_entity.PaymentRequest, now time.Time) Plan[billing_model.PaymentTransition] {
	if current.Status == billing_model.PaymentStatusRefunded {
		return Plan[billing_model.PaymentTransition]{Skip: "payment request is already refunded"}
	}

	meta := causeMetadata(evt)
	if pi := p.PaymentIntent.String(); pi != "" {
		meta[billing_model.MetaStripePaymentIntentID] = pi
	}
	if _, ok := current.Metadata[billing_model.MetaCheckoutSessionID]; !ok && p.ID != "" {
		meta[billing_model.MetaCheckoutSessionID] = p.ID
	}

	return Plan[billing_model.PaymentTransition]{
		Transition: billing_model.PaymentTransition{
			From: []billing_model.PaymentStatus{
				billing_model.PaymentStatusPending,
				billing_model.PaymentStatusPendingPayment,
				billing_model.PaymentStatusPaid,
			},
			To:       billing_model.PaymentStatusPaid,
			PaidAt:   &now,
			Metadata: meta,
			At:       now,
		},
	}
}

func PlanChargeRefunded(evt billing_model.StripeEvent, p billing_model.ChargePayload, current billing_entity.PaymentRequest, now time.Time) Plan[billing_model.PaymentTransition] {
	meta := causeMetadata(evt)
	meta[billing_model.MetaRefundedAt] = now.UTC().Format(time.RFC3339)
	meta[billing_model.MetaRefundAmount] = p.AmountRefunded
	if p.ID != "" {
		meta[billing_model.MetaStripeChargeID] = p.ID
	}

	plan := Plan[billing_model.PaymentTransition]{
		Transition: billing_model.PaymentTransition{
			To:       billing_model.PaymentStatusRefunded,
			Metadata: meta,
			At:       now,
		},
	}
	if current.Status != billing_model.PaymentStatusPaid && current.Status != billing_model.PaymentStatusRefunded {
		plan.Anomaly = fmt.Sprintf("refund recorded for payment request in status %s", current.Status)
	}
	return plan
}

func PlanInvoicePaymentFailed(evt billing_model.StripeEvent, current billing_entity.Subscription, now time.Time) Plan[billing_model.SubscriptionTransition] {
	if !current.Status.IsLive() {
		return Plan[billing_model.SubscriptionTransition]{
			Skip: fmt.Sprintf("subscription is %s, payment failure only applies to active, trialing or past_due", current.Status),
		}
	}

	meta := causeMetadata(evt)
	meta[billing_model.MetaLastPaymentFailed] = evt.CreatedAt().Format(time.RFC3339)

	return Plan[billing_model.SubscriptionTransition]{
		Transition: billing_model.SubscriptionTransition{
			From:     billing_model.LiveSubscriptionStatuses,
			To:       billing_model.SubscriptionStatusPastDue,
			Metadata: meta,
			At:       now,
		},
	}
}

func PlanSubscriptionDeleted(evt billing_model.StripeEvent, current billing_entity.Subscription, now time.Time) Plan[billing_model.SubscriptionTransition] {
	if current.Status.IsTerminal() {
		return Plan[billing_model.SubscriptionTransition]{
			Skip: fmt.Sprintf("subscription is already %s", current.Status),
		}
	}

	return Plan[billing_model.SubscriptionTransition]{
		Transition: billing_model.SubscriptionTransition{
			Except:     billing_model.TerminalSubscriptionStatuses,
			To:         billing_model.SubscriptionStatusCanceled,
			CanceledAt: &now,
			Metadata:   causeMetadata(evt),
			At:         now,
		},
	}
}

// PlanSubscriptionUpdated never moves a canceled or expired row. Bringing one
// back needs an explicit reactivation, which no webhook event provides.
func PlanSubscriptionUpdated(evt billing_model.StripeEvent, p billing_model.SubscriptionPayload, current billing_entity.Subscription, now time.Time) Plan[billing_model.SubscriptionTransition] {
	if current.Status.IsTerminal() {
		return Plan[billing_model.SubscriptionTransition]{
			Skip: fmt.Sprintf("subscription is %s, update to %q ignored", current.Status, p.Status),
		}
	}

	var plan Plan[billing_model.SubscriptionTransition]
	status, known := MapProviderStatus(p.Status)
	if !known && p.Status != "" {
		plan.Anomaly = fmt.Sprintf("unknown provider status %q stored as is", p.Status)
	}

	start, end := p.Period()
	cancelAtPeriodEnd := p.CancelAtPeriodEnd
	plan.Transition = billing_model.SubscriptionTransition{
		Except:             billing_model.TerminalSubscriptionStatuses,
		To:                 status,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   end,
		CancelAtPeriodEnd:  &cancelAtPeriodEnd,
		Metadata:           causeMetadata(evt),
		At:                 now,
	}
	if status == billing_model.SubscriptionStatusCanceled {
		plan.Transition.CanceledAt = &now
	}
	// Rows created before checkout finished are found by customer and linked here.
	if current.StripeSubscriptionID == nil && p.ID != "" {
		plan.Transition.StripeSubscriptionID = &p.ID
	}
	if customer := p.Customer.String(); current.StripeCustomerID == nil && customer != "" {
		plan.Transition.StripeCustomerID = &customer
	}
	return plan
}
