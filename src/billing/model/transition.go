package billing_model

import "time"

// Metadata keys written by the webhook handlers, the sweep and the checkout flow.
const (
	MetaStripeEvent           = "stripeEvent"
	MetaStripeEventID         = "stripeEventId"
	MetaStripePaymentIntentID = "stripePaymentIntentId"
	MetaStripeChargeID        = "stripeChargeId"
	MetaCheckoutSessionID     = "checkoutSessionId"
	MetaCheckoutURL           = "checkoutUrl"
	MetaProvider              = "provider"
	MetaRefundedAt            = "refundedAt"
	MetaRefundAmount          = "refundAmount"
	MetaLastPaymentFailed     = "lastPaymentFailed"
	MetaSweepRunID            = "sweepRunId"
	MetaSweepRunAt            = "sweepRunAt"
	MetaSweepStep             = "sweepStep"
	MetaCanceledBy            = "canceledBy"
	MetaResumedBy             = "resumedBy"
	MetaPlanID                = "planId"
	MetaBillingCycle          = "billingCycle"
	MetaCreatedBy             = "createdBy"

	// Keys Stripe objects carry in their own metadata.
	StripeMetaRequestID         = "request_id"
	StripeMetaCheckoutSessionID = "checkout_session_id"
)

// PaymentTransition is applied with a single conditional update. The row only
// changes when its current status is in From; an empty From matches any status.
type PaymentTransition struct {
	From []PaymentStatus
	To   PaymentStatus
	// PaidAt is kept when the row already has one.
	PaidAt   *time.Time
	Metadata map[string]any
	At       time.Time
}

// SubscriptionTransition mirrors PaymentTransition. An empty To keeps the
// current status. Except excludes statuses on top of From, so a transition
// with only Except set matches every status outside it.
type SubscriptionTransition struct {
	From               []SubscriptionStatus
	Except             []SubscriptionStatus
	To                 SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  *bool
	// CanceledAt is kept when the row already has one.
	CanceledAt *time.Time
	// Provider references only fill empty columns and never relink a row.
	StripeCustomerID     *string
	StripeSubscriptionID *string
	Metadata             map[string]any
	At                   time.Time
}

type SweepField string

const (
	SweepFieldTrialEnd         SweepField = "trial_end"
	SweepFieldCurrentPeriodEnd SweepField = "current_period_end"
)

// SweepStep moves every row in From whose Field is strictly before Before.
type SweepStep struct {
	Name       string
	From       SubscriptionStatus
	To         SubscriptionStatus
	Field      SweepField
	Before     time.Time
	CanceledAt *time.Time
	Metadata   map[string]any
	At         time.Time
}

// SweepResults counts rows moved by each step of one sweep pass.
type SweepResults struct {
	ExpiredTrials        int64 `json:"expiredTrials"`
	PastDueSubscriptions int64 `json:"pastDueSubscriptions"`
	CanceledAfterGrace   int64 `json:"canceledAfterGrace"`
}

func (r SweepResults) Total() int64 {
	return r.ExpiredTrials + r.PastDueSubscriptions + r.CanceledAfterGrace
}
