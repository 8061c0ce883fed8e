package billing_model

import "slices"

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusExpired    SubscriptionStatus = "expired"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// LiveSubscriptionStatuses are the statuses an org's current subscription can hold
// while it still entitles the org to service.
var LiveSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
}

// TerminalSubscriptionStatuses are never left by webhooks, the sweep or resume.
// Transitions exclude them instead of listing allowed sources, so statuses
// the provider adds later (paused, unpaid variants) can still be moved.
var TerminalSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusCanceled,
	SubscriptionStatusExpired,
}

// IsTerminal reports whether no automatic transition may leave this status.
func (s SubscriptionStatus) IsTerminal() bool {
	return slices.Contains(TerminalSubscriptionStatuses, s)
}

func (s SubscriptionStatus) IsLive() bool {
	return slices.Contains(LiveSubscriptionStatuses, s)
}

type PaymentStatus string

const (
	PaymentStatusPending        PaymentStatus = "pending"
	PaymentStatusPendingPayment PaymentStatus = "pending_payment"
	PaymentStatusPaid           PaymentStatus = "paid"
	PaymentStatusRefunded       PaymentStatus = "refunded"
)
