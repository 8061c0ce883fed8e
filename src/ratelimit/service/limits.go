package ratelimit_service

import "time"

const (
	ActionOrgInvite     = "org-invite"
	ActionOrgOnboard    = "org-onboard"
	ActionOrgManage     = "org-manage"
	ActionPayments      = "payments"
	ActionStripeWebhook = "stripe-webhook"
	ActionDefault       = "default"
)

type Limit struct {
	Max    int
	Window time.Duration
}

func (l Limit) WindowSeconds() int {
	return int(l.Window / time.Second)
}

// DefaultLimits is the budget per action.
var DefaultLimits = map[string]Limit{
	ActionOrgInvite:     {Max: 10, Window: 60 * time.Second},
	ActionOrgOnboard:    {Max: 5, Window: time.Hour},
	ActionOrgManage:     {Max: 20, Window: 60 * time.Second},
	ActionPayments:      {Max: 20, Window: 60 * time.Second},
	ActionStripeWebhook: {Max: 100, Window: 60 * time.Second},
	ActionDefault:       {Max: 60, Window: 60 * time.Second},
}

// LimitFor returns the budget for action, or the default budget.
func LimitFor(action string) Limit {
	if l, ok := DefaultLimits[action]; ok {
		return l
	}
	return DefaultLimits[ActionDefault]
}
