package billing_entity

// SubscriptionPlan is read-only here. Prices are Stripe price ids.
type SubscriptionPlan struct {
	ID                   string  `json:"id" gorm:"primaryKey"`
	Name                 string  `json:"name"`
	StripePriceIDMonthly *string `json:"stripe_price_id_monthly,omitempty"`
	StripePriceIDYearly  *string `json:"stripe_price_id_yearly,omitempty"`
}
