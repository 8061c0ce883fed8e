package billing_entity

import "github.com/google/uuid"

// BillingInfo maps an org to its Stripe customer. Contact fields are owned by
// onboarding; billing only fills StripeCustomerID.
type BillingInfo struct {
	OrgID            uuid.UUID `json:"org_id" gorm:"type:uuid;primaryKey"`
	StripeCustomerID string    `json:"stripe_customer_id" gorm:"index"`
	BillingEmail     *string   `json:"billing_email,omitempty"`
	BillingName      *string   `json:"billing_name,omitempty"`
	AddressLine1     *string   `json:"address_line1,omitempty"`
	AddressLine2     *string   `json:"address_line2,omitempty"`
	City             *string   `json:"city,omitempty"`
	State            *string   `json:"state,omitempty"`
	PostalCode       *string   `json:"postal_code,omitempty"`
	Country          *string   `json:"country,omitempty"`
}

func (BillingInfo) TableName() string {
	return "billing_info"
}
