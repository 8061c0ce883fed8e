package billing_model

// WebhookResponse is returned for every authenticated webhook delivery.
type WebhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SweepResponse struct {
	Ok        bool         `json:"ok"`
	Timestamp string       `json:"timestamp"`
	Results   SweepResults `json:"results"`
}

// CheckoutBody carries the amount in major units (49.99 is $49.99).
type CheckoutBody struct {
	RequestID   string  `json:"requestId" validate:"required,max=255"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Description string  `json:"description,omitempty" validate:"omitempty,max=500"`
	OrgID       string  `json:"orgId,omitempty" validate:"omitempty,uuid"`
	ProjectID   string  `json:"projectId,omitempty" validate:"omitempty,max=255"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type ManageSubscriptionBody struct {
	OrgID     string `json:"orgId" validate:"required,uuid"`
	Action    string `json:"action" validate:"required,oneof=portal cancel resume"`
	ReturnURL string `json:"returnUrl,omitempty" validate:"omitempty,url"`
}

type CreateSubscriptionBody struct {
	OrgID        string `json:"orgId" validate:"required,uuid"`
	PlanID       string `json:"planId" validate:"required,max=255"`
	BillingCycle string `json:"billingCycle,omitempty" validate:"omitempty,oneof=monthly yearly"`
	SuccessURL   string `json:"successUrl,omitempty" validate:"omitempty,url"`
	CancelURL    string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

type BillingAddress struct {
	Line1      string `json:"line1,omitempty" validate:"omitempty,max=255"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=255"`
	City       string `json:"city,omitempty" validate:"omitempty,max=255"`
	State      string `json:"state,omitempty" validate:"omitempty,max=255"`
	PostalCode string `json:"postalCode,omitempty" validate:"omitempty,max=32"`
	Country    string `json:"country,omitempty" validate:"omitempty,len=2,alpha"`
}

type SetupIntentBody struct {
	Email          string          `json:"email" validate:"required,email"`
	CompanyName    string          `json:"companyName,omitempty" validate:"omitempty,max=255"`
	BillingName    string          `json:"billingName,omitempty" validate:"omitempty,max=255"`
	BillingAddress *BillingAddress `json:"billingAddress,omitempty"`
}
