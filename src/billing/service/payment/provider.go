package payment

import "context"

// CheckoutRequest describes a one-time payment for an existing payment request.
type CheckoutRequest struct {
	RequestID   string
	Amount      int64
	Currency    string
	Description string
	OrgID       string
	ProjectID   string
	SuccessURL  string
	CancelURL   string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

type CustomerRequest struct {
	Email    string
	Name     string
	Address  *Address
	Metadata map[string]string
}

// SubscriptionCheckoutRequest starts a hosted checkout that creates a
// provider subscription for an existing customer. TrialDays 0 means no trial.
type SubscriptionCheckoutRequest struct {
	CustomerID string
	PriceID    string
	TrialDays  int64
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

// Provider defines the interface for payment processing integrations.
type Provider interface {
	// Name returns the provider identifier stored in payment metadata.
	Name() string

	// CreateCheckoutSession starts a hosted checkout. The provider must echo
	// RequestID back as the session's client reference.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)

	// SetCancelAtPeriodEnd schedules or clears the end of a provider subscription.
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error

	// CreatePortalSession returns a self-service billing portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// CreateCustomer returns the new provider customer id.
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)

	CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (CheckoutSession, error)

	// CreateSetupIntent saves a card for off-session charges without charging it.
	CreateSetupIntent(ctx context.Context, customerID string, metadata map[string]string) (SetupIntent, error)
}
