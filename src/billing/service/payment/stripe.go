package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/stripe/stripe-go/v84"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/setupintent"
	"github.com/stripe/stripe-go/v84/subscription"
)

// StripeProvider implements the Provider interface for Stripe payments.
type StripeProvider struct {
	configured bool
}

func NewStripeProvider(cfg env.BillingConfig) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey
	return &StripeProvider{configured: cfg.StripeSecretKey != ""}
}

func (s *StripeProvider) Name() string {
	return "stripe"
}

func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if !s.configured {
		return CheckoutSession{}, errors.New("stripe is not configured")
	}

	metadata := map[string]string{
		"request_id": req.RequestID,
	}
	if req.OrgID != "" {
		metadata["org_id"] = req.OrgID
	}
	if req.ProjectID != "" {
		metadata["project_id"] = req.ProjectID
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.RequestID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	if !s.configured {
		return errors.New("stripe is not configured")
	}

	// The subscription stays active until the period ends.
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	if _, err := subscription.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("failed to update stripe subscription: %w", err)
	}
	return nil
}

func (s *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if !s.configured {
		return "", errors.New("stripe is not configured")
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe billing portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripeProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	if !s.configured {
		return "", errors.New("stripe is not configured")
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(req.Email),
		Name:     stripe.String(req.Name),
		Metadata: req.Metadata,
	}
	if req.Address != nil {
		country := req.Address.Country
		if country == "" {
			country = "US"
		}
		params.Address = &stripe.AddressParams{
			Line1:      stripe.String(req.Address.Line1),
			Line2:      stripe.String(req.Address.Line2),
			City:       stripe.String(req.Address.City),
			State:      stripe.String(req.Address.State),
			PostalCode: stripe.String(req.Address.PostalCode),
			Country:    stripe.String(country),
		}
	}
	params.Context = ctx

	cus, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cus.ID, nil
}

func (s *StripeProvider) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (CheckoutSession, error) {
	if !s.configured {
		return CheckoutSession{}, errors.New("stripe is not configured")
	}

	subscriptionData := &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: req.Metadata,
	}
	if req.TrialDays > 0 {
		subscriptionData.TrialPeriodDays = stripe.Int64(req.TrialDays)
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: subscriptionData,
		SuccessURL:       stripe.String(req.SuccessURL),
		CancelURL:        stripe.String(req.CancelURL),
		Metadata:         req.Metadata,
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to create stripe subscription checkout: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeProvider) CreateSetupIntent(ctx context.Context, customerID string, metadata map[string]string) (SetupIntent, error) {
	if !s.configured {
		return SetupIntent{}, errors.New("stripe is not configured")
	}

	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Usage:              stripe.String(string(stripe.SetupIntentUsageOffSession)),
		Metadata:           metadata,
	}
	params.Context = ctx

	intent, err := setupintent.New(params)
	if err != nil {
		return SetupIntent{}, fmt.Errorf("failed to create stripe setup intent: %w", err)
	}
	return SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}
