package billing_service

import (
	"cmp"
	"context"
	"fmt"

	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/pterm/pterm"
)

type SetupIntentInput struct {
	Email       string
	CompanyName string
	BillingName string
	Address     *payment.Address
}

type SetupIntentResult struct {
	Ok            bool   `json:"ok"`
	ClientSecret  string `json:"clientSecret"`
	CustomerID    string `json:"customerId"`
	SetupIntentID string `json:"setupIntentId"`
}

// SetupIntentService collects a card during signup, before any org exists.
// The customer is tagged pending_signup and linked to an org later by
// subscription create.
type SetupIntentService struct {
	provider payment.Provider
}

func NewSetupIntentService(provider payment.Provider) *SetupIntentService {
	return &SetupIntentService{provider: provider}
}

func (s *SetupIntentService) Create(ctx context.Context, in SetupIntentInput) (SetupIntentResult, error) {
	if s.provider == nil {
		return SetupIntentResult{}, ErrProviderNotConfigured
	}

	metadata := map[string]string{
		"pending_signup": "true",
		"company_name":   in.CompanyName,
	}

	customerID, err := s.provider.CreateCustomer(ctx, payment.CustomerRequest{
		Email:    in.Email,
		Name:     cmp.Or(in.BillingName, in.CompanyName),
		Address:  in.Address,
		Metadata: metadata,
	})
	if err != nil {
		return SetupIntentResult{}, err
	}

	intent, err := s.provider.CreateSetupIntent(ctx, customerID, metadata)
	if err != nil {
		return SetupIntentResult{}, err
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Setup intent %s created for customer %s", intent.ID, customerID))
	return SetupIntentResult{
		Ok:            true,
		ClientSecret:  intent.ClientSecret,
		CustomerID:    customerID,
		SetupIntentID: intent.ID,
	}, nil
}
