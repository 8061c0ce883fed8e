package billing_service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"

	TrialDays = 14
)

var (
	ErrPlanNotFound  = errors.New("subscription plan not found")
	ErrPlanNotPriced = errors.New("stripe price not configured for this plan")
)

type SubscribeInput struct {
	OrgID        uuid.UUID
	PlanID       string
	BillingCycle string
	SuccessURL   string
	CancelURL    string
}

type SubscribeResult struct {
	Ok        bool   `json:"ok"`
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// SubscribeService starts a subscription checkout for an org and keeps the
// local subscription and billing_info rows linked to the Stripe customer.
type SubscribeService struct {
	repo       billing_repository.Repository
	provider   payment.Provider
	successURL string
	cancelURL  string
	now        func() time.Time
}

func NewSubscribeService(repo billing_repository.Repository, provider payment.Provider, cfg env.BillingConfig) *SubscribeService {
	return &SubscribeService{
		repo:       repo,
		provider:   provider,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		now:        time.Now,
	}
}

func (s *SubscribeService) Subscribe(ctx context.Context, userID uuid.UUID, in SubscribeInput) (SubscribeResult, error) {
	if s.provider == nil {
		return SubscribeResult{}, ErrProviderNotConfigured
	}

	member, err := s.repo.GetOrgMember(ctx, in.OrgID, userID)
	if errors.Is(err, billing_repository.ErrNotFound) {
		return SubscribeResult{}, ErrNotBillingManager
	}
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if !member.CanManageBilling() {
		return SubscribeResult{}, ErrNotBillingManager
	}

	plan, err := s.repo.GetSubscriptionPlan(ctx, in.PlanID)
	if errors.Is(err, billing_repository.ErrNotFound) {
		return SubscribeResult{}, fmt.Errorf("%w: %s", ErrPlanNotFound, in.PlanID)
	}
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	cycle := cmp.Or(in.BillingCycle, BillingCycleMonthly)
	priceID := plan.StripePriceIDMonthly
	if cycle == BillingCycleYearly {
		priceID = plan.StripePriceIDYearly
	}
	if priceID == nil || *priceID == "" {
		return SubscribeResult{}, fmt.Errorf("%w: %s (%s)", ErrPlanNotPriced, plan.ID, cycle)
	}

	existing, err := s.repo.FindSubscriptionByOrg(ctx, in.OrgID)
	if err != nil && !errors.Is(err, billing_repository.ErrNotFound) {
		return SubscribeResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	customerID, err := s.customerFor(ctx, userID, in.OrgID, existing)
	if err != nil {
		return SubscribeResult{}, err
	}

	var trialDays int64 = TrialDays
	if existing != nil && existing.Status == billing_model.SubscriptionStatusTrialing {
		trialDays = 0
	}

	sess, err := s.provider.CreateSubscriptionCheckout(ctx, payment.SubscriptionCheckoutRequest{
		CustomerID: customerID,
		PriceID:    *priceID,
		TrialDays:  trialDays,
		Metadata: map[string]string{
			"org_id":  in.OrgID.String(),
			"plan_id": plan.ID,
		},
		SuccessURL: cmp.Or(in.SuccessURL, s.successURL),
		CancelURL:  cmp.Or(in.CancelURL, s.cancelURL),
	})
	if err != nil {
		return SubscribeResult{}, err
	}

	err = s.repo.Transaction(ctx, func(tx billing_repository.Store) error {
		if err := tx.SaveBillingCustomer(ctx, in.OrgID, customerID); err != nil {
			return err
		}
		return s.upsertLocal(ctx, tx, userID, in.OrgID, plan.ID, cycle, customerID, existing)
	})
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Subscription checkout %s created for org %s plan %s (%s)", sess.ID, in.OrgID, plan.ID, cycle))
	return SubscribeResult{Ok: true, URL: sess.URL, SessionID: sess.ID}, nil
}

// customerFor reuses the subscription's customer, then billing_info's, and
// creates one from billing_info contact fields otherwise.
func (s *SubscribeService) customerFor(ctx context.Context, userID, orgID uuid.UUID, existing *billing_entity.Subscription) (string, error) {
	if existing != nil && existing.StripeCustomerID != nil && *existing.StripeCustomerID != "" {
		return *existing.StripeCustomerID, nil
	}

	info, err := s.repo.GetBillingInfo(ctx, orgID)
	if err != nil && !errors.Is(err, billing_repository.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if info != nil && info.StripeCustomerID != "" {
		return info.StripeCustomerID, nil
	}

	req := payment.CustomerRequest{
		Metadata: map[string]string{
			"org_id":  orgID.String(),
			"user_id": userID.String(),
		},
	}
	if info != nil {
		req.Email = deref(info.BillingEmail)
		req.Name = deref(info.BillingName)
		req.Address = &payment.Address{
			Line1:      deref(info.AddressLine1),
			Line2:      deref(info.AddressLine2),
			City:       deref(info.City),
			State:      deref(info.State),
			PostalCode: deref(info.PostalCode),
			Country:    deref(info.Country),
		}
	}

	customerID, err := s.provider.CreateCustomer(ctx, req)
	if err != nil {
		return "", err
	}
	pterm.DefaultLogger.Info(fmt.Sprintf("Created Stripe customer %s for org %s", customerID, orgID))
	return customerID, nil
}

// upsertLocal gives an org without a current subscription a trialing row. A
// non-terminal row is only linked to the customer; the webhook then carries
// the provider subscription id and status.
func (s *SubscribeService) upsertLocal(ctx context.Context, tx billing_repository.Store, userID, orgID uuid.UUID, planID, cycle, customerID string, existing *billing_entity.Subscription) error {
	now := s.now()
	meta := map[string]any{
		billing_model.MetaPlanID:       planID,
		billing_model.MetaBillingCycle: cycle,
		billing_model.MetaCreatedBy:    userID.String(),
	}

	if existing == nil || existing.Status.IsTerminal() {
		trialEnd := now.Add(TrialDays * 24 * time.Hour)
		return tx.InsertSubscription(ctx, &billing_entity.Subscription{
			OrgID:            orgID,
			StripeCustomerID: &customerID,
			Status:           billing_model.SubscriptionStatusTrialing,
			TrialEnd:         &trialEnd,
			Metadata:         meta,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	_, err := tx.ApplySubscriptionTransition(ctx, existing.ID, billing_model.SubscriptionTransition{
		Except:           billing_model.TerminalSubscriptionStatuses,
		StripeCustomerID: &customerID,
		Metadata:         meta,
		At:               now,
	})
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
