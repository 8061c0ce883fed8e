package billing_service

import (
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

type ManageAction string

const (
	ManageActionPortal ManageAction = "portal"
	ManageActionCancel ManageAction = "cancel"
	ManageActionResume ManageAction = "resume"
)

var (
	ErrNotBillingManager    = errors.New("only org owners and admins can manage billing")
	ErrNoSubscription       = errors.New("org has no subscription")
	ErrSubscriptionTerminal = errors.New("subscription has ended")
	ErrNoProviderReference  = errors.New("subscription is not linked to the payment provider")
	ErrUnknownManageAction  = errors.New("unknown subscription action")
)

type ManageResult struct {
	Action            ManageAction `json:"action"`
	URL               string       `json:"url,omitempty"`
	Status            string       `json:"status"`
	CancelAtPeriodEnd bool         `json:"cancelAtPeriodEnd"`
}

type ManageService struct {
	repo      billing_repository.Repository
	provider  payment.Provider
	returnURL string
	now       func() time.Time
}

func NewManageService(repo billing_repository.Repository, provider payment.Provider, cfg env.BillingConfig) *ManageService {
	return &ManageService{
		repo:      repo,
		provider:  provider,
		returnURL: cfg.PortalReturnURL,
		now:       time.Now,
	}
}

func (s *ManageService) Manage(ctx context.Context, userID, orgID uuid.UUID, action ManageAction, returnURL string) (ManageResult, error) {
	if s.provider == nil {
		return ManageResult{}, ErrProviderNotConfigured
	}

	member, err := s.repo.GetOrgMember(ctx, orgID, userID)
	if errors.Is(err, billing_repository.ErrNotFound) {
		return ManageResult{}, ErrNotBillingManager
	}
	if err != nil {
		return ManageResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if !member.CanManageBilling() {
		return ManageResult{}, ErrNotBillingManager
	}

	sub, err := s.repo.FindSubscriptionByOrg(ctx, orgID)
	if errors.Is(err, billing_repository.ErrNotFound) {
		return ManageResult{}, ErrNoSubscription
	}
	if err != nil {
		return ManageResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	switch action {
	case ManageActionPortal:
		return s.portal(ctx, sub, returnURL)
	case ManageActionCancel:
		return s.setCancelAtPeriodEnd(ctx, userID, sub, true)
	case ManageActionResume:
		return s.setCancelAtPeriodEnd(ctx, userID, sub, false)
	default:
		return ManageResult{}, fmt.Errorf("%w: %q", ErrUnknownManageAction, action)
	}
}

func (s *ManageService) portal(ctx context.Context, sub *billing_entity.Subscription, returnURL string) (ManageResult, error) {
	if sub.StripeCustomerID == nil || *sub.StripeCustomerID == "" {
		return ManageResult{}, ErrNoProviderReference
	}
	if returnURL == "" {
		returnURL = s.returnURL
	}

	url, err := s.provider.CreatePortalSession(ctx, *sub.StripeCustomerID, returnURL)
	if err != nil {
		return ManageResult{}, err
	}
	return ManageResult{
		Action:            ManageActionPortal,
		URL:               url,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

// setCancelAtPeriodEnd updates the provider first. The local row then follows
// and the customer.subscription.updated webhook confirms the same value.
func (s *ManageService) setCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, sub *billing_entity.Subscription, cancel bool) (ManageResult, error) {
	action := ManageActionResume
	metaKey := billing_model.MetaResumedBy
	if cancel {
		action = ManageActionCancel
		metaKey = billing_model.MetaCanceledBy
	}

	if sub.Status.IsTerminal() {
		return ManageResult{}, fmt.Errorf("%w: status is %s", ErrSubscriptionTerminal, sub.Status)
	}
	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		return ManageResult{}, ErrNoProviderReference
	}

	if err := s.provider.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, cancel); err != nil {
		return ManageResult{}, err
	}

	applied, err := s.repo.ApplySubscriptionTransition(ctx, sub.ID, billing_model.SubscriptionTransition{
		Except:            billing_model.TerminalSubscriptionStatuses,
		CancelAtPeriodEnd: &cancel,
		Metadata:          map[string]any{metaKey: userID.String()},
		At:                s.now(),
	})
	if err != nil {
		return ManageResult{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if !applied {
		return ManageResult{}, ErrSubscriptionTerminal
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Subscription %s cancel_at_period_end=%v by user %s", sub.ID, cancel, userID))
	return ManageResult{
		Action:            action,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: cancel,
	}, nil
}
