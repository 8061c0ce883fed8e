package billing_service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
)

var (
	ErrProviderNotConfigured = errors.New("payment provider is not configured")
	ErrPaymentNotPayable     = errors.New("payment request is not awaiting payment")
	ErrCheckoutMismatch      = errors.New("checkout does not match the payment request")
)

const (
	defaultCurrency    = "usd"
	defaultDescription = "Payment request"
)

// CheckoutInput.Amount is in major currency units.
type CheckoutInput struct {
	RequestID   string
	Amount      float64
	Currency    string
	Description string
	OrgID       string
	ProjectID   string
}

type CheckoutService struct {
	repo       billing_repository.Repository
	provider   payment.Provider
	successURL string
	cancelURL  string
	now        func() time.Time
}

// NewCheckoutService accepts a nil provider; every call then fails with
// ErrProviderNotConfigured.
func NewCheckoutService(repo billing_repository.Repository, provider payment.Provider, cfg env.BillingConfig) *CheckoutService {
	return &CheckoutService{
		repo:       repo,
		provider:   provider,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		now:        time.Now,
	}
}

// MinorUnits converts a major-unit amount to cents, rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// StartCheckout opens a provider checkout for an existing payment request and
// records the session on it. The amount and currency charged are the ones
// stored on the request; a body that disagrees with them is rejected. The session id stored here is what the webhook
// resolver later matches checkout.session.completed against.
func (s *CheckoutService) StartCheckout(ctx context.Context, in CheckoutInput) (payment.CheckoutSession, error) {
	if s.provider == nil {
		return payment.CheckoutSession{}, ErrProviderNotConfigured
	}

	pr, err := s.repo.GetPaymentRequest(ctx, in.RequestID)
	if err != nil {
		return payment.CheckoutSession{}, err
	}
	if pr.Status != billing_model.PaymentStatusPending && pr.Status != billing_model.PaymentStatusPendingPayment {
		return payment.CheckoutSession{}, fmt.Errorf("%w: status is %s", ErrPaymentNotPayable, pr.Status)
	}

	amount := MinorUnits(in.Amount)
	if amount <= 0 {
		return payment.CheckoutSession{}, fmt.Errorf("%w: amount must be positive", ErrCheckoutMismatch)
	}
	if pr.Amount > 0 && amount != pr.Amount {
		return payment.CheckoutSession{}, fmt.Errorf("%w: amount %d does not match %d", ErrCheckoutMismatch, amount, pr.Amount)
	}

	currency := strings.ToLower(cmp.Or(pr.Currency, in.Currency, defaultCurrency))
	if in.Currency != "" && !strings.EqualFold(in.Currency, currency) {
		return payment.CheckoutSession{}, fmt.Errorf("%w: currency %s does not match %s", ErrCheckoutMismatch, in.Currency, currency)
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		RequestID:   in.RequestID,
		Amount:      amount,
		Currency:    currency,
		Description: cmp.Or(in.Description, pr.Description, defaultDescription),
		OrgID:       in.OrgID,
		ProjectID:   in.ProjectID,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	if err != nil {
		return payment.CheckoutSession{}, err
	}

	applied, err := s.repo.ApplyPaymentTransition(ctx, pr.ID, billing_model.PaymentTransition{
		From: []billing_model.PaymentStatus{
			billing_model.PaymentStatusPending,
			billing_model.PaymentStatusPendingPayment,
		},
		To: billing_model.PaymentStatusPendingPayment,
		Metadata: map[string]any{
			billing_model.MetaProvider:          s.provider.Name(),
			billing_model.MetaCheckoutURL:       sess.URL,
			billing_model.MetaCheckoutSessionID: sess.ID,
		},
		At: s.now(),
	})
	if err != nil {
		return payment.CheckoutSession{}, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}
	if !applied {
		return payment.CheckoutSession{}, ErrPaymentNotPayable
	}

	pterm.DefaultLogger.Info(fmt.Sprintf("Checkout session %s created for payment request %s", sess.ID, pr.ID))
	return sess, nil
}
