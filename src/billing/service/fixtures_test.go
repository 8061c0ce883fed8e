package billing_service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/billing/service/payment"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

var testNow = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func signedEvent(t *testing.T, id string, typ stripe.EventType, object any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      id,
		"object":  "event",
		"type":    typ,
		"created": testNow.Add(-time.Minute).Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return body, SignPayload(testSecret, testNow.Unix(), body)
}

func newTestEngine(repo billing_repository.Repository, opts ...EngineOption) *WebhookEngine {
	opts = append([]EngineOption{WithClock(func() time.Time { return testNow })}, opts...)
	return NewWebhookEngine(repo, env.BillingConfig{StripeWebhookSecret: testSecret}, opts...)
}

func seedPayment(t *testing.T, repo *billing_repository.MemoryRepository, id string, status billing_model.PaymentStatus, meta map[string]any) {
	t.Helper()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{
		ID:       id,
		Amount:   5000,
		Currency: "usd",
		Status:   status,
		Metadata: meta,
	}))
}

func seedSubscription(t *testing.T, repo *billing_repository.MemoryRepository, sub billing_entity.Subscription) uuid.UUID {
	t.Helper()
	if sub.OrgID == uuid.Nil {
		sub.OrgID = uuid.New()
	}
	require.NoError(t, repo.CreateSubscription(&sub))
	return sub.ID
}

func ptr[T any](v T) *T {
	return &v
}

func mustPayment(t *testing.T, repo billing_repository.Store, id string) *billing_entity.PaymentRequest {
	t.Helper()
	pr, err := repo.GetPaymentRequest(context.Background(), id)
	require.NoError(t, err)
	return pr
}

func mustSubscription(t *testing.T, repo *billing_repository.MemoryRepository, id uuid.UUID) *billing_entity.Subscription {
	t.Helper()
	sub, err := repo.GetSubscription(id)
	require.NoError(t, err)
	return sub
}

// flakyRepository fails every payment write made inside a transaction while
// fail is set.
type flakyRepository struct {
	*billing_repository.MemoryRepository
	fail bool
}

func (f *flakyRepository) Transaction(ctx context.Context, fn func(billing_repository.Store) error) error {
	return f.MemoryRepository.Transaction(ctx, func(s billing_repository.Store) error {
		return fn(flakyStore{Store: s, fail: f.fail})
	})
}

type flakyStore struct {
	billing_repository.Store
	fail bool
}

func (s flakyStore) ApplyPaymentTransition(ctx context.Context, id string, t billing_model.PaymentTransition) (bool, error) {
	if s.fail {
		return false, errors.New("connection reset by peer")
	}
	return s.Store.ApplyPaymentTransition(ctx, id, t)
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return r.err
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

type fakeProvider struct {
	mu            sync.Mutex
	checkouts     []payment.CheckoutRequest
	subCheckouts  []payment.SubscriptionCheckoutRequest
	customers     []payment.CustomerRequest
	setupIntentOf []string
	cancelCalls   map[string]bool
	portalFor     string
	err           error
}

func (f *fakeProvider) Name() string { return "stripe" }

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payment.CheckoutSession{}, f.err
	}
	f.checkouts = append(f.checkouts, req)
	return payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeProvider) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.cancelCalls == nil {
		f.cancelCalls = map[string]bool{}
	}
	f.cancelCalls[subscriptionID] = cancel
	return nil
}

func (f *fakeProvider) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.portalFor = customerID
	return "https://billing.stripe.com/p/session/test_1", nil
}

func (f *fakeProvider) CreateCustomer(_ context.Context, req payment.CustomerRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.customers = append(f.customers, req)
	return "cus_new", nil
}

func (f *fakeProvider) CreateSubscriptionCheckout(_ context.Context, req payment.SubscriptionCheckoutRequest) (payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payment.CheckoutSession{}, f.err
	}
	f.subCheckouts = append(f.subCheckouts, req)
	return payment.CheckoutSession{ID: "cs_sub_1", URL: "https://checkout.stripe.com/c/pay/cs_sub_1"}, nil
}

func (f *fakeProvider) CreateSetupIntent(_ context.Context, customerID string, _ map[string]string) (payment.SetupIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payment.SetupIntent{}, f.err
	}
	f.setupIntentOf = append(f.setupIntentOf, customerID)
	return payment.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret_x"}, nil
}
