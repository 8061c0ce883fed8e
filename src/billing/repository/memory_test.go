package billing_repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_TransactionRollsBack(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{ID: "pr_1"}))
	boom := errors.New("boom")

	err := repo.Transaction(context.Background(), func(s Store) error {
		ok, err := s.ClaimEvent(context.Background(), &billing_entity.WebhookEvent{EventID: "evt_1"})
		require.NoError(t, err)
		require.True(t, ok)

		applied, err := s.ApplyPaymentTransition(context.Background(), "pr_1", billing_model.PaymentTransition{
			To: billing_model.PaymentStatusPaid,
		})
		require.NoError(t, err)
		require.True(t, applied)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, repo.EventCount())
	pr, err := repo.GetPaymentRequest(context.Background(), "pr_1")
	require.NoError(t, err)
	assert.Equal(t, billing_model.PaymentStatusPending, pr.Status)
}

func TestMemoryRepository_ConditionalTransition(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{
		ID:       "pr_1",
		Status:   billing_model.PaymentStatusRefunded,
		Metadata: map[string]any{"keep": "me"},
	}))

	applied, err := repo.ApplyPaymentTransition(context.Background(), "pr_1", billing_model.PaymentTransition{
		From: []billing_model.PaymentStatus{billing_model.PaymentStatusPending},
		To:   billing_model.PaymentStatusPaid,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.ApplyPaymentTransition(context.Background(), "pr_missing", billing_model.PaymentTransition{To: billing_model.PaymentStatusPaid})
	require.NoError(t, err)
	assert.False(t, applied)

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	applied, err = repo.ApplyPaymentTransition(context.Background(), "pr_1", billing_model.PaymentTransition{
		PaidAt:   &first,
		Metadata: map[string]any{"added": 3},
	})
	require.NoError(t, err)
	require.True(t, applied)

	later := first.Add(time.Hour)
	_, err = repo.ApplyPaymentTransition(context.Background(), "pr_1", billing_model.PaymentTransition{PaidAt: &later})
	require.NoError(t, err)

	pr, err := repo.GetPaymentRequest(context.Background(), "pr_1")
	require.NoError(t, err)
	assert.Equal(t, billing_model.PaymentStatusRefunded, pr.Status)
	assert.Equal(t, "me", pr.Metadata["keep"])
	assert.Equal(t, float64(3), pr.Metadata["added"])
	require.NotNil(t, pr.PaidAt)
	assert.True(t, pr.PaidAt.Equal(first))
}

func TestMemoryRepository_FindByMetadataReturnsNewest(t *testing.T) {
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{
		ID: "pr_old", CreatedAt: base, Metadata: map[string]any{"checkoutSessionId": "cs_1"},
	}))
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{
		ID: "pr_new", CreatedAt: base.Add(time.Hour), Metadata: map[string]any{"checkoutSessionId": "cs_1"},
	}))

	pr, err := repo.FindPaymentRequestByMetadata(context.Background(), "checkoutSessionId", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "pr_new", pr.ID)

	_, err = repo.FindPaymentRequestByMetadata(context.Background(), "checkoutSessionId", "cs_2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReturnedRowsAreCopies(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{
		ID: "pr_1", Metadata: map[string]any{"a": "b"},
	}))

	pr, err := repo.GetPaymentRequest(context.Background(), "pr_1")
	require.NoError(t, err)
	pr.Metadata["a"] = "changed"
	pr.Status = billing_model.PaymentStatusPaid

	again, err := repo.GetPaymentRequest(context.Background(), "pr_1")
	require.NoError(t, err)
	assert.Equal(t, "b", again.Metadata["a"])
	assert.Equal(t, billing_model.PaymentStatusPending, again.Status)
}

func TestMemoryRepository_RollbackKeepsOutsideWrites(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	trial := &billing_entity.Subscription{Status: billing_model.SubscriptionStatusTrialing, TrialEnd: &past}
	require.NoError(t, repo.CreateSubscription(trial))
	require.NoError(t, repo.CreatePaymentRequest(&billing_entity.PaymentRequest{ID: "pr_1"}))
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(s Store) error {
		_, err := s.ClaimEvent(ctx, &billing_entity.WebhookEvent{EventID: "evt_1"})
		require.NoError(t, err)

		moved, err := repo.SweepSubscriptions(ctx, billing_model.SweepStep{
			Name:   "expired_trials",
			From:   billing_model.SubscriptionStatusTrialing,
			To:     billing_model.SubscriptionStatusExpired,
			Field:  billing_model.SweepFieldTrialEnd,
			Before: now,
			At:     now,
		})
		require.NoError(t, err)
		require.Equal(t, int64(1), moved)

		applied, err := repo.ApplyPaymentTransition(ctx, "pr_1", billing_model.PaymentTransition{To: billing_model.PaymentStatusPendingPayment})
		require.NoError(t, err)
		require.True(t, applied)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, repo.EventCount())
	sub, err := repo.GetSubscription(trial.ID)
	require.NoError(t, err)
	assert.Equal(t, billing_model.SubscriptionStatusExpired, sub.Status)
	pr, err := repo.GetPaymentRequest(ctx, "pr_1")
	require.NoError(t, err)
	assert.Equal(t, billing_model.PaymentStatusPendingPayment, pr.Status)
}

func TestMemoryRepository_RollbackRestoresFirstPreImage(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	orgID := uuid.New()
	sub := &billing_entity.Subscription{OrgID: orgID, Status: billing_model.SubscriptionStatusActive}
	require.NoError(t, repo.CreateSubscription(sub))
	var inserted uuid.UUID

	err := repo.Transaction(ctx, func(s Store) error {
		for _, to := range []billing_model.SubscriptionStatus{billing_model.SubscriptionStatusPastDue, billing_model.SubscriptionStatusCanceled} {
			applied, err := s.ApplySubscriptionTransition(ctx, sub.ID, billing_model.SubscriptionTransition{To: to})
			require.NoError(t, err)
			require.True(t, applied)
		}
		require.NoError(t, s.SaveBillingCustomer(ctx, orgID, "cus_1"))
		row := &billing_entity.Subscription{OrgID: orgID}
		require.NoError(t, s.InsertSubscription(ctx, row))
		inserted = row.ID
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := repo.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, billing_model.SubscriptionStatusActive, got.Status)
	_, err = repo.GetSubscription(inserted)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetBillingInfo(ctx, orgID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ExceptPredicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	paused := &billing_entity.Subscription{Status: "paused"}
	canceled := &billing_entity.Subscription{Status: billing_model.SubscriptionStatusCanceled}
	require.NoError(t, repo.CreateSubscription(paused))
	require.NoError(t, repo.CreateSubscription(canceled))

	cancel := billing_model.SubscriptionTransition{
		Except: billing_model.TerminalSubscriptionStatuses,
		To:     billing_model.SubscriptionStatusCanceled,
	}
	applied, err := repo.ApplySubscriptionTransition(ctx, paused.ID, cancel)
	require.NoError(t, err)
	assert.True(t, applied)

	cancel.To = billing_model.SubscriptionStatusActive
	applied, err = repo.ApplySubscriptionTransition(ctx, canceled.ID, cancel)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMemoryRepository_LinksProviderReferencesOnce(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sub := &billing_entity.Subscription{Status: billing_model.SubscriptionStatusTrialing}
	require.NoError(t, repo.CreateSubscription(sub))

	for _, id := range []string{"sub_first", "sub_second"} {
		_, err := repo.ApplySubscriptionTransition(ctx, sub.ID, billing_model.SubscriptionTransition{
			StripeSubscriptionID: &id,
			StripeCustomerID:     &id,
		})
		require.NoError(t, err)
	}

	got, err := repo.GetSubscription(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_first", *got.StripeSubscriptionID)
	assert.Equal(t, "sub_first", *got.StripeCustomerID)
}

func TestMemoryRepository_SharedCustomerPicksLowestOrg(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	for _, org := range []uuid.UUID{high, low} {
		repo.SaveBillingInfo(billing_entity.BillingInfo{OrgID: org, StripeCustomerID: "cus_shared"})
		require.NoError(t, repo.CreateSubscription(&billing_entity.Subscription{OrgID: org, Status: billing_model.SubscriptionStatusActive}))
	}

	for range 20 {
		sub, err := repo.FindLiveSubscriptionByCustomer(ctx, "cus_shared")
		require.NoError(t, err)
		assert.Equal(t, low, sub.OrgID)
	}
}

func TestMemoryRepository_SaveBillingCustomerKeepsContact(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	orgID := uuid.New()
	email := "billing@example.com"
	repo.SaveBillingInfo(billing_entity.BillingInfo{OrgID: orgID, BillingEmail: &email})

	require.NoError(t, repo.SaveBillingCustomer(ctx, orgID, "cus_1"))

	info, err := repo.GetBillingInfo(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", info.StripeCustomerID)
	assert.Equal(t, &email, info.BillingEmail)
}
