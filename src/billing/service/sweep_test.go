package billing_service

import (
	"context"
	"testing"
	"time"

	billing_entity "github.com/orbitdesk/orbitdesk-server/src/billing/entity"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSweeper_RunAt(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	expiredTrial := seedSubscription(t, repo, billing_entity.Subscription{
		Status:   billing_model.SubscriptionStatusTrialing,
		TrialEnd: day(2024, 1, 1),
	})
	runningTrial := seedSubscription(t, repo, billing_entity.Subscription{
		Status:   billing_model.SubscriptionStatusTrialing,
		TrialEnd: day(2024, 2, 1),
	})
	lapsed := seedSubscription(t, repo, billing_entity.Subscription{
		Status:           billing_model.SubscriptionStatusActive,
		CurrentPeriodEnd: ptr(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
	})
	stale := seedSubscription(t, repo, billing_entity.Subscription{
		Status:           billing_model.SubscriptionStatusPastDue,
		CurrentPeriodEnd: day(2023, 11, 1),
	})
	canceled := seedSubscription(t, repo, billing_entity.Subscription{
		Status:           billing_model.SubscriptionStatusCanceled,
		TrialEnd:         day(2023, 1, 1),
		CurrentPeriodEnd: day(2023, 1, 1),
	})

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	sweeper := NewSweeper(repo, env.SweepConfig{}, WithSweepMetrics(metrics))

	results, err := sweeper.RunAt(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, billing_model.SweepResults{ExpiredTrials: 1, PastDueSubscriptions: 1, CanceledAfterGrace: 1}, results)

	expired := mustSubscription(t, repo, expiredTrial)
	assert.Equal(t, billing_model.SubscriptionStatusExpired, expired.Status)
	assert.Equal(t, SweepStepExpireTrials, expired.Metadata[billing_model.MetaSweepStep])
	assert.Equal(t, testNow.Format(time.RFC3339), expired.Metadata[billing_model.MetaSweepRunAt])
	assert.NotEmpty(t, expired.Metadata[billing_model.MetaSweepRunID])

	assert.Equal(t, billing_model.SubscriptionStatusTrialing, mustSubscription(t, repo, runningTrial).Status)
	assert.Equal(t, billing_model.SubscriptionStatusPastDue, mustSubscription(t, repo, lapsed).Status)

	staleSub := mustSubscription(t, repo, stale)
	assert.Equal(t, billing_model.SubscriptionStatusCanceled, staleSub.Status)
	require.NotNil(t, staleSub.CanceledAt)
	assert.True(t, staleSub.CanceledAt.Equal(testNow))

	untouched := mustSubscription(t, repo, canceled)
	assert.Equal(t, billing_model.SubscriptionStatusCanceled, untouched.Status)
	assert.Nil(t, untouched.CanceledAt)
	assert.Empty(t, untouched.Metadata)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SweepTransitions.WithLabelValues(SweepStepExpireTrials)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("ok")))
}

func TestSweeper_SecondRunMovesNothing(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	seedSubscription(t, repo, billing_entity.Subscription{
		Status:   billing_model.SubscriptionStatusTrialing,
		TrialEnd: day(2024, 1, 1),
	})
	sweeper := NewSweeper(repo, env.SweepConfig{})

	first, err := sweeper.RunAt(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Total())

	second, err := sweeper.RunAt(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, billing_model.SweepResults{}, second)
}

func TestSweeper_PastDueAndGraceInOnePass(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	id := seedSubscription(t, repo, billing_entity.Subscription{
		Status:           billing_model.SubscriptionStatusActive,
		CurrentPeriodEnd: day(2023, 11, 1),
	})
	sweeper := NewSweeper(repo, env.SweepConfig{})

	results, err := sweeper.RunAt(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, billing_model.SweepResults{PastDueSubscriptions: 1, CanceledAfterGrace: 1}, results)
	assert.Equal(t, billing_model.SubscriptionStatusCanceled, mustSubscription(t, repo, id).Status)
}

func TestSweeper_GracePeriodFromConfig(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	id := seedSubscription(t, repo, billing_entity.Subscription{
		Status:           billing_model.SubscriptionStatusPastDue,
		CurrentPeriodEnd: ptr(testNow.Add(-10 * 24 * time.Hour)),
	})

	results, err := NewSweeper(repo, env.SweepConfig{GracePeriod: 30 * 24 * time.Hour}).RunAt(context.Background(), testNow)
	require.NoError(t, err)
	assert.Zero(t, results.CanceledAfterGrace)
	assert.Equal(t, billing_model.SubscriptionStatusPastDue, mustSubscription(t, repo, id).Status)

	results, err = NewSweeper(repo, env.SweepConfig{GracePeriod: 7 * 24 * time.Hour}).RunAt(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), results.CanceledAfterGrace)
	assert.Equal(t, billing_model.SubscriptionStatusCanceled, mustSubscription(t, repo, id).Status)
}

func TestSweeper_StoreFailure(t *testing.T) {
	repo := billing_repository.NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	_, err := NewSweeper(repo, env.SweepConfig{}, WithSweepMetrics(metrics)).RunAt(ctx, testNow)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("failed")))
}
