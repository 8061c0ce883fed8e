package billing_service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	billing_model "github.com/orbitdesk/orbitdesk-server/src/billing/model"
	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/pterm/pterm"
)

const (
	SweepStepExpireTrials     = "expire_trials"
	SweepStepPastDue          = "past_due_after_period_end"
	SweepStepCancelAfterGrace = "cancel_after_grace"
	DefaultGracePeriod        = 30 * 24 * time.Hour
)

// Sweeper applies the time-based subscription transitions. Every step is a
// status-scoped bulk update driven by an absolute time, so runs may repeat,
// overlap or run late and still converge.
type Sweeper struct {
	repo    billing_repository.Repository
	grace   time.Duration
	now     func() time.Time
	metrics *Metrics
}

type SweeperOption func(*Sweeper)

func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func WithSweepMetrics(m *Metrics) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func NewSweeper(repo billing_repository.Repository, cfg env.SweepConfig, opts ...SweeperOption) *Sweeper {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	s := &Sweeper{repo: repo, grace: grace, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) Run(ctx context.Context) (billing_model.SweepResults, error) {
	return s.RunAt(ctx, s.now())
}

// RunAt performs one pass as of now. Steps run in order so a row moved to
// past_due by the second step is considered by the third in the same pass.
func (s *Sweeper) RunAt(ctx context.Context, now time.Time) (billing_model.SweepResults, error) {
	var results billing_model.SweepResults
	runID := uuid.New().String()

	steps := []struct {
		step  billing_model.SweepStep
		count *int64
	}{
		{
			step: billing_model.SweepStep{
				Name:   SweepStepExpireTrials,
				From:   billing_model.SubscriptionStatusTrialing,
				To:     billing_model.SubscriptionStatusExpired,
				Field:  billing_model.SweepFieldTrialEnd,
				Before: now,
			},
			count: &results.ExpiredTrials,
		},
		{
			step: billing_model.SweepStep{
				Name:   SweepStepPastDue,
				From:   billing_model.SubscriptionStatusActive,
				To:     billing_model.SubscriptionStatusPastDue,
				Field:  billing_model.SweepFieldCurrentPeriodEnd,
				Before: now,
			},
			count: &results.PastDueSubscriptions,
		},
		{
			step: billing_model.SweepStep{
				Name:       SweepStepCancelAfterGrace,
				From:       billing_model.SubscriptionStatusPastDue,
				To:         billing_model.SubscriptionStatusCanceled,
				Field:      billing_model.SweepFieldCurrentPeriodEnd,
				Before:     now.Add(-s.grace),
				CanceledAt: &now,
			},
			count: &results.CanceledAfterGrace,
		},
	}

	for _, st := range steps {
		st.step.At = now
		st.step.Metadata = map[string]any{
			billing_model.MetaSweepRunID: runID,
			billing_model.MetaSweepRunAt: now.UTC().Format(time.RFC3339),
			billing_model.MetaSweepStep:  st.step.Name,
		}

		moved, err := s.repo.SweepSubscriptions(ctx, st.step)
		if err != nil {
			s.metrics.sweepRun("failed")
			return results, fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
		*st.count = moved
		s.metrics.sweep(st.step.Name, moved)
	}

	s.metrics.sweepRun("ok")
	pterm.DefaultLogger.Info(fmt.Sprintf(
		"Subscription sweep %s at %s: expired=%d past_due=%d canceled=%d",
		runID, now.UTC().Format(time.RFC3339), results.ExpiredTrials, results.PastDueSubscriptions, results.CanceledAfterGrace,
	))
	return results, nil
}
