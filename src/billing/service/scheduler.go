package billing_service

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

// SweepScheduler runs the sweeper in-process on a cron schedule. A run that
// is still going when the next one fires causes that tick to be skipped.
type SweepScheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
}

func NewSweepScheduler(sweeper *Sweeper, schedule string) (*SweepScheduler, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)

	s := &SweepScheduler{cron: c, sweeper: sweeper}
	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *SweepScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.sweeper.Run(ctx); err != nil {
		pterm.DefaultLogger.Error(fmt.Sprintf("Scheduled subscription sweep failed: %v", err))
	}
}

func (s *SweepScheduler) Start() {
	pterm.DefaultLogger.Info("Starting subscription sweep scheduler")
	s.cron.Start()
}

// Stop prevents new runs. The returned context is done once a running sweep
// has finished.
func (s *SweepScheduler) Stop() context.Context {
	pterm.DefaultLogger.Info("Stopping subscription sweep scheduler...")
	return s.cron.Stop()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	pterm.DefaultLogger.Info(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	pterm.DefaultLogger.Error(fmt.Sprintf("cron: %s: %v %v", msg, err, keysAndValues))
}
