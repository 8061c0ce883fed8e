package ratelimit_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

var ErrInvalidLimit = errors.New("rate limit max and window must be positive")

// Decision is the outcome of one admission check. ResetAt is when the oldest
// request in the window expires and is nil when the check failed open.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	ResetAt   *time.Time `json:"resetAt"`
}

// Limiter evaluates a sliding window of max requests per window for key.
// Backends return an error instead of guessing; Check turns that into a
// fail-open decision.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, max int, window time.Duration) (Decision, error)
}

// Key namespaces identifier under action so actions never share a budget.
func Key(action, identifier string) string {
	return fmt.Sprintf("%s:%s", action, identifier)
}

// FailOpen is the decision used whenever the backend cannot answer.
func FailOpen(max int) Decision {
	return Decision{Allowed: true, Remaining: max, ResetAt: nil}
}

// Check asks limiter for a decision and fails open on any error.
func Check(ctx context.Context, limiter Limiter, key string, max int, windowSeconds int) Decision {
	if limiter == nil {
		return FailOpen(max)
	}

	decision, err := limiter.CheckLimit(ctx, key, max, time.Duration(windowSeconds)*time.Second)
	if err != nil {
		pterm.DefaultLogger.Warn(fmt.Sprintf("Rate limit check for %s failed, allowing request: %v", key, err))
		return FailOpen(max)
	}
	return decision
}
