package ratelimit_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*MemoryLimiter, *clock) {
	c := &clock{now: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	return NewMemoryLimiter().WithClock(c.Now), c
}

func TestMemoryLimiter_SlidingWindow(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()
	start := c.Now()

	for i := range 3 {
		d, err := l.CheckLimit(ctx, "payments:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		require.NotNil(t, d.ResetAt)
		assert.Equal(t, start.Add(time.Minute), *d.ResetAt)
		c.Advance(10 * time.Second)
	}

	d, err := l.CheckLimit(ctx, "payments:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, start.Add(time.Minute), *d.ResetAt)

	// The first request leaves the window exactly one minute after it was made.
	c.Advance(30 * time.Second)
	d, err = l.CheckLimit(ctx, "payments:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, start.Add(10*time.Second).Add(time.Minute), *d.ResetAt)
}

func TestMemoryLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()

	for range 2 {
		_, err := l.CheckLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
	}
	for range 5 {
		c.Advance(time.Second)
		d, err := l.CheckLimit(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	}

	c.Advance(time.Minute)
	d, err := l.CheckLimit(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	d, err := l.CheckLimit(ctx, Key(ActionPayments, "a"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.CheckLimit(ctx, Key(ActionOrgManage, "a"), 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.CheckLimit(ctx, Key(ActionPayments, "a"), 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryLimiter_ConcurrentChecksNeverExceedMax(t *testing.T) {
	l, _ := newTestLimiter()
	const max = 10

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.CheckLimit(context.Background(), "hot", max, time.Minute)
			assert.NoError(t, err)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, allowed)
}

func TestMemoryLimiter_InvalidLimit(t *testing.T) {
	l, _ := newTestLimiter()

	_, err := l.CheckLimit(context.Background(), "k", 0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidLimit)
	_, err = l.CheckLimit(context.Background(), "k", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestMemoryLimiter_Compact(t *testing.T) {
	l, c := newTestLimiter()
	ctx := context.Background()

	for i := range 40 {
		_, err := l.CheckLimit(ctx, fmt.Sprintf("idle:%d", i), 5, time.Minute)
		require.NoError(t, err)
	}
	c.Advance(30 * time.Second)
	_, err := l.CheckLimit(ctx, "busy", 5, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 41, l.Len())

	c.Advance(31 * time.Second)
	removed, err := l.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, removed)
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_StartStop(t *testing.T) {
	l, c := newTestLimiter()
	_, err := l.CheckLimit(context.Background(), "k", 1, time.Second)
	require.NoError(t, err)
	c.Advance(time.Minute)

	l.Start(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	l.Stop()
}

type brokenLimiter struct{}

func (brokenLimiter) CheckLimit(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("backend down")
}

func TestCheck_FailsOpen(t *testing.T) {
	d := Check(context.Background(), brokenLimiter{}, "payments:1.2.3.4", 20, 60)
	assert.Equal(t, Decision{Allowed: true, Remaining: 20}, d)

	d = Check(context.Background(), nil, "payments:1.2.3.4", 20, 60)
	assert.True(t, d.Allowed)
	assert.Nil(t, d.ResetAt)
}

func TestKeyAndLimits(t *testing.T) {
	assert.Equal(t, "org-manage:user-1", Key(ActionOrgManage, "user-1"))
	assert.Equal(t, Limit{Max: 20, Window: time.Minute}, LimitFor(ActionPayments))
	assert.Equal(t, DefaultLimits[ActionDefault], LimitFor("unknown-action"))
	assert.Equal(t, 3600, LimitFor(ActionOrgOnboard).WindowSeconds())
}
