package ratelimit_service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"
)

const (
	shardCount = 32
	// compactConcurrency bounds how many shards are compacted at once.
	compactConcurrency = 4
)

// slidingLog is a fixed-size circular log of the accepted request times for
// one key. It never holds more than max entries.
type slidingLog struct {
	times  []time.Time
	head   int
	size   int
	window time.Duration
}

func (l *slidingLog) at(i int) time.Time {
	return l.times[(l.head+i)%len(l.times)]
}

// evict drops every entry at or before now-window.
func (l *slidingLog) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	for l.size > 0 && !l.at(0).After(cutoff) {
		l.head = (l.head + 1) % len(l.times)
		l.size--
	}
}

// resize keeps the newest entries when max changes between calls.
func (l *slidingLog) resize(max int) {
	if len(l.times) == max {
		return
	}
	keep := min(l.size, max)
	times := make([]time.Time, max)
	for i := range keep {
		times[i] = l.at(l.size - keep + i)
	}
	l.times, l.head, l.size = times, 0, keep
}

func (l *slidingLog) take(now time.Time, max int, window time.Duration) Decision {
	l.window = window
	l.resize(max)
	l.evict(now)

	if l.size >= max {
		reset := l.at(0).Add(window)
		return Decision{Allowed: false, Remaining: 0, ResetAt: &reset}
	}

	l.times[(l.head+l.size)%len(l.times)] = now
	l.size++
	reset := l.at(0).Add(window)
	return Decision{Allowed: true, Remaining: max - l.size, ResetAt: &reset}
}

type shard struct {
	mu   sync.Mutex
	logs map[string]*slidingLog
}

// MemoryLimiter keeps one sliding log per key in process. Keys are spread over
// shards so checks on different keys rarely contend. Idle keys are removed by
// a background compaction pass instead of on the request path.
type MemoryLimiter struct {
	shards [shardCount]shard
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMemoryLimiter() *MemoryLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	l := &MemoryLimiter{now: time.Now, ctx: ctx, cancel: cancel}
	for i := range l.shards {
		l.shards[i].logs = map[string]*slidingLog{}
	}
	return l
}

// WithClock replaces the time source. Used by tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}

func (l *MemoryLimiter) CheckLimit(ctx context.Context, key string, max int, window time.Duration) (Decision, error) {
	if max <= 0 || window <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.logs[key]
	if !ok {
		log = &slidingLog{}
		s.logs[key] = log
	}
	return log.take(l.now(), max, window), nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.logs)
		s.mu.Unlock()
	}
	return n
}

// Compact removes keys whose logs have no entry left inside their window.
func (l *MemoryLimiter) Compact(ctx context.Context) (int, error) {
	now := l.now()
	removed := make([]int, shardCount)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(compactConcurrency)
	for i := range l.shards {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := &l.shards[i]
			s.mu.Lock()
			defer s.mu.Unlock()
			for key, log := range s.logs {
				log.evict(now)
				if log.size == 0 {
					delete(s.logs, key)
					removed[i]++
				}
			}
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range removed {
		total += n
	}
	return total, err
}

// Start runs Compact every interval until Stop.
func (l *MemoryLimiter) Start(interval time.Duration) {
	l.wg.Add(1)
	go l.run(interval)
	pterm.DefaultLogger.Info("Rate limit compaction started")
}

func (l *MemoryLimiter) Stop() {
	l.cancel()
	l.wg.Wait()
	pterm.DefaultLogger.Info("Rate limit compaction stopped")
}

func (l *MemoryLimiter) run(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Compact(l.ctx); err != nil && err != context.Canceled {
				pterm.DefaultLogger.Error("Rate limit compaction failed: " + err.Error())
			}
		}
	}
}
