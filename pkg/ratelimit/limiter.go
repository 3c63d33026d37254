package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobsync/chatgateway/internal/observability"
)

const (
	DefaultWindow           = time.Minute
	DefaultChatPerMinute    = 10
	DefaultServicePerMinute = 100

	numShards = 16
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Bucket is the observable state of one key's window.
type Bucket struct {
	WindowStart time.Time
	Count       int
	Limit       int
	Window      time.Duration
}

type bucket struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// FixedWindow is an in-memory fixed-window counter keyed by client.
type FixedWindow struct {
	limit  atomic.Int64
	window time.Duration
	now    func() time.Time
	shards [numShards]*shard
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// NewFixedWindow creates a limiter admitting limit requests per window for
// each key.
func NewFixedWindow(limit int, window time.Duration, opts ...Option) *FixedWindow {
	if window <= 0 {
		window = DefaultWindow
	}

	l := &FixedWindow{
		window: window,
		now:    time.Now,
	}
	l.limit.Store(int64(limit))
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *FixedWindow) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%numShards]
}

// Allow admits the request if key has not used up its current window.
func (l *FixedWindow) Allow(_ context.Context, key string) bool {
	s := l.shardFor(key)
	now := l.now()
	limit := int(l.limit.Load())

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || l.expired(b, now) {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
	}

	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

func (l *FixedWindow) expired(b *bucket, now time.Time) bool {
	return now.Sub(b.windowStart) >= l.window
}

// Remaining returns how many more requests key may make in its window.
func (l *FixedWindow) Remaining(key string) int {
	limit := int(l.limit.Load())
	b, ok := l.Snapshot(key)
	if !ok {
		return limit
	}
	if rem := limit - b.Count; rem > 0 {
		return rem
	}
	return 0
}

// Snapshot returns the live window for key. Expired windows are reported as
// absent.
func (l *FixedWindow) Snapshot(key string) (Bucket, bool) {
	s := l.shardFor(key)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || l.expired(b, now) {
		return Bucket{}, false
	}
	return Bucket{
		WindowStart: b.windowStart,
		Count:       b.count,
		Limit:       int(l.limit.Load()),
		Window:      l.window,
	}, true
}

// SetLimit changes the per-window cap. Existing windows keep their counts.
func (l *FixedWindow) SetLimit(limit int) {
	l.limit.Store(int64(limit))
}

// Limit returns the per-window cap.
func (l *FixedWindow) Limit() int {
	return int(l.limit.Load())
}

// Prune drops buckets whose window has elapsed and returns how many were
// removed.
func (l *FixedWindow) Prune(now time.Time) int {
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			if l.expired(b, now) {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

// StartPruning prunes expired buckets every interval until ctx is done.
func (l *FixedWindow) StartPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Prune(l.now())
			}
		}
	}()
}

// named tags a limiter so rejections are counted per limiter.
type named struct {
	name    string
	limiter Limiter
}

// Named wraps limiter so that its rejections are recorded under name.
func Named(name string, limiter Limiter) Limiter {
	return &named{name: name, limiter: limiter}
}

func (n *named) Allow(ctx context.Context, key string) bool {
	if n.limiter.Allow(ctx, key) {
		return true
	}
	observability.RecordRateLimitRejection(n.name)
	return false
}
