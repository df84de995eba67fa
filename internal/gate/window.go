package gate

import (
	"hash/fnv"
	"net/http"
	"slices"
	"sync"
	"time"
)

const defaultShards = 64

// window is the timestamp queue of one key, oldest first.
type window struct {
	ts []time.Time
}

type shard struct {
	mu   sync.Mutex
	keys map[string]*window
}

// SlidingWindowCounter admits at most limit events per window for each key.
// State is partitioned into shards by key hash; a key's prune-then-append runs
// under its shard lock, so events for one key are admitted in arrival order
// while unrelated keys rarely contend.
type SlidingWindowCounter struct {
	limit  int
	window time.Duration
	shards []shard
	mask   uint32

	sweepInterval time.Duration
	clock         Clock

	closeOnce sync.Once
	done      chan struct{}
}

// CounterOption configures a SlidingWindowCounter.
type CounterOption func(*SlidingWindowCounter)

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) CounterOption {
	return func(c *SlidingWindowCounter) {
		size := 1
		for size < n {
			size <<= 1
		}
		c.shards = make([]shard, size)
	}
}

// WithSweeper starts a background goroutine that drops idle keys every
// interval, reading time from clock. Stop it with Close.
func WithSweeper(interval time.Duration, clock Clock) CounterOption {
	return func(c *SlidingWindowCounter) {
		c.sweepInterval = interval
		c.clock = clock
	}
}

// NewSlidingWindowCounter creates a counter allowing limit events per window.
func NewSlidingWindowCounter(limit int, size time.Duration, opts ...CounterOption) (*SlidingWindowCounter, error) {
	if limit <= 0 {
		return nil, configError("sliding window", "limit must be positive, got %d", limit)
	}
	if size <= 0 {
		return nil, configError("sliding window", "window must be positive, got %s", size)
	}

	c := &SlidingWindowCounter{
		limit:  limit,
		window: size,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.shards) == 0 {
		c.shards = make([]shard, defaultShards)
	}
	c.mask = uint32(len(c.shards) - 1)
	for i := range c.shards {
		c.shards[i].keys = make(map[string]*window)
	}

	if c.sweepInterval > 0 {
		if c.clock == nil {
			c.clock = SystemClock{}
		}
		go c.sweepLoop()
	}
	return c, nil
}

// Limit returns the configured event limit.
func (c *SlidingWindowCounter) Limit() int { return c.limit }

// Window returns the configured window length.
func (c *SlidingWindowCounter) Window() time.Duration { return c.window }

func (c *SlidingWindowCounter) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.shards[h.Sum32()&c.mask]
}

// RecordAndCheck prunes the key's expired events and records now if the key
// is still under its limit. An entry exactly one window old is expired. When
// the window is full the event is not recorded. Timestamps stay sorted even
// when callers stamp requests before contending for the shard lock.
func (c *SlidingWindowCounter) RecordAndCheck(key string, now time.Time) Result {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.keys[key]
	if !ok {
		w = &window{ts: make([]time.Time, 0, c.limit)}
		s.keys[key] = w
	}

	c.prune(w, now)

	if len(w.ts) >= c.limit {
		res := Reject(http.StatusTooManyRequests, ReasonRateLimited, "rate limit exceeded")
		res.Limit = c.limit
		res.RetryAfter = w.ts[0].Add(c.window).Sub(now)
		return res
	}

	w.ts = insertSorted(w.ts, now)
	return Pass()
}

// insertSorted places t after every entry not later than it. Arrivals are
// almost always newest, so the scan runs from the back.
func insertSorted(ts []time.Time, t time.Time) []time.Time {
	i := len(ts)
	for i > 0 && ts[i-1].After(t) {
		i--
	}
	return slices.Insert(ts, i, t)
}

func (c *SlidingWindowCounter) prune(w *window, now time.Time) {
	n := 0
	for n < len(w.ts) && now.Sub(w.ts[n]) >= c.window {
		n++
	}
	if n > 0 {
		w.ts = w.ts[n:]
	}
}

// Count returns the number of live events for key at now without recording.
func (c *SlidingWindowCounter) Count(key string, now time.Time) int {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.keys[key]
	if !ok {
		return 0
	}
	c.prune(w, now)
	return len(w.ts)
}

// Keys returns the number of tracked keys.
func (c *SlidingWindowCounter) Keys() int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		total += len(s.keys)
		s.mu.Unlock()
	}
	return total
}

// Sweep drops every key with no event inside the window at now.
func (c *SlidingWindowCounter) Sweep(now time.Time) int {
	removed := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for key, w := range s.keys {
			c.prune(w, now)
			if len(w.ts) == 0 {
				delete(s.keys, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Close stops the sweeper goroutine, if any. Safe to call more than once.
func (c *SlidingWindowCounter) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *SlidingWindowCounter) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep(c.clock.Now())
		}
	}
}
