package gate

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tier is the token-bucket setting for one class of caller.
type Tier struct {
	RequestsPerMinute int
	Burst             int
}

// bucket holds a token bucket and its last access time for cleanup.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ThrottleGate is a coarse per-caller token bucket over all scoped traffic.
// Anonymous callers are keyed by identity, authenticated callers by subject,
// each with its own tier. Idle buckets are evicted by a background goroutine.
type ThrottleGate struct {
	anonymous     Tier
	authenticated Tier
	scope         Scope
	clock         Clock
	idleTTL       time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool
}

// NewThrottleGate creates the gate and starts its cleanup goroutine when
// cleanupInterval is positive. Stop it with Close.
func NewThrottleGate(anonymous, authenticated Tier, scope Scope, cleanupInterval time.Duration, clock Clock) (*ThrottleGate, error) {
	for name, t := range map[string]Tier{"anonymous": anonymous, "authenticated": authenticated} {
		if t.RequestsPerMinute <= 0 {
			return nil, configError("throttle", "%s requests per minute must be positive", name)
		}
		if t.Burst <= 0 {
			return nil, configError("throttle", "%s burst must be positive", name)
		}
	}
	if clock == nil {
		clock = SystemClock{}
	}

	g := &ThrottleGate{
		anonymous:     anonymous,
		authenticated: authenticated,
		scope:         scope,
		clock:         clock,
		idleTTL:       2 * cleanupInterval,
		buckets:       make(map[string]*bucket),
		done:          make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go g.cleanup(cleanupInterval)
	}
	return g, nil
}

func (g *ThrottleGate) Name() string { return "throttle" }

func (g *ThrottleGate) Evaluate(req *Request) Result {
	if !g.scope.Matches(req) {
		return Pass()
	}

	now := req.ArrivedAt
	if now.IsZero() {
		now = g.clock.Now()
	}

	key, tier := g.keyAndTier(req)
	lim := g.bucketFor(key, tier, now)
	if lim.AllowN(now, 1) {
		return Pass()
	}

	res := Reject(http.StatusTooManyRequests, ReasonThrottled, "Too many requests")
	res.Limit = tier.RequestsPerMinute
	res.RetryAfter = retryAfter(lim, now)
	return res
}

func (g *ThrottleGate) keyAndTier(req *Request) (string, Tier) {
	if req.Authenticated && req.Subject != "" {
		return "user:" + req.Subject, g.authenticated
	}
	return "ip:" + req.Identity(), g.anonymous
}

func (g *ThrottleGate) bucketFor(key string, tier Tier, now time.Time) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.buckets[key]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(tier.RequestsPerMinute)), tier.Burst),
		}
		g.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// retryAfter is the wait until the next token, without consuming it.
func retryAfter(lim *rate.Limiter, now time.Time) time.Duration {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return delay
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (g *ThrottleGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.done)
	}
}

func (g *ThrottleGate) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.evictStale(g.clock.Now())
		}
	}
}

// evictStale removes buckets not touched within the idle TTL.
func (g *ThrottleGate) evictStale(now time.Time) {
	cutoff := now.Add(-g.idleTTL)
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, key)
		}
	}
}
