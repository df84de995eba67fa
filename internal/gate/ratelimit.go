package gate

import (
	"fmt"
	"time"
)

// RateLimitGate applies a SlidingWindowCounter, keyed by caller identity, to
// the requests inside its scope.
type RateLimitGate struct {
	counter *SlidingWindowCounter
	scope   Scope
	clock   Clock
}

// NewRateLimitGate creates a gate around counter. A nil clock means the
// system clock.
func NewRateLimitGate(counter *SlidingWindowCounter, scope Scope, clock Clock) (*RateLimitGate, error) {
	if counter == nil {
		return nil, configError("rate limit", "counter is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimitGate{counter: counter, scope: scope, clock: clock}, nil
}

func (g *RateLimitGate) Name() string { return "rate_limit" }

// Counter exposes the underlying counter.
func (g *RateLimitGate) Counter() *SlidingWindowCounter { return g.counter }

func (g *RateLimitGate) Evaluate(req *Request) Result {
	if !g.scope.Matches(req) {
		return Pass()
	}

	now := req.ArrivedAt
	if now.IsZero() {
		now = g.clock.Now()
	}

	res := g.counter.RecordAndCheck(req.Identity(), now)
	if !res.Passed() {
		res.Message = RateLimitMessage(g.counter.Limit(), g.counter.Window())
	}
	return res
}

// RateLimitMessage renders the client-facing text of a sliding-window
// rejection, e.g. "Rate limit exceeded. Max 5 messages per minute."
func RateLimitMessage(limit int, size time.Duration) string {
	return fmt.Sprintf("Rate limit exceeded. Max %d messages per %s.", limit, windowUnit(size))
}

func windowUnit(d time.Duration) string {
	switch d {
	case time.Second:
		return "second"
	case time.Minute:
		return "minute"
	case time.Hour:
		return "hour"
	}
	return d.String()
}

// Close stops the counter's sweeper.
func (g *RateLimitGate) Close() { g.counter.Close() }
