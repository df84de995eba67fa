package gate

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"chatgate/internal/models"
)

// TestGateChainFeatures executes the gate chain scenarios via godog.
func TestGateChainFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "gate-chain",
		ScenarioInitializer: initializeGateScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "gate_chain.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

func initializeGateScenario(ctx *godog.ScenarioContext) {
	state := &gateState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		state.close()
		return ctx, nil
	})

	ctx.Step(`^the default gate chain$`, state.givenDefaultChain)
	ctx.Step(`^the clock reads "([^"]+)"$`, state.clockReads)
	ctx.Step(`^the time of day gate allows "([^"]+)" to "([^"]+)"$`, state.enableTimeOfDay)
	ctx.Step(`^an authenticated "([^"]+)" caller from "([^"]+)"$`, state.authenticatedCaller)
	ctx.Step(`^an anonymous caller from "([^"]+)"$`, state.anonymousCaller)
	ctx.Step(`^the caller sends (\d+) "([^"]+)" requests to "([^"]+)"$`, state.send)
	ctx.Step(`^the clock advances (\d+) seconds$`, state.advance)
	ctx.Step(`^every request passes$`, state.everyRequestPasses)
	ctx.Step(`^the last request is rejected with status (\d+)$`, state.lastRejectedWith)
	ctx.Step(`^the rejection message is "([^"]+)"$`, state.rejectionMessage)
	ctx.Step(`^the rate limit has recorded (\d+) requests from "([^"]+)"$`, state.rateLimitRecorded)
}

// gateState holds scenario state for the feature tests.
type gateState struct {
	cfg       models.GatesConfig
	clock     *ManualClock
	chain     *Chain
	principal Principal
	ip        string
	results   []Result
}

func (s *gateState) reset() {
	s.close()
	s.cfg = models.NewDefaultConfig().Gates
	s.cfg.TimeOfDay.Location = "UTC"
	s.cfg.Throttle.CleanupInterval = 0
	s.cfg.RateLimit.SweepInterval = 0
	s.clock = NewManualClock(time.Unix(0, 0))
	s.principal = Principal{}
	s.ip = ""
	s.results = nil
}

func (s *gateState) close() {
	if s.chain != nil {
		s.chain.Close()
		s.chain = nil
	}
}

func (s *gateState) rebuild() error {
	s.close()
	chain, err := Build(s.cfg, s.clock)
	if err != nil {
		return err
	}
	s.chain = chain
	return nil
}

func (s *gateState) givenDefaultChain() error {
	return s.rebuild()
}

func (s *gateState) clockReads(value string) error {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}
	s.clock.Set(t)
	return nil
}

func (s *gateState) enableTimeOfDay(start, end string) error {
	s.cfg.TimeOfDay.Enabled = true
	s.cfg.TimeOfDay.Start = start
	s.cfg.TimeOfDay.End = end
	return s.rebuild()
}

func (s *gateState) authenticatedCaller(role, ip string) error {
	if !Role(role).Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	s.principal = Principal{Authenticated: true, Subject: role + "-" + ip, Name: role, Role: Role(role)}
	s.ip = ip
	return nil
}

func (s *gateState) anonymousCaller(ip string) error {
	s.principal = Principal{}
	s.ip = ip
	return nil
}

func (s *gateState) send(n int, method, path string) error {
	for i := 0; i < n; i++ {
		req := &Request{
			Method:        method,
			Path:          path,
			RemoteAddr:    net.JoinHostPort(s.ip, "40000"),
			Authenticated: s.principal.Authenticated,
			Role:          s.principal.Role,
			Subject:       s.principal.Subject,
			ArrivedAt:     s.clock.Now(),
		}
		s.results = append(s.results, s.chain.Evaluate(req))
	}
	return nil
}

func (s *gateState) advance(seconds int) error {
	s.clock.Advance(time.Duration(seconds) * time.Second)
	return nil
}

func (s *gateState) everyRequestPasses() error {
	for i, res := range s.results {
		if !res.Passed() {
			return fmt.Errorf("request %d rejected: %d %s", i+1, res.Status, res.Message)
		}
	}
	return nil
}

func (s *gateState) last() (Result, error) {
	if len(s.results) == 0 {
		return Result{}, fmt.Errorf("no request was sent")
	}
	return s.results[len(s.results)-1], nil
}

func (s *gateState) lastRejectedWith(status int) error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if res.Status != status {
		return fmt.Errorf("expected status %d, got %d", status, res.Status)
	}
	return nil
}

func (s *gateState) rejectionMessage(msg string) error {
	res, err := s.last()
	if err != nil {
		return err
	}
	if res.Message != msg {
		return fmt.Errorf("expected message %q, got %q", msg, res.Message)
	}
	return nil
}

func (s *gateState) rateLimitRecorded(n int, ip string) error {
	for _, g := range s.chain.gates {
		if rl, ok := g.(*RateLimitGate); ok {
			if got := rl.Counter().Count(ip, s.clock.Now()); got != n {
				return fmt.Errorf("expected %d recorded requests, got %d", n, got)
			}
			return nil
		}
	}
	return fmt.Errorf("rate limit gate is not in the chain")
}
