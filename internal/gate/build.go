package gate

import (
	"fmt"
	"slices"
	"time"

	"chatgate/internal/models"
)

// Build constructs the chain described by cfg. Gates run in cfg.Order and
// disabled gates are skipped. An enabled gate missing from the order is an
// error. On error any gate already built is closed.
func Build(cfg models.GatesConfig, clock Clock) (*Chain, error) {
	if clock == nil {
		clock = SystemClock{}
	}

	var gates []Gate
	fail := func(err error) (*Chain, error) {
		NewChain(gates...).Close()
		return nil, err
	}

	for _, name := range cfg.EnabledGates() {
		if !slices.Contains(cfg.Order, name) {
			return nil, configError(name, "enabled but not listed in order")
		}
	}

	for _, name := range cfg.Order {
		var (
			g   Gate
			err error
		)
		switch name {
		case models.GateRole:
			if !cfg.Role.Enabled {
				continue
			}
			g, err = buildRole(cfg.Role)
		case models.GateTimeOfDay:
			if !cfg.TimeOfDay.Enabled {
				continue
			}
			g, err = buildTimeOfDay(cfg.TimeOfDay, clock)
		case models.GateThrottle:
			if !cfg.Throttle.Enabled {
				continue
			}
			g, err = buildThrottle(cfg.Throttle, clock)
		case models.GateRateLimit:
			if !cfg.RateLimit.Enabled {
				continue
			}
			g, err = buildRateLimit(cfg.RateLimit, clock)
		default:
			err = configError(name, "unknown gate")
		}
		if err != nil {
			return fail(err)
		}
		gates = append(gates, g)
	}
	return NewChain(gates...), nil
}

// Validate builds cfg and releases it, reporting the first error.
func Validate(cfg models.GatesConfig) error {
	chain, err := Build(cfg, SystemClock{})
	if err != nil {
		return err
	}
	chain.Close()
	return nil
}

func buildRole(cfg models.RoleGateConfig) (Gate, error) {
	rules := make([]RoleRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		allowed := make([]Role, 0, len(r.Roles))
		for _, role := range r.Roles {
			allowed = append(allowed, Role(role))
		}
		rules = append(rules, RoleRule{Prefix: r.Prefix, Allowed: allowed})
	}
	return NewRoleGate(rules)
}

func buildTimeOfDay(cfg models.TimeOfDayConfig, clock Clock) (Gate, error) {
	start, err := ParseTimeOfDay(cfg.Start)
	if err != nil {
		return nil, configError("time of day", "start: %v", err)
	}
	end, err := ParseTimeOfDay(cfg.End)
	if err != nil {
		return nil, configError("time of day", "end: %v", err)
	}
	loc, err := loadLocation(cfg.Location)
	if err != nil {
		return nil, configError("time of day", "%v", err)
	}
	return NewTimeOfDayGate(start, end, cfg.Prefixes, loc, clock)
}

func loadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown location %q", name)
	}
	return loc, nil
}

func buildThrottle(cfg models.ThrottleConfig, clock Clock) (Gate, error) {
	anon := Tier{RequestsPerMinute: cfg.RequestsPerMinute, Burst: cfg.BurstSize}
	auth := Tier{RequestsPerMinute: cfg.AuthenticatedRequestsPerMinute, Burst: cfg.AuthenticatedBurstSize}
	if auth.RequestsPerMinute == 0 {
		auth.RequestsPerMinute = 2 * anon.RequestsPerMinute
	}
	if auth.Burst == 0 {
		auth.Burst = 2 * anon.Burst
	}
	return NewThrottleGate(anon, auth, Scope{Prefixes: cfg.Prefixes}, cfg.CleanupInterval, clock)
}

func buildRateLimit(cfg models.RateLimitConfig, clock Clock) (Gate, error) {
	var opts []CounterOption
	if cfg.Shards > 0 {
		opts = append(opts, WithShards(cfg.Shards))
	}
	if cfg.SweepInterval > 0 {
		opts = append(opts, WithSweeper(cfg.SweepInterval, clock))
	}
	counter, err := NewSlidingWindowCounter(cfg.Limit, cfg.Window, opts...)
	if err != nil {
		return nil, err
	}
	return NewRateLimitGate(counter, Scope{Methods: cfg.Methods, Prefixes: cfg.Prefixes}, clock)
}
