package gate

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time within a day at second resolution.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
	}

	var vals [3]int
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || len(p) != 2 {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
		}
		if v < 0 || v > limits[i] {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q: field out of range", s)
		}
		vals[i] = v
	}
	return TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// TimeOfDayOf returns the time of day of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay{Hour: h, Minute: m, Second: s}
}

// TimeOfDayGate rejects requests under its prefixes that arrive outside the
// inclusive [Start, End] window. Windows that wrap past midnight are not
// supported.
type TimeOfDayGate struct {
	start    TimeOfDay
	end      TimeOfDay
	prefixes []string
	loc      *time.Location
	clock    Clock
}

// NewTimeOfDayGate validates the window and creates the gate. A nil location
// means time.Local; a nil clock means the system clock.
func NewTimeOfDayGate(start, end TimeOfDay, prefixes []string, loc *time.Location, clock Clock) (*TimeOfDayGate, error) {
	if start.Seconds() > end.Seconds() {
		return nil, configError("time of day", "start %s is after end %s", start, end)
	}
	if len(prefixes) == 0 {
		return nil, configError("time of day", "at least one path prefix is required")
	}
	for _, p := range prefixes {
		if p == "" {
			return nil, configError("time of day", "path prefix cannot be empty")
		}
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TimeOfDayGate{
		start:    start,
		end:      end,
		prefixes: append([]string(nil), prefixes...),
		loc:      loc,
		clock:    clock,
	}, nil
}

func (g *TimeOfDayGate) Name() string { return "time_of_day" }

func (g *TimeOfDayGate) Evaluate(req *Request) Result {
	if !matchesPrefix(g.prefixes, req.Path) {
		return Pass()
	}

	now := req.ArrivedAt
	if now.IsZero() {
		now = g.clock.Now()
	}
	if g.Allows(now) {
		return Pass()
	}
	return Reject(http.StatusForbidden, ReasonOutsideHours, "access restricted outside allowed hours")
}

// Allows reports whether t falls inside the window.
func (g *TimeOfDayGate) Allows(t time.Time) bool {
	sec := TimeOfDayOf(t.In(g.loc)).Seconds()
	return sec >= g.start.Seconds() && sec <= g.end.Seconds()
}
