package stats

import (
	"context"
	"maps"
	"sync"

	"chatgate/internal/models"
)

// MemoryStore keeps counters in process memory. Nothing expires.
type MemoryStore struct {
	mu       sync.Mutex
	total    models.DecisionCounts
	byGate   map[string]models.DecisionCounts
	byReason map[string]int64
	byKey    map[string]models.DecisionCounts

	trackKeys bool
}

type MemoryOption func(*MemoryStore)

// WithTrackKeys enables per-identity counters.
func WithTrackKeys(track bool) MemoryOption {
	return func(s *MemoryStore) { s.trackKeys = track }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byGate:   make(map[string]models.DecisionCounts),
		byReason: make(map[string]int64),
		byKey:    make(map[string]models.DecisionCounts),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.byGate[ev.Gate]
	bump(&s.total, ev.Allowed)
	bump(&g, ev.Allowed)
	s.byGate[ev.Gate] = g

	if !ev.Allowed && ev.Reason != "" {
		s.byReason[ev.Reason]++
	}
	if s.trackKeys && ev.Key != "" {
		k := s.byKey[ev.Key]
		bump(&k, ev.Allowed)
		s.byKey[ev.Key] = k
	}
	return nil
}

func bump(c *models.DecisionCounts, allowed bool) {
	if allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
}

func (s *MemoryStore) Snapshot(_ context.Context) (*models.GateStatsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &models.GateStatsResponse{
		Allowed:  s.total.Allowed,
		Denied:   s.total.Denied,
		ByGate:   maps.Clone(s.byGate),
		ByReason: maps.Clone(s.byReason),
	}
	if s.trackKeys {
		resp.ByKey = maps.Clone(s.byKey)
	}
	return resp, nil
}

func (s *MemoryStore) Close() error { return nil }
