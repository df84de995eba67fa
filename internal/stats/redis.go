package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatgate/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis hashes under a key prefix:
//
//	<prefix>:total        allowed, denied
//	<prefix>:gate         <gate>:allowed, <gate>:denied
//	<prefix>:reason       <reason>
//	<prefix>:key:<ident>  allowed, denied (expires after ttl)
//
// Totals are cumulative and never expire.
type RedisStore struct {
	rdb *redis.Client

	prefix    string
	ttl       time.Duration
	trackKeys bool
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the expiry of per-identity hashes. Zero disables expiry.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func WithRedisTrackKeys(track bool) RedisOption {
	return func(s *RedisStore) { s.trackKeys = track }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "chatgate:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func field(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	f := field(ev.Allowed)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", f, 1)
	if ev.Gate != "" {
		pipe.HIncrBy(ctx, s.prefix+":gate", ev.Gate+":"+f, 1)
	}
	if !ev.Allowed && ev.Reason != "" {
		pipe.HIncrBy(ctx, s.prefix+":reason", ev.Reason, 1)
	}
	if s.trackKeys {
		if k := strings.TrimSpace(ev.Key); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, f, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Snapshot(ctx context.Context) (*models.GateStatsResponse, error) {
	pipe := s.rdb.Pipeline()
	total := pipe.HGetAll(ctx, s.prefix+":total")
	gates := pipe.HGetAll(ctx, s.prefix+":gate")
	reasons := pipe.HGetAll(ctx, s.prefix+":reason")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	counts := countsOf(total.Val())
	resp := &models.GateStatsResponse{
		Allowed:  counts.Allowed,
		Denied:   counts.Denied,
		ByGate:   make(map[string]models.DecisionCounts),
		ByReason: make(map[string]int64),
	}

	for k, v := range gates.Val() {
		name, f, ok := strings.Cut(k, ":")
		if !ok {
			continue
		}
		c := resp.ByGate[name]
		setField(&c, f, v)
		resp.ByGate[name] = c
	}
	for k, v := range reasons.Val() {
		n, _ := strconv.ParseInt(v, 10, 64)
		resp.ByReason[k] = n
	}

	if s.trackKeys {
		byKey, err := s.keyCounts(ctx)
		if err != nil {
			return nil, err
		}
		resp.ByKey = byKey
	}
	return resp, nil
}

func (s *RedisStore) keyCounts(ctx context.Context) (map[string]models.DecisionCounts, error) {
	match := s.prefix + ":key:"
	out := make(map[string]models.DecisionCounts)

	iter := s.rdb.Scan(ctx, 0, match+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		vals, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read key stats: %w", err)
		}
		out[strings.TrimPrefix(key, match)] = countsOf(vals)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan key stats: %w", err)
	}
	return out, nil
}

func countsOf(vals map[string]string) models.DecisionCounts {
	var c models.DecisionCounts
	for f, v := range vals {
		setField(&c, f, v)
	}
	return c
}

func setField(c *models.DecisionCounts, f, v string) {
	n, _ := strconv.ParseInt(v, 10, 64)
	switch f {
	case "allowed":
		c.Allowed = n
	case "denied":
		c.Denied = n
	}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
