// Package stats keeps counters of gate decisions for the admin stats endpoint.
//
// Recording is best effort: a failing store never turns a passing request into
// an error.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chatgate/internal/gate"
	"chatgate/internal/models"

	"github.com/redis/go-redis/v9"
)

// Event is one gate decision.
type Event struct {
	Gate    string
	Allowed bool
	Reason  string
	Key     string
	At      time.Time
}

// Store persists decision counters.
type Store interface {
	Record(ctx context.Context, ev Event) error
	Snapshot(ctx context.Context) (*models.GateStatsResponse, error)
	Close() error
}

// New creates the store selected by cfg.
func New(cfg models.StatsConfig) (Store, error) {
	switch cfg.Type {
	case models.StatsTypeMemory, "":
		return NewMemoryStore(WithTrackKeys(cfg.TrackKeys)), nil
	case models.StatsTypeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis stats ping: %w", err)
		}
		return NewRedisStore(rdb,
			WithPrefix(cfg.Redis.Prefix),
			WithTTL(cfg.Redis.TTL),
			WithRedisTrackKeys(cfg.TrackKeys),
		), nil
	default:
		return nil, fmt.Errorf("unsupported stats type: %s", cfg.Type)
	}
}

// Observer records chain decisions into a Store on the calling goroutine.
// It suits in-process stores; use AsyncObserver in front of a network store.
type Observer struct {
	store   Store
	timeout time.Duration
}

// NewObserver returns a gate.Observer that feeds store. Each record call is
// bounded by timeout.
func NewObserver(store Store, timeout time.Duration) *Observer {
	return &Observer{store: store, timeout: recordTimeout(timeout)}
}

var _ gate.Observer = (*Observer)(nil)

func (o *Observer) Observe(d gate.Decision) {
	record(o.store, o.timeout, eventFrom(d))
}

// AsyncObserver queues decisions on a buffered channel drained by a single
// goroutine, so Observe never waits on the store. Decisions arriving while
// the queue is full are dropped and counted.
type AsyncObserver struct {
	store   Store
	timeout time.Duration
	events  chan Event
	dropped atomic.Int64

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewAsyncObserver starts the recorder goroutine. Stop it with Close.
func NewAsyncObserver(store Store, buffer int, timeout time.Duration) *AsyncObserver {
	if buffer <= 0 {
		buffer = 1024
	}
	o := &AsyncObserver{
		store:   store,
		timeout: recordTimeout(timeout),
		events:  make(chan Event, buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

var _ gate.Observer = (*AsyncObserver)(nil)

func (o *AsyncObserver) Observe(d gate.Decision) {
	select {
	case o.events <- eventFrom(d):
	default:
		if o.dropped.Add(1) == 1 {
			slog.Warn("Gate stats queue full, dropping decisions", "buffer", cap(o.events))
		}
	}
}

// Dropped returns the number of decisions discarded because the queue was full.
func (o *AsyncObserver) Dropped() int64 { return o.dropped.Load() }

// Close records what is already queued and stops the goroutine. Decisions
// observed after Close are never recorded.
func (o *AsyncObserver) Close() {
	o.closeOnce.Do(func() { close(o.quit) })
	<-o.done
}

func (o *AsyncObserver) run() {
	defer close(o.done)
	for {
		select {
		case ev := <-o.events:
			record(o.store, o.timeout, ev)
		case <-o.quit:
			for {
				select {
				case ev := <-o.events:
					record(o.store, o.timeout, ev)
				default:
					return
				}
			}
		}
	}
}

func recordTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

func eventFrom(d gate.Decision) Event {
	ev := Event{
		Gate:    d.Gate,
		Allowed: d.Result.Passed(),
		Reason:  string(d.Result.Reason),
	}
	if d.Request != nil {
		ev.Key = d.Request.Identity()
		ev.At = d.Request.ArrivedAt
	}
	return ev
}

func record(store Store, timeout time.Duration, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := store.Record(ctx, ev); err != nil {
		slog.Debug("Failed to record gate decision", "gate", ev.Gate, "error", err)
	}
}
