package services

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// QueryState is the lifecycle state of the coordinator.
type QueryState int

const (
	QueryIdle QueryState = iota
	QueryLoading
	QueryReady
)

func (s QueryState) String() string {
	switch s {
	case QueryIdle:
		return "idle"
	case QueryLoading:
		return "loading"
	case QueryReady:
		return "ready"
	default:
		return "unknown"
	}
}

// QuerySnapshot is an immutable view of the coordinator after a transition.
type QuerySnapshot struct {
	State QueryState
	// Query is the most recently issued query; zero while Idle.
	Query  domain.RadiusQuery
	Result domain.QueryResult
	// Message is informational, set when a Ready result holds no stations.
	Message string
	Seq     uint64
}

// Fetcher is the station lookup the coordinator drives.
type Fetcher interface {
	FetchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) domain.QueryResult
}

// RadiusQueryCoordinator serializes radius queries so that the most recently
// issued query always wins: issuing a query cancels the one in flight and
// any late completion of a superseded query is discarded.
type RadiusQueryCoordinator struct {
	fetcher  Fetcher
	notifier ports.Notifier
	debounce time.Duration
	base     context.Context

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	snap   QuerySnapshot

	// Held while listeners run so that they observe transitions in order.
	// Listeners must not call back into the coordinator synchronously.
	notifyMu  sync.Mutex
	listeners []func(QuerySnapshot)

	wg sync.WaitGroup
}

type CoordinatorOption func(*RadiusQueryCoordinator)

// WithDebounce delays each fetch by d. A query superseded during the delay
// never reaches the fetcher.
func WithDebounce(d time.Duration) CoordinatorOption {
	return func(c *RadiusQueryCoordinator) { c.debounce = d }
}

func WithNotifier(n ports.Notifier) CoordinatorOption {
	return func(c *RadiusQueryCoordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithBaseContext sets the parent of every fetch context. Cancelling it
// cancels any in-flight fetch.
func WithBaseContext(ctx context.Context) CoordinatorOption {
	return func(c *RadiusQueryCoordinator) { c.base = ctx }
}

func NewRadiusQueryCoordinator(fetcher Fetcher, opts ...CoordinatorOption) *RadiusQueryCoordinator {
	c := &RadiusQueryCoordinator{
		fetcher:  fetcher,
		notifier: nopNotifier{},
		base:     context.Background(),
		snap:     QuerySnapshot{State: QueryIdle, Result: emptyResult()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func emptyResult() domain.QueryResult {
	return domain.QueryResult{Stations: []domain.Station{}}
}

// OnChange registers a listener that receives a snapshot after every transition.
func (c *RadiusQueryCoordinator) OnChange(fn func(QuerySnapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnRadiusQueryChanged is the sole entry point for issuing a query. Invalid
// queries are rejected without touching state.
func (c *RadiusQueryCoordinator) OnRadiusQueryChanged(q domain.RadiusQuery) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("on radius query changed: %w", err)
	}
	if c.fetcher == nil {
		return errors.New("on radius query changed: no fetcher configured")
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	c.snap = QuerySnapshot{
		State:  QueryLoading,
		Query:  q,
		Result: c.snap.Result,
		Seq:    seq,
	}
	c.wg.Add(1)
	c.publishLocked()

	go c.run(ctx, seq, q)
	return nil
}

func (c *RadiusQueryCoordinator) run(ctx context.Context, seq uint64, q domain.RadiusQuery) {
	defer c.wg.Done()

	if c.debounce > 0 {
		timer := time.NewTimer(c.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	result := c.fetcher.FetchNearby(ctx, q.Center, q.RadiusKm)
	c.complete(seq, result)
}

func (c *RadiusQueryCoordinator) complete(seq uint64, result domain.QueryResult) {
	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		log.Printf("op=radius_query.complete seq=%d current=%d discarded=true", seq, c.seq)
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if result.Stations == nil {
		result.Stations = []domain.Station{}
	}

	snap := QuerySnapshot{
		State:  QueryReady,
		Query:  c.snap.Query,
		Result: result,
		Seq:    seq,
	}
	if result.Empty() {
		snap.Message = msgNoStations
	}
	c.snap = snap

	log.Printf("op=radius_query.complete seq=%d source=%s stations=%d", seq, result.Source, len(result.Stations))

	c.publishLocked()

	if errors.Is(result.RemoteErr, domain.ErrNetworkFailure) {
		c.notifier.Notify(noticeFallbackData)
	}
}

// Clear supersedes any in-flight fetch and returns to Idle with no results.
func (c *RadiusQueryCoordinator) Clear() {
	c.mu.Lock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.snap = QuerySnapshot{State: QueryIdle, Result: emptyResult(), Seq: c.seq}
	c.publishLocked()
}

// publishLocked releases c.mu and delivers the current snapshot to listeners.
func (c *RadiusQueryCoordinator) publishLocked() {
	snap := c.snap
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range c.listeners {
		fn(snap)
	}
}

func (c *RadiusQueryCoordinator) Snapshot() QuerySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Wait blocks until every fetch goroutine started so far has returned.
func (c *RadiusQueryCoordinator) Wait() {
	c.wg.Wait()
}
