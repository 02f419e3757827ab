package location

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/geo"
	"charge-station-locator/internal/ports"
	"context"
	"fmt"
	"sync"
	"time"
)

var _ ports.LocationService = (*Feed)(nil)

// Feed is a LocationService driven by externally pushed fixes, such as a
// browser's geolocation relayed over a websocket or a device publishing
// over MQTT. The permission status is whatever the client last reported.
type Feed struct {
	mu         sync.Mutex
	permission ports.PermissionStatus
	last       domain.Coordinate
	hasFix     bool
	// Closed and replaced each time a fix arrives.
	fixed    chan struct{}
	watchers map[int]*watcher
	nextID   int

	// Serializes delivery so watchers observe fixes in arrival order.
	deliver sync.Mutex
	now     func() time.Time
}

func NewFeed(permission ports.PermissionStatus) *Feed {
	return &Feed{
		permission: permission,
		fixed:      make(chan struct{}),
		watchers:   make(map[int]*watcher),
		now:        time.Now,
	}
}

func (f *Feed) SetPermission(p ports.PermissionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permission = p
}

func (f *Feed) Permission() ports.PermissionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

// Push records a new fix and forwards it to every watcher whose interval
// and distance thresholds it passes.
func (f *Feed) Push(c domain.Coordinate) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("push fix: %w", err)
	}

	f.deliver.Lock()
	defer f.deliver.Unlock()

	at := f.now()

	f.mu.Lock()
	f.last = c
	f.hasFix = true
	close(f.fixed)
	f.fixed = make(chan struct{})
	targets := make([]*watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		targets = append(targets, w)
	}
	f.mu.Unlock()

	for _, w := range targets {
		w.offer(c, at)
	}
	return nil
}

func (f *Feed) RequestPermission(ctx context.Context) (ports.PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return ports.PermissionUndetermined, err
	}
	return f.Permission(), nil
}

// CurrentPosition returns the latest fix, waiting for the first one if none
// has arrived yet.
func (f *Feed) CurrentPosition(ctx context.Context) (domain.Coordinate, error) {
	for {
		f.mu.Lock()
		if f.permission != ports.PermissionGranted {
			f.mu.Unlock()
			return domain.Coordinate{}, domain.ErrPermissionDenied
		}
		if f.hasFix {
			c := f.last
			f.mu.Unlock()
			return c, nil
		}
		wait := f.fixed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrNoFix, ctx.Err())
		case <-wait:
		}
	}
}

func (f *Feed) Watch(ctx context.Context, opts ports.WatchOptions, fn func(domain.Coordinate)) (ports.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("watch: callback is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.permission != ports.PermissionGranted {
		return nil, domain.ErrPermissionDenied
	}

	id := f.nextID
	f.nextID++
	w := &watcher{opts: opts, fn: fn}
	f.watchers[id] = w

	return &subscription{remove: func() {
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
		w.close()
	}}, nil
}

// Watchers reports the number of live subscriptions.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

type watcher struct {
	mu     sync.Mutex
	opts   ports.WatchOptions
	fn     func(domain.Coordinate)
	last   domain.Coordinate
	lastAt time.Time
	seen   bool
	closed bool
}

// offer delivers c when both the interval and the minimum distance have
// been exceeded since the last delivered fix. The first fix always passes.
func (w *watcher) offer(c domain.Coordinate, at time.Time) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.seen {
		if at.Sub(w.lastAt) < w.opts.Interval {
			w.mu.Unlock()
			return
		}
		if geo.DistanceKm(w.last, c)*1000 < w.opts.MinDistanceM {
			w.mu.Unlock()
			return
		}
	}
	w.last, w.lastAt, w.seen = c, at, true
	fn := w.fn
	w.mu.Unlock()

	fn(c)
}

func (w *watcher) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Remove() { s.once.Do(s.remove) }
