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

// QueryIssuer is the part of the coordinator the tracker drives.
type QueryIssuer interface {
	OnRadiusQueryChanged(q domain.RadiusQuery) error
	Clear()
}

// SelectionClearer drops the current selection and its route line.
type SelectionClearer interface {
	Clear()
}

// LocationTracker owns the user's coordinate and the pin / free-roam state.
// While pinned, every change of position or radius issues a radius query;
// while free-roaming, positions are recorded only.
type LocationTracker struct {
	location  ports.LocationService
	queries   QueryIssuer
	notifier  ports.Notifier
	selection SelectionClearer

	mu       sync.Mutex
	current  domain.Coordinate
	pinned   bool
	radiusKm float64
	sub      ports.Subscription
	watching bool
	// Bumped whenever the subscription is replaced or removed so that late
	// updates from an old subscription are ignored.
	watchGen uint64
}

// NewLocationTracker starts free-roaming at fallback with the given radius.
func NewLocationTracker(
	location ports.LocationService,
	queries QueryIssuer,
	notifier ports.Notifier,
	fallback domain.Coordinate,
	radiusKm float64,
) (*LocationTracker, error) {
	if err := fallback.Validate(); err != nil {
		return nil, fmt.Errorf("new location tracker: default location: %w", err)
	}
	if !(radiusKm > 0) {
		return nil, fmt.Errorf("new location tracker: %w", domain.ErrInvalidRadius)
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &LocationTracker{
		location: location,
		queries:  queries,
		notifier: notifier,
		current:  fallback,
		radiusKm: radiusKm,
	}, nil
}

// SetSelection wires the selection that is cleared when the pin is released.
func (t *LocationTracker) SetSelection(s SelectionClearer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection = s
}

// RequestPermissionAndLocate asks for permission and takes a one-shot fix.
// Denial or a failed fix keeps the current coordinate and raises a notice;
// neither is returned as an error.
func (t *LocationTracker) RequestPermissionAndLocate(ctx context.Context) domain.Coordinate {
	c, ok := t.Locate(ctx)
	if !ok {
		return t.Current()
	}
	t.ApplyFix(c)
	return c
}

// Locate is RequestPermissionAndLocate without committing the fix. It only
// talks to the location service, so it may run off the owner's goroutine;
// the caller hands the fix to ApplyFix.
func (t *LocationTracker) Locate(ctx context.Context) (domain.Coordinate, bool) {
	status, err := t.location.RequestPermission(ctx)
	if err != nil || status != ports.PermissionGranted {
		log.Printf("op=tracker.locate permission=%s err=%v", status, err)
		t.notifier.Notify(noticePermissionDenied)
		return domain.Coordinate{}, false
	}

	c, err := t.location.CurrentPosition(ctx)
	if err != nil {
		log.Printf("op=tracker.locate fix_err=%v", err)
		t.notifier.Notify(noticeLocationError)
		return domain.Coordinate{}, false
	}
	return c, true
}

// ApplyFix records c as the current coordinate, requerying while pinned.
func (t *LocationTracker) ApplyFix(c domain.Coordinate) {
	t.update(c)
}

// StartWatching subscribes to continuous updates, replacing any existing
// subscription. It returns ErrPermissionDenied when permission is missing.
func (t *LocationTracker) StartWatching(ctx context.Context, interval time.Duration, minDistanceM float64) error {
	status, err := t.location.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("start watching: %w", err)
	}
	if status != ports.PermissionGranted {
		return fmt.Errorf("start watching: %w", domain.ErrPermissionDenied)
	}

	t.mu.Lock()
	t.watchGen++
	gen := t.watchGen
	old := t.sub
	t.sub, t.watching = nil, false
	t.mu.Unlock()

	if old != nil {
		old.Remove()
	}

	opts := ports.WatchOptions{Interval: interval, MinDistanceM: minDistanceM}
	sub, err := t.location.Watch(ctx, opts, func(c domain.Coordinate) {
		t.onWatchUpdate(gen, c)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return fmt.Errorf("start watching: %w", err)
		}
		return fmt.Errorf("start watching: subscribe: %w", err)
	}

	t.mu.Lock()
	if gen != t.watchGen {
		// Stopped or replaced while subscribing.
		t.mu.Unlock()
		sub.Remove()
		return nil
	}
	t.sub, t.watching = sub, true
	t.mu.Unlock()
	return nil
}

func (t *LocationTracker) onWatchUpdate(gen uint64, c domain.Coordinate) {
	t.mu.Lock()
	stale := gen != t.watchGen
	t.mu.Unlock()
	if stale {
		return
	}
	t.update(c)
}

// StopWatching releases the subscription. It is idempotent and safe to call
// while a fetch is in flight.
func (t *LocationTracker) StopWatching() {
	t.mu.Lock()
	t.watchGen++
	old := t.sub
	t.sub, t.watching = nil, false
	t.mu.Unlock()

	if old != nil {
		old.Remove()
	}
}

// update replaces the current coordinate and re-queries when pinned.
func (t *LocationTracker) update(c domain.Coordinate) {
	t.mu.Lock()
	t.current = c
	q, pinned := t.queryLocked()
	t.mu.Unlock()

	if pinned {
		t.issue(q)
	}
}

func (t *LocationTracker) queryLocked() (domain.RadiusQuery, bool) {
	return domain.RadiusQuery{Center: t.current, RadiusKm: t.radiusKm, Pinned: t.pinned}, t.pinned
}

func (t *LocationTracker) issue(q domain.RadiusQuery) {
	if t.queries == nil {
		return
	}
	if err := t.queries.OnRadiusQueryChanged(q); err != nil {
		log.Printf("op=tracker.issue center=%s radius_km=%g err=%v", q.Center, q.RadiusKm, err)
	}
}

// SetPinned switches between pinned and free-roam. Pinning issues exactly
// one query at the current coordinate; unpinning clears the results and the
// selection. Setting the state it already has is a no-op.
func (t *LocationTracker) SetPinned(pinned bool) error {
	t.mu.Lock()
	if t.pinned == pinned {
		t.mu.Unlock()
		return nil
	}
	t.pinned = pinned
	q, _ := t.queryLocked()
	selection := t.selection
	t.mu.Unlock()

	if pinned {
		if t.queries == nil {
			return nil
		}
		if err := t.queries.OnRadiusQueryChanged(q); err != nil {
			return fmt.Errorf("set pinned: %w", err)
		}
		return nil
	}

	if t.queries != nil {
		t.queries.Clear()
	}
	if selection != nil {
		selection.Clear()
	}
	return nil
}

// TogglePin flips the pin state and returns the new state.
func (t *LocationTracker) TogglePin() (bool, error) {
	next := !t.Pinned()
	return next, t.SetPinned(next)
}

// SetManualLocation overrides the current coordinate, e.g. from a long press.
func (t *LocationTracker) SetManualLocation(c domain.Coordinate) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("set manual location: %w", err)
	}
	t.update(c)
	return nil
}

// SetRadius changes the query radius and re-queries immediately when pinned.
func (t *LocationTracker) SetRadius(km float64) error {
	if !(km > 0) {
		return fmt.Errorf("set radius: %w: %v", domain.ErrInvalidRadius, km)
	}

	t.mu.Lock()
	if t.radiusKm == km {
		t.mu.Unlock()
		return nil
	}
	t.radiusKm = km
	q, pinned := t.queryLocked()
	t.mu.Unlock()

	if pinned {
		t.issue(q)
	}
	return nil
}

func (t *LocationTracker) Current() domain.Coordinate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *LocationTracker) Pinned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pinned
}

func (t *LocationTracker) RadiusKm() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.radiusKm
}

func (t *LocationTracker) Watching() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watching
}
