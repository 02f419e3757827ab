package location

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestFeed(p ports.PermissionStatus) (*Feed, *clock) {
	clk := &clock{t: time.Unix(1715003456, 0)}
	f := NewFeed(p)
	f.now = clk.now
	return f, clk
}

func TestFeedCurrentPositionWaitsForFirstFix(t *testing.T) {
	f, _ := newTestFeed(ports.PermissionGranted)
	want := domain.Coordinate{Latitude: 41.0082, Longitude: 28.9784}

	done := make(chan domain.Coordinate, 1)
	go func() {
		c, err := f.CurrentPosition(context.Background())
		assert.NoError(t, err)
		done <- c
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, f.Push(want))

	select {
	case got := <-done:
		assert.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("CurrentPosition did not return after a fix was pushed")
	}
}

func TestFeedCurrentPositionTimeout(t *testing.T) {
	f, _ := newTestFeed(ports.PermissionGranted)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.CurrentPosition(ctx)
	assert.ErrorIs(t, err, domain.ErrNoFix)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeedDeniedPermission(t *testing.T) {
	f, _ := newTestFeed(ports.PermissionDenied)

	_, err := f.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = f.Watch(context.Background(), ports.WatchOptions{}, func(domain.Coordinate) {})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	status, err := f.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ports.PermissionDenied, status)

	f.SetPermission(ports.PermissionGranted)
	_, err = f.Watch(context.Background(), ports.WatchOptions{}, func(domain.Coordinate) {})
	assert.NoError(t, err)
}

func TestFeedWatchFiltersByIntervalAndDistance(t *testing.T) {
	f, clk := newTestFeed(ports.PermissionGranted)

	var got []domain.Coordinate
	sub, err := f.Watch(context.Background(), ports.WatchOptions{Interval: 5 * time.Second, MinDistanceM: 10}, func(c domain.Coordinate) {
		got = append(got, c)
	})
	require.NoError(t, err)

	start := domain.Coordinate{Latitude: 41.0, Longitude: 29.0}
	farAway := domain.Coordinate{Latitude: 41.001, Longitude: 29.0} // ~111 m
	barelyMoved := domain.Coordinate{Latitude: 41.00105, Longitude: 29.0}

	require.NoError(t, f.Push(start))

	clk.advance(time.Second)
	require.NoError(t, f.Push(farAway)) // too soon

	clk.advance(5 * time.Second)
	require.NoError(t, f.Push(farAway))

	clk.advance(5 * time.Second)
	require.NoError(t, f.Push(barelyMoved)) // too close

	assert.Equal(t, []domain.Coordinate{start, farAway}, got)

	sub.Remove()
	sub.Remove()
	assert.Equal(t, 0, f.Watchers())

	clk.advance(time.Minute)
	require.NoError(t, f.Push(start))
	assert.Len(t, got, 2)
}

func TestFeedPushRejectsInvalidFix(t *testing.T) {
	f, _ := newTestFeed(ports.PermissionGranted)
	assert.ErrorIs(t, f.Push(domain.Coordinate{Latitude: 95}), domain.ErrInvalidCoordinate)
}
