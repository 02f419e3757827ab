package session

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
)

// loopLocation re-posts watch callbacks onto the session loop so position
// updates are applied there, in arrival order.
type loopLocation struct {
	ports.LocationService
	post func(func()) bool
}

func (l loopLocation) Watch(ctx context.Context, opts ports.WatchOptions, fn func(domain.Coordinate)) (ports.Subscription, error) {
	return l.LocationService.Watch(ctx, opts, func(c domain.Coordinate) {
		l.post(func() { fn(c) })
	})
}
