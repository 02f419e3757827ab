package ports

import (
	"charge-station-locator/internal/domain"
	"context"
	"time"
)

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Options for a continuous position watch.
type WatchOptions struct {
	// Minimum time between delivered updates.
	Interval time.Duration
	// Minimum movement in metres before an update is delivered.
	MinDistanceM float64
}

// A live position subscription. Remove must be idempotent.
type Subscription interface {
	Remove()
}

// Contract for platform location services.
// Denial is a normal outcome reported through PermissionStatus, not an error.
type LocationService interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	// Return a one-shot position fix.
	CurrentPosition(ctx context.Context) (domain.Coordinate, error)
	// Deliver position updates in arrival order until the subscription is removed.
	Watch(ctx context.Context, opts WatchOptions, fn func(domain.Coordinate)) (Subscription, error)
}
