package ports

import (
	"charge-station-locator/internal/domain"
	"context"
)

// Contract for querying a remote point-of-interest source for charging stations.
type POIProvider interface {
	// Return charging stations within radiusKm of center, in provider order.
	// Implementations own the radius semantics; callers do not re-filter.
	SearchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]domain.Station, error)
}
