package ports

import (
	"charge-station-locator/internal/domain"
	"context"
)

// Port: the bundled station list used when the remote source is unavailable.
type StationDataset interface {
	// Retrieve every station in the dataset, in dataset order.
	ListStations(ctx context.Context) ([]domain.Station, error)
}

// Optional extension of StationDataset that can pre-filter by area.
// Results may include stations slightly outside the radius; callers
// still apply an exact distance check.
type AreaStationDataset interface {
	StationDataset
	ListStationsWithin(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]domain.Station, error)
}
