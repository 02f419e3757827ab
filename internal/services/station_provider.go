package services

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/geo"
	"charge-station-locator/internal/platform/obs"
	"charge-station-locator/internal/ports"
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// StationProvider resolves radius queries against the remote POI source,
// falling back to the bundled dataset when the remote fails or finds nothing.
//
// Remote results are trusted as returned: the provider owns the radius
// semantics and no client-side filtering is applied. Only the fallback path
// filters by DistanceKm.
type StationProvider struct {
	remote  ports.POIProvider
	dataset ports.StationDataset
	now     func() time.Time
}

// NewStationProvider builds a provider. A nil remote means the remote source
// is unavailable and every query is served from the dataset.
func NewStationProvider(remote ports.POIProvider, dataset ports.StationDataset) *StationProvider {
	return &StationProvider{remote: remote, dataset: dataset, now: time.Now}
}

// FetchNearby never fails: every outcome is a QueryResult. Failures are
// reported through RemoteErr with Source set to LocalFallback.
func (p *StationProvider) FetchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) domain.QueryResult {
	var err error
	defer obs.Time(ctx, "stations.FetchNearby")(&err)

	stations, remoteErr := p.fetchRemote(ctx, center, radiusKm)
	if remoteErr == nil {
		return domain.QueryResult{
			Stations:  stations,
			Source:    domain.SourceRemote,
			FetchedAt: p.now(),
		}
	}

	result := domain.QueryResult{
		Stations:  []domain.Station{},
		Source:    domain.SourceLocalFallback,
		RemoteErr: remoteErr,
	}

	// A superseded query skips the fallback; nobody reads its result.
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
		result.FetchedAt = p.now()
		return result
	}

	log.Printf("req_id=%s op=stations.FetchNearby fallback=local center=%s radius_km=%g reason=%q",
		obs.RequestID(ctx), center, radiusKm, remoteErr)

	local, dsErr := p.fallback(ctx, center, radiusKm)
	if dsErr != nil {
		err = dsErr
	} else {
		result.Stations = local
	}
	result.FetchedAt = p.now()
	return result
}

func (p *StationProvider) fetchRemote(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]domain.Station, error) {
	if p.remote == nil {
		return nil, fmt.Errorf("%w: no remote provider configured", domain.ErrNetworkFailure)
	}

	stations, err := p.remote.SearchNearby(ctx, center, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("remote: %w", domain.ErrEmptyResult)
	}
	return stations, nil
}

// fallback filters the dataset to radiusKm around center, preserving order.
func (p *StationProvider) fallback(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]domain.Station, error) {
	if p.dataset == nil {
		return nil, errors.New("fallback: no station dataset configured")
	}

	var (
		all []domain.Station
		err error
	)
	// Prefer an area pre-filter when the dataset supports one.
	if area, ok := p.dataset.(ports.AreaStationDataset); ok {
		all, err = area.ListStationsWithin(ctx, center, radiusKm)
	} else {
		all, err = p.dataset.ListStations(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("fallback: list stations: %w", err)
	}

	return WithinRadius(all, center, radiusKm), nil
}

// WithinRadius keeps the stations whose distance from center is at most
// radiusKm, in input order.
func WithinRadius(stations []domain.Station, center domain.Coordinate, radiusKm float64) []domain.Station {
	out := make([]domain.Station, 0, len(stations))
	for _, s := range stations {
		if geo.DistanceKm(center, s.Coordinate) <= radiusKm {
			out = append(out, s)
		}
	}
	return out
}

// AllStations returns the full dataset, used for free-roam markers.
func (p *StationProvider) AllStations(ctx context.Context) ([]domain.Station, error) {
	if p.dataset == nil {
		return []domain.Station{}, nil
	}
	stations, err := p.dataset.ListStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("all stations: %w", err)
	}
	return stations, nil
}
