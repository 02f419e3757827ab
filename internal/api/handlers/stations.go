package handlers

import (
	"charge-station-locator/internal/api/dto"
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/geo"
	"charge-station-locator/internal/platform/obs"
	"charge-station-locator/internal/services"
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// StationQuerier is the read side of the station provider.
type StationQuerier interface {
	FetchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) domain.QueryResult
	AllStations(ctx context.Context) ([]domain.Station, error)
}

// StationHandler exposes one-shot station lookups outside a map session.
type StationHandler struct {
	Stations        StationQuerier
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64
}

func (h *StationHandler) List(w http.ResponseWriter, r *http.Request) {
	stations, err := h.Stations.AllStations(r.Context())
	if err != nil {
		log.Printf("req_id=%s list stations failed: %v", obs.RequestID(r.Context()), err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListStationsResponse{Stations: make([]dto.StationResponse, 0, len(stations))}
	for _, s := range stations {
		res.Stations = append(res.Stations, stationResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Nearby resolves GET /stations/nearby?lat=&lon=&radius_km= through the
// provider, falling back to the local dataset like a pinned map query.
func (h *StationHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := parseFloatParam(q.Get("lon"), "lon")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	center := domain.Coordinate{Latitude: lat, Longitude: lon}
	if err := center.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	radius := h.DefaultRadiusKm
	if raw := strings.TrimSpace(q.Get("radius_km")); raw != "" {
		radius, err = parseFloatParam(raw, "radius_km")
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	if radius < h.MinRadiusKm || radius > h.MaxRadiusKm {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("radius_km must be between %g and %g", h.MinRadiusKm, h.MaxRadiusKm))
		return
	}

	result := h.Stations.FetchNearby(r.Context(), center, radius)
	if result.RemoteErr != nil {
		log.Printf("req_id=%s nearby stations fell back: %v", obs.RequestID(r.Context()), result.RemoteErr)
	}

	res := dto.NearbyStationsResponse{
		Latitude:  lat,
		Longitude: lon,
		RadiusKm:  radius,
		Source:    result.Source.String(),
		Summary:   services.ResultSummary(len(result.Stations)),
		FetchedAt: result.FetchedAt,
		Stations:  make([]dto.StationResponse, 0, len(result.Stations)),
	}
	for _, s := range result.Stations {
		sr := stationResponse(s)
		d := math.Round(geo.DistanceKm(center, s.Coordinate)*100) / 100
		sr.DistanceKm = &d
		res.Stations = append(res.Stations, sr)
	}

	writeJSON(w, r, http.StatusOK, res)
}

func parseFloatParam(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

func stationResponse(s domain.Station) dto.StationResponse {
	return dto.StationResponse{
		ID:           s.ID,
		Name:         s.Name,
		Latitude:     s.Coordinate.Latitude,
		Longitude:    s.Coordinate.Longitude,
		ChargingType: s.ChargingType,
		PowerKW:      s.PowerKW,
		Available:    s.Available,
		Address:      s.Address,
	}
}
