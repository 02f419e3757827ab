package dto

import "time"

type StationResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ChargingType string  `json:"charging_type"`
	PowerKW      float64 `json:"power_kw"`
	Available    bool    `json:"available"`
	Address      string  `json:"address"`
	// Set on nearby results only.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type ListStationsResponse struct {
	Stations []StationResponse `json:"stations"`
}

type NearbyStationsResponse struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	RadiusKm  float64           `json:"radius_km"`
	Source    string            `json:"source"`
	Summary   string            `json:"summary"`
	FetchedAt time.Time         `json:"fetched_at"`
	Stations  []StationResponse `json:"stations"`
}
