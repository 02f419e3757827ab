package domain

import "time"

// Represents a single EV charging station as received from a provider.
// Identity is ID; a Station is never mutated after it has been returned
// as part of a QueryResult.
type Station struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Coordinate   Coordinate `json:"coordinate"`
	ChargingType string     `json:"charging_type"`
	PowerKW      float64    `json:"power_kw"`
	Available    bool       `json:"available"`
	Address      string     `json:"address"`
}

// Source tags where the stations of a QueryResult came from.
type Source int

const (
	SourceRemote Source = iota
	SourceLocalFallback
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocalFallback:
		return "local_fallback"
	default:
		return "unknown"
	}
}

// The outcome of one resolved radius query.
// Created on fetch completion and replaced wholesale by the next query.
type QueryResult struct {
	Stations  []Station
	Source    Source
	FetchedAt time.Time
	// RemoteErr is set when the remote source failed or returned nothing
	// and the stations came from the fallback dataset.
	RemoteErr error
}

// Empty reports whether the result holds no stations.
func (r QueryResult) Empty() bool { return len(r.Stations) == 0 }

// StationByID returns the station with the given id, if present.
func (r QueryResult) StationByID(id string) (Station, bool) {
	for _, s := range r.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}
