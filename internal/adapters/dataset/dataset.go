package dataset

import (
	"bytes"
	"charge-station-locator/internal/domain"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed stations.json
var bundled []byte

// Record is the on-disk shape of one station in a dataset file.
type Record struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ChargingType string  `json:"charging_type"`
	Available    bool    `json:"availability"`
	PowerKW      float64 `json:"power_kW"`
	Address      string  `json:"address"`
}

func (r Record) Station() domain.Station {
	return domain.Station{
		ID:           r.ID,
		Name:         r.Name,
		Coordinate:   domain.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
		ChargingType: r.ChargingType,
		PowerKW:      r.PowerKW,
		Available:    r.Available,
		Address:      r.Address,
	}
}

// Parse decodes and validates a dataset, returning stations in file order.
func Parse(r io.Reader) ([]domain.Station, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("parse dataset: decode json: %w", err)
	}

	seen := make(map[string]struct{}, len(records))
	stations := make([]domain.Station, 0, len(records))
	for i, rec := range records {
		rec.ID = strings.TrimSpace(rec.ID)
		if rec.ID == "" {
			return nil, fmt.Errorf("parse dataset: record %d: id cannot be empty", i+1)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("parse dataset: record %d: duplicate id %q", i+1, rec.ID)
		}
		seen[rec.ID] = struct{}{}

		s := rec.Station()
		if err := s.Coordinate.Validate(); err != nil {
			return nil, fmt.Errorf("parse dataset: record %d (%s): %w", i+1, rec.ID, err)
		}
		if s.PowerKW < 0 {
			return nil, fmt.Errorf("parse dataset: record %d (%s): negative power %v", i+1, rec.ID, s.PowerKW)
		}
		stations = append(stations, s)
	}

	return stations, nil
}

// ParseFile reads and parses the dataset file at path.
func ParseFile(path string) ([]domain.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parse dataset: open %q: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Static is an in-memory StationDataset.
type Static struct {
	stations []domain.Station
}

func NewStatic(stations []domain.Station) *Static {
	out := make([]domain.Station, len(stations))
	copy(out, stations)
	return &Static{stations: out}
}

// Bundled returns the dataset compiled into the binary.
func Bundled() (*Static, error) {
	stations, err := Parse(bytes.NewReader(bundled))
	if err != nil {
		return nil, fmt.Errorf("bundled dataset: %w", err)
	}
	return &Static{stations: stations}, nil
}

func (s *Static) ListStations(ctx context.Context) ([]domain.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Station, len(s.stations))
	copy(out, s.stations)
	return out, nil
}

func (s *Static) Len() int { return len(s.stations) }
