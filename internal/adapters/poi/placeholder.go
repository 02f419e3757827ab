package poi

import (
	"charge-station-locator/internal/domain"
	"hash/fnv"
	"strings"
)

// Placeholder policy for station fields a provider does not supply.
//
//	name          -> "Unnamed Station"
//	charging type -> "Unknown"
//	power         -> 0 kW (negative values are clamped to 0)
//	availability  -> stand-in derived from an FNV-1a hash of the station ID,
//	                 stable across queries so markers do not flicker
const (
	PlaceholderName         = "Unnamed Station"
	PlaceholderChargingType = "Unknown"
)

// PlaceholderAvailable returns the deterministic availability stand-in for id.
// Roughly three in four stations are reported available.
func PlaceholderAvailable(id string) bool {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32()%4 != 0
}

// normalizeStation fills missing fields according to the placeholder policy.
func normalizeStation(s domain.Station) domain.Station {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = PlaceholderName
	}
	s.ChargingType = strings.TrimSpace(s.ChargingType)
	if s.ChargingType == "" {
		s.ChargingType = PlaceholderChargingType
	}
	if s.PowerKW < 0 {
		s.PowerKW = 0
	}
	s.Address = strings.TrimSpace(s.Address)
	return s
}

// collect drops records without an id or a usable coordinate and keeps the
// first occurrence of each id, preserving provider order.
func collect(stations []domain.Station) []domain.Station {
	seen := make(map[string]struct{}, len(stations))
	out := make([]domain.Station, 0, len(stations))
	for _, s := range stations {
		if s.ID == "" {
			continue
		}
		if err := s.Coordinate.Validate(); err != nil {
			continue
		}
		if s.Coordinate.Latitude == 0 && s.Coordinate.Longitude == 0 {
			continue
		}
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, normalizeStation(s))
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
