package geo

import (
	"charge-station-locator/internal/domain"
	"math"
)

const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between a and b
// using the Haversine formula.
func DistanceKm(a, b domain.Coordinate) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h marginally outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// BoundingBox returns a box enclosing every point within radiusKm of center.
// It is a coarse pre-filter only; callers still apply DistanceKm.
func BoundingBox(center domain.Coordinate, radiusKm float64) Box {
	latDelta := radiusKm / 111.32
	minLat := math.Max(-90, center.Latitude-latDelta)
	maxLat := math.Min(90, center.Latitude+latDelta)

	cos := math.Cos(toRad(center.Latitude))
	if cos < 1e-9 || minLat == -90 || maxLat == 90 {
		return Box{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: 180}
	}

	lonDelta := radiusKm / (111.32 * cos)
	if lonDelta >= 180 {
		return Box{MinLat: minLat, MinLon: -180, MaxLat: maxLat, MaxLon: 180}
	}

	return Box{
		MinLat: minLat,
		MinLon: math.Max(-180, center.Longitude-lonDelta),
		MaxLat: maxLat,
		MaxLon: math.Min(180, center.Longitude+lonDelta),
	}
}

// Contains reports whether c lies inside the box (inclusive).
func (b Box) Contains(c domain.Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
