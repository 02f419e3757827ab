package domain

import "fmt"

// A request for stations within RadiusKm of Center.
// Pinned records whether the center is user-fixed at issue time.
type RadiusQuery struct {
	Center   Coordinate
	RadiusKm float64
	Pinned   bool
}

func (q RadiusQuery) Validate() error {
	if err := q.Center.Validate(); err != nil {
		return fmt.Errorf("radius query: %w", err)
	}
	if !(q.RadiusKm > 0) {
		return fmt.Errorf("radius query: %w: %v", ErrInvalidRadius, q.RadiusKm)
	}
	return nil
}
