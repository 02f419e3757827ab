package domain

// The currently selected station together with its derived travel metrics.
// A Selection only exists while a station is selected.
type Selection struct {
	Station    Station
	DistanceKm float64
	ETAMinutes int
}
