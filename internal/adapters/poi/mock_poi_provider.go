package poi

import (
	"charge-station-locator/internal/domain"
	"context"
	"sync"
)

// MockPOIProvider returns a fixed station list (or error) and records calls.
type MockPOIProvider struct {
	mu       sync.Mutex
	stations []domain.Station
	err      error
	calls    []domain.RadiusQuery
	gate     chan struct{}
}

func NewMockPOIProvider(stations []domain.Station, err error) *MockPOIProvider {
	return &MockPOIProvider{stations: stations, err: err}
}

func (m *MockPOIProvider) SearchNearby(ctx context.Context, center domain.Coordinate, radiusKm float64) ([]domain.Station, error) {
	m.mu.Lock()
	m.calls = append(m.calls, domain.RadiusQuery{Center: center, RadiusKm: radiusKm})
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	out := make([]domain.Station, len(m.stations))
	copy(out, m.stations)
	return out, nil
}

// Hold makes searches block until release is called or their context ends.
func (m *MockPOIProvider) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
		})
	}
}

// Calls returns the queries received so far.
func (m *MockPOIProvider) Calls() []domain.RadiusQuery {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.RadiusQuery, len(m.calls))
	copy(out, m.calls)
	return out
}
