package api

import (
	"charge-station-locator/internal/api/handlers"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Deps struct {
	Stations handlers.StationQuerier
	// Sessions serves the websocket map protocol; nil disables /ws.
	Sessions       http.Handler
	ActiveSessions func() int

	AllowedOrigins  []string
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	}))

	healthHandler := &handlers.HealthHandler{ActiveSessions: d.ActiveSessions}
	stationHandler := &handlers.StationHandler{
		Stations:        d.Stations,
		DefaultRadiusKm: d.DefaultRadiusKm,
		MinRadiusKm:     d.MinRadiusKm,
		MaxRadiusKm:     d.MaxRadiusKm,
	}

	r.Get("/health", healthHandler.Health)
	r.Get("/stations", stationHandler.List)
	r.Get("/stations/nearby", stationHandler.Nearby)
	if d.Sessions != nil {
		r.Method(http.MethodGet, "/ws", d.Sessions)
	}

	return r
}
