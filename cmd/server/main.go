package main

import (
	"charge-station-locator/internal/adapters/dataset"
	"charge-station-locator/internal/adapters/location"
	"charge-station-locator/internal/adapters/poi"
	"charge-station-locator/internal/adapters/repositories"
	"charge-station-locator/internal/api"
	"charge-station-locator/internal/config"
	"charge-station-locator/internal/platform/db"
	"charge-station-locator/internal/ports"
	"charge-station-locator/internal/services"
	"charge-station-locator/internal/session"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// main is the application composition root.
// It wires concrete adapters (POI provider, station dataset, MQTT) behind ports and starts the HTTP server.
func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	fallback, closeDataset, err := openDataset(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDataset()

	remote, err := openPOIProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}
	provider := services.NewStationProvider(remote, fallback)

	var mqttClient mqtt.Client
	if cfg.MQTTBroker != "" {
		mqttClient, err = location.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			log.Fatal(err)
		}
		defer mqttClient.Disconnect(uint(cfg.MQTTQuiesceMs))
		log.Printf("MQTT connected broker=%s prefix=%s", cfg.MQTTBroker, cfg.MQTTTopicPrefix)
	}

	hub := session.NewHub(provider, session.FromConfig(cfg), mqttClient, cfg.AllowedOrigins)
	router := api.NewRouter(api.Deps{
		Stations:        provider,
		Sessions:        hub,
		ActiveSessions:  hub.Active,
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultRadiusKm: cfg.DefaultRadiusKm,
		MinRadiusKm:     cfg.MinRadiusKm,
		MaxRadiusKm:     cfg.MaxRadiusKm,
	})

	// WriteTimeout does not apply to hijacked websocket connections.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server listening addr=:%s poi=%s dataset=%s", cfg.Port, cfg.POIProvider, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := hub.Close(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openDataset returns the fallback station dataset: the embedded JSON, or a
// SQL repository when one is configured and holds stations.
func openDataset(cfg *config.Config) (ports.StationDataset, func(), error) {
	nop := func() {}

	var (
		conn    *sql.DB
		dialect repositories.Dialect
		err     error
	)
	switch cfg.DBDriver {
	case "none":
		bundled, err := dataset.Bundled()
		if err != nil {
			return nil, nop, err
		}
		return bundled, nop, nil
	case "postgres":
		dialect = repositories.DialectPostgres
		conn, err = db.Open(cfg.DatabaseURL)
	default:
		dialect = repositories.DialectSqlite
		conn, err = db.OpenSqlite(cfg.DBPath)
	}
	if err != nil {
		return nil, nop, err
	}
	closeDB := func() { conn.Close() }

	// Initialize schema and seed on startup for local runs.
	if err := repositories.InitSchema(conn, dialect); err != nil {
		closeDB()
		return nil, nop, fmt.Errorf("open dataset: %w", err)
	}
	if cfg.SeedPath != "" {
		n, err := repositories.SeedFromJSON(conn, dialect, cfg.SeedPath)
		if err != nil {
			closeDB()
			return nil, nop, fmt.Errorf("open dataset: %w", err)
		}
		log.Printf("Seeded stations count=%d path=%s", n, cfg.SeedPath)
	}

	var repo *repositories.SQLStationRepository
	if dialect == repositories.DialectPostgres {
		repo = repositories.NewPostgresStationRepository(conn)
	} else {
		repo = repositories.NewSqliteStationRepository(conn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stations, err := repo.ListStations(ctx)
	if err != nil {
		closeDB()
		return nil, nop, fmt.Errorf("open dataset: %w", err)
	}
	if len(stations) == 0 {
		log.Printf("Station table is empty (driver=%s); using the embedded dataset", dialect)
		bundled, err := dataset.Bundled()
		if err != nil {
			closeDB()
			return nil, nop, err
		}
		return bundled, closeDB, nil
	}
	return repo, closeDB, nil
}

func openPOIProvider(cfg *config.Config) (ports.POIProvider, error) {
	switch cfg.POIProvider {
	case "tomtom":
		return poi.NewTomTomProvider(cfg.TomTomAPIKey, cfg.TomTomBaseURL)
	case "openchargemap":
		return poi.NewOpenChargeMapProvider(cfg.OpenChargeMapAPIKey, cfg.OpenChargeMapURL, cfg.OCMCountryCode)
	default:
		log.Println("No POI provider configured; serving the local dataset only")
		return nil, nil
	}
}
