package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Station dataset backing: "sqlite", "postgres" or "none" (embedded JSON only).
	DBDriver    string
	DBPath      string
	DatabaseURL string
	SeedPath    string

	// Remote POI provider: "tomtom", "openchargemap" or "none".
	POIProvider         string
	TomTomAPIKey        string
	TomTomBaseURL       string
	OpenChargeMapAPIKey string
	OpenChargeMapURL    string
	OCMCountryCode      string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	MQTTQuiesceMs   int

	DefaultLat      float64
	DefaultLon      float64
	DefaultRadiusKm float64
	MinRadiusKm     float64
	MaxRadiusKm     float64

	WatchInterval     time.Duration
	WatchMinDistanceM float64
	QueryDebounce     time.Duration

	ScreenHeight   float64
	AllowedOrigins []string

	// ServerSpeech narrates selections into the server log instead of
	// sending speak frames to the client.
	ServerSpeech bool
}

// LoadDotEnv loads a .env file when present; a missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:                Get("PORT", "8080"),
		DBDriver:            strings.ToLower(Get("DB_DRIVER", "sqlite")),
		DBPath:              Get("DB_PATH", "data/stations.db"),
		DatabaseURL:         Get("DATABASE_URL", ""),
		SeedPath:            Get("SEED_PATH", ""),
		POIProvider:         strings.ToLower(Get("POI_PROVIDER", "tomtom")),
		TomTomAPIKey:        Get("TOMTOM_API_KEY", ""),
		TomTomBaseURL:       Get("TOMTOM_BASE_URL", "https://api.tomtom.com"),
		OpenChargeMapAPIKey: Get("OCM_API_KEY", ""),
		OpenChargeMapURL:    Get("OCM_BASE_URL", "https://api.openchargemap.io"),
		OCMCountryCode:      Get("OCM_COUNTRY_CODE", "TR"),
		MQTTBroker:          Get("MQTT_BROKER", ""),
		MQTTClientID:        Get("MQTT_CLIENT_ID", "charge-station-locator"),
		MQTTTopicPrefix:     Get("MQTT_TOPIC_PREFIX", "devices"),
		AllowedOrigins:      GetList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	cfg.DefaultLat = collect(&errs, GetFloat, "DEFAULT_LAT", 41.0947)
	cfg.DefaultLon = collect(&errs, GetFloat, "DEFAULT_LON", 29.2146)
	cfg.DefaultRadiusKm = collect(&errs, GetFloat, "DEFAULT_RADIUS_KM", 1)
	cfg.MinRadiusKm = collect(&errs, GetFloat, "MIN_RADIUS_KM", 1)
	cfg.MaxRadiusKm = collect(&errs, GetFloat, "MAX_RADIUS_KM", 10)
	cfg.WatchMinDistanceM = collect(&errs, GetFloat, "WATCH_MIN_DISTANCE_M", 10)
	cfg.ScreenHeight = collect(&errs, GetFloat, "SCREEN_HEIGHT", 800)
	cfg.WatchInterval = collect(&errs, GetDuration, "WATCH_INTERVAL", 5*time.Second)
	cfg.QueryDebounce = collect(&errs, GetDuration, "QUERY_DEBOUNCE", 0)
	cfg.MQTTQuiesceMs = collect(&errs, GetInt, "MQTT_QUIESCE_MS", 250)
	cfg.ServerSpeech = collect(&errs, GetBool, "SERVER_SPEECH", false)

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("load config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("DB_PATH is required for DB_DRIVER=sqlite"))
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for DB_DRIVER=postgres"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}

	switch c.POIProvider {
	case "tomtom":
		if strings.TrimSpace(c.TomTomAPIKey) == "" {
			errs = append(errs, errors.New("TOMTOM_API_KEY is required for POI_PROVIDER=tomtom"))
		}
	case "openchargemap":
		if strings.TrimSpace(c.OpenChargeMapAPIKey) == "" {
			errs = append(errs, errors.New("OCM_API_KEY is required for POI_PROVIDER=openchargemap"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown POI_PROVIDER %q", c.POIProvider))
	}

	if c.DefaultLat < -90 || c.DefaultLat > 90 || c.DefaultLon < -180 || c.DefaultLon > 180 {
		errs = append(errs, fmt.Errorf("default location %v,%v out of range", c.DefaultLat, c.DefaultLon))
	}
	if c.MinRadiusKm <= 0 || c.MaxRadiusKm < c.MinRadiusKm {
		errs = append(errs, fmt.Errorf("radius bounds invalid: min=%v max=%v", c.MinRadiusKm, c.MaxRadiusKm))
	}
	if c.DefaultRadiusKm < c.MinRadiusKm || c.DefaultRadiusKm > c.MaxRadiusKm {
		errs = append(errs, fmt.Errorf("DEFAULT_RADIUS_KM %v outside [%v, %v]", c.DefaultRadiusKm, c.MinRadiusKm, c.MaxRadiusKm))
	}
	if c.MQTTQuiesceMs < 0 {
		errs = append(errs, fmt.Errorf("MQTT_QUIESCE_MS must not be negative, got %d", c.MQTTQuiesceMs))
	}
	if c.ScreenHeight <= 100 {
		errs = append(errs, fmt.Errorf("SCREEN_HEIGHT must exceed 100, got %v", c.ScreenHeight))
	}

	return errors.Join(errs...)
}

func collect[T any](errs *[]error, get func(string, T) (T, error), key string, fallback T) T {
	v, err := get(key, fallback)
	if err != nil {
		*errs = append(*errs, err)
	}
	return v
}

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: parse float %q: %w", key, v, err)
	}
	return f, nil
}

func GetInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("%s: parse int %q: %w", key, v, err)
	}
	return n, nil
}

func GetBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("%s: parse bool %q: %w", key, v, err)
	}
	return b, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("%s: parse duration %q: %w", key, v, err)
	}
	return d, nil
}

// GetList splits a comma-separated value, dropping empty items.
func GetList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make([]string, 0, 4)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
