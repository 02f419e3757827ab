package poi

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/platform/obs"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OpenChargeMapProvider implements POIProvider using the Open Charge Map v3 API.
// Availability is derived from the operational status of the connections.
type OpenChargeMapProvider struct {
	client
	apiKey      string
	baseURL     string
	countryCode string
	maxResults  int
}

func NewOpenChargeMapProvider(apiKey, baseURL, countryCode string) (*OpenChargeMapProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("Open Charge Map api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openchargemap.io"
	}

	return &OpenChargeMapProvider{
		client:      newClient(10 * time.Second),
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		countryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
		maxResults:  100,
	}, nil
}

type ocmPOI struct {
	ID          int `json:"ID"`
	AddressInfo struct {
		Title           string  `json:"Title"`
		AddressLine1    string  `json:"AddressLine1"`
		Town            string  `json:"Town"`
		StateOrProvince string  `json:"StateOrProvince"`
		Postcode        string  `json:"Postcode"`
		Latitude        float64 `json:"Latitude"`
		Longitude       float64 `json:"Longitude"`
	} `json:"AddressInfo"`
	Connections []struct {
		PowerKW        *float64 `json:"PowerKW"`
		ConnectionType *struct {
			Title string `json:"Title"`
		} `json:"ConnectionType"`
		StatusType *struct {
			IsOperational *bool `json:"IsOperational"`
		} `json:"StatusType"`
	} `json:"Connections"`
}

// SearchNearby queries /v3/poi/ with a kilometre distance around center.
func (p *OpenChargeMapProvider) SearchNearby(
	ctx context.Context,
	center domain.Coordinate,
	radiusKm float64,
) (_ []domain.Station, err error) {
	defer obs.Time(ctx, "poi.openchargemap.SearchNearby")(&err)

	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("open charge map search: %w", err)
	}
	if !(radiusKm > 0) {
		return nil, fmt.Errorf("open charge map search: %w", domain.ErrInvalidRadius)
	}

	endpoint := p.baseURL + "/v3/poi/"

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := p.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-Key", p.apiKey)
		q := req.URL.Query()
		q.Set("output", "json")
		if p.countryCode != "" {
			q.Set("countrycode", p.countryCode)
		}
		q.Set("latitude", strconv.FormatFloat(center.Latitude, 'f', -1, 64))
		q.Set("longitude", strconv.FormatFloat(center.Longitude, 'f', -1, 64))
		q.Set("distance", strconv.FormatFloat(radiusKm, 'f', -1, 64))
		q.Set("distanceunit", "km")
		q.Set("maxresults", strconv.Itoa(p.maxResults))
		q.Set("compact", "true")
		q.Set("verbose", "false")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("open charge map search: execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded []ocmPOI
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("open charge map search: decode response: %w", err)
	}

	stations := make([]domain.Station, 0, len(decoded))
	for _, poi := range decoded {
		stations = append(stations, poi.toStation())
	}

	return collect(stations), nil
}

func (poi ocmPOI) toStation() domain.Station {
	id := ""
	if poi.ID > 0 {
		id = strconv.Itoa(poi.ID)
	}

	chargingType := ""
	if len(poi.Connections) > 0 && poi.Connections[0].ConnectionType != nil {
		chargingType = poi.Connections[0].ConnectionType.Title
	}

	power := 0.0
	statusKnown := false
	operational := false
	for _, c := range poi.Connections {
		if c.PowerKW != nil && *c.PowerKW > power {
			power = *c.PowerKW
		}
		if c.StatusType != nil && c.StatusType.IsOperational != nil {
			statusKnown = true
			operational = operational || *c.StatusType.IsOperational
		}
	}

	available := operational
	if !statusKnown {
		available = PlaceholderAvailable(id)
	}

	a := poi.AddressInfo
	return domain.Station{
		ID:           id,
		Name:         a.Title,
		Coordinate:   domain.Coordinate{Latitude: a.Latitude, Longitude: a.Longitude},
		ChargingType: chargingType,
		PowerKW:      power,
		Available:    available,
		Address:      joinNonEmpty(a.AddressLine1, a.Town, a.StateOrProvince, a.Postcode),
	}
}
