package poi

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/platform/obs"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// EV charging station category in the TomTom Search API.
const tomtomChargingCategory = "7309"

// TomTomProvider implements POIProvider using the TomTom Search API.
//
// TomTom does not report live connector availability on the POI search
// endpoint, so availability follows the placeholder policy.
// The provider is safe for concurrent use.
type TomTomProvider struct {
	client
	apiKey  string
	baseURL string
	limit   int
}

func NewTomTomProvider(apiKey string, baseURL string) (*TomTomProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("TomTom api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.tomtom.com"
	}

	return &TomTomProvider{
		client:  newClient(10 * time.Second),
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   100,
	}, nil
}

type tomtomSearchResponse struct {
	Results []struct {
		ID  string `json:"id"`
		POI struct {
			Name string `json:"name"`
		} `json:"poi"`
		Address struct {
			FreeformAddress string `json:"freeformAddress"`
		} `json:"address"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
		ChargingPark struct {
			Connectors []struct {
				ConnectorType string  `json:"connectorType"`
				RatedPowerKW  float64 `json:"ratedPowerKW"`
			} `json:"connectors"`
		} `json:"chargingPark"`
	} `json:"results"`
}

// SearchNearby queries /search/2/poiSearch/charging.json around center.
func (p *TomTomProvider) SearchNearby(
	ctx context.Context,
	center domain.Coordinate,
	radiusKm float64,
) (_ []domain.Station, err error) {
	defer obs.Time(ctx, "poi.tomtom.SearchNearby")(&err)

	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("tomtom search: %w", err)
	}
	if !(radiusKm > 0) {
		return nil, fmt.Errorf("tomtom search: %w", domain.ErrInvalidRadius)
	}

	endpoint := p.baseURL + "/search/2/poiSearch/charging.json"
	radiusMeters := int(math.Round(radiusKm * 1000))

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := p.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("key", p.apiKey)
		q.Set("lat", strconv.FormatFloat(center.Latitude, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(center.Longitude, 'f', -1, 64))
		q.Set("radius", strconv.Itoa(radiusMeters))
		q.Set("categorySet", tomtomChargingCategory)
		q.Set("limit", strconv.Itoa(p.limit))
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tomtom search: execute request: %w", err)
	}
	defer resp.Body.Close()

	var decoded tomtomSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tomtom search: decode response: %w", err)
	}

	stations := make([]domain.Station, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		chargingType := ""
		power := 0.0
		for i, c := range r.ChargingPark.Connectors {
			if i == 0 {
				chargingType = c.ConnectorType
			}
			power = math.Max(power, c.RatedPowerKW)
		}

		stations = append(stations, domain.Station{
			ID:           r.ID,
			Name:         r.POI.Name,
			Coordinate:   domain.Coordinate{Latitude: r.Position.Lat, Longitude: r.Position.Lon},
			ChargingType: chargingType,
			PowerKW:      power,
			Available:    PlaceholderAvailable(r.ID),
			Address:      r.Address.FreeformAddress,
		})
	}

	return collect(stations), nil
}
