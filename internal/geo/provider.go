package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vadimbarashkov/shortlink-core/internal/models"
)

// HTTPProvider queries a JSON geo-IP endpoint. The endpoint is expected to
// accept the IP as a trailing path segment and answer with an ip-api style
// payload.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type geoPayload struct {
	Status      string   `json:"status"`
	CountryCode string   `json:"countryCode"`
	Country     string   `json:"country"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (models.GeoInfo, error) {
	const op = "geo.HTTPProvider.Lookup"

	reqURL, err := url.JoinPath(p.endpoint, ip)
	if err != nil {
		return models.GeoInfo{}, fmt.Errorf("%s: failed to build request url: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.GeoInfo{}, fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.GeoInfo{}, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GeoInfo{}, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var payload geoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.GeoInfo{}, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}

	if payload.Status != "" && payload.Status != "success" {
		return models.GeoInfo{}, fmt.Errorf("%s: provider returned status %q", op, payload.Status)
	}

	return models.GeoInfo{
		CountryCode: payload.CountryCode,
		CountryName: payload.Country,
		Region:      payload.RegionName,
		City:        payload.City,
		Latitude:    payload.Lat,
		Longitude:   payload.Lon,
	}, nil
}
