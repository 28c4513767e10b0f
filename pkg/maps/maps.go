// Package maps is the client side of the external map collaborator.
//
// Only the distance contract lives here; geocoding and directions are plain
// HTTP pass-throughs handled outside the dispatch core. The provider may
// fail at any time; callers fall back to Haversine.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shiva/swiftparcel/internal/model"
)

// ErrUnavailable is returned on any transport or upstream failure.
// Callers treat it as a signal to fall back, never as a user-facing error.
var ErrUnavailable = errors.New("maps: provider unavailable")

// DistanceProvider returns the road distance between two points in
// kilometres.
type DistanceProvider interface {
	DistanceKm(ctx context.Context, origin, destination model.GeoPoint) (float64, error)
}

// HTTPProvider talks to a distance-matrix style endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type distanceResponse struct {
	DistanceKm float64 `json:"distance_km"`
	Status     string  `json:"status"`
}

// DistanceKm queries the provider. Any non-200 answer or malformed body is
// reported as ErrUnavailable.
func (p *HTTPProvider) DistanceKm(ctx context.Context, origin, destination model.GeoPoint) (float64, error) {
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	q.Set("destination", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	q.Set("key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/distance?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body distanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if body.Status != "ok" || body.DistanceKm <= 0 {
		return 0, fmt.Errorf("%w: status %q", ErrUnavailable, body.Status)
	}

	return body.DistanceKm, nil
}
