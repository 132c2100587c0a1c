// Package places finds destination candidates by free-text search and
// ranks them for voice presentation.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cosmo/pkg/geo"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

	// MaxCandidates caps a result set before ranking output.
	MaxCandidates = 50
)

// ErrNoResults reports a search that returned nothing usable.
var ErrNoResults = errors.New("no places found")

// Candidate is one possible destination.
type Candidate struct {
	Label          string
	Address        string
	Point          geo.Point
	DistanceMeters float64
	PlaceID        string
	Rating         float64
}

// Searcher resolves a query near a position into candidates.
type Searcher interface {
	Search(ctx context.Context, query string, near geo.Point) ([]Candidate, error)
}

// Client talks to a Places-style text search endpoint.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(hc *http.Client, apiKey string) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: hc, baseURL: defaultBaseURL, apiKey: apiKey}
}

// SetBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type searchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		PlaceID          string  `json:"place_id"`
		Rating           float64 `json:"rating"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) Search(ctx context.Context, query string, near geo.Point) ([]Candidate, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("location", fmt.Sprintf("%f,%f", near.Lat, near.Lon))
	q.Set("radius", "5000")
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build places request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: unexpected status %s", resp.Status)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResults
	default:
		return nil, fmt.Errorf("places: status %s: %s", body.Status, body.ErrorMessage)
	}

	out := make([]Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		pt := geo.Point{Lon: r.Geometry.Location.Lng, Lat: r.Geometry.Location.Lat}
		out = append(out, Candidate{
			Label:          r.Name,
			Address:        r.FormattedAddress,
			Point:          pt,
			DistanceMeters: geo.MetersBetween(near, pt),
			PlaceID:        r.PlaceID,
			Rating:         r.Rating,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}
