// Package hazards queries OpenStreetMap data for pedestrian hazards near a
// point and describes them for speech.
package hazards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cosmo/pkg/geo"
)

const (
	defaultBaseURL = "https://overpass-api.de/api/interpreter"

	// DefaultRadius is how far around the walker hazards are fetched.
	DefaultRadius = 100.0
)

// Kind classifies a hazard for deduplication and filtering.
type Kind string

const (
	KindCrossing        Kind = "crossing"
	KindTrafficSignals  Kind = "traffic_signals"
	KindRailwayCrossing Kind = "railway_crossing"
	KindKerb            Kind = "kerb"
	KindConstruction    Kind = "construction"
)

// Hazard is one obstacle worth announcing.
type Hazard struct {
	ID             int64
	Kind           Kind
	Description    string
	Point          geo.Point
	DistanceMeters float64
}

// Source fetches hazards near a point.
type Source interface {
	Near(ctx context.Context, pt geo.Point, radius float64) ([]Hazard, error)
}

// Client talks to an Overpass API endpoint.
type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{http: hc, baseURL: defaultBaseURL}
}

// SetBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type overpassResponse struct {
	Elements []struct {
		ID   int64             `json:"id"`
		Lat  float64           `json:"lat"`
		Lon  float64           `json:"lon"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

func buildQuery(pt geo.Point, radius float64) string {
	around := fmt.Sprintf("around:%.0f,%.6f,%.6f", radius, pt.Lat, pt.Lon)
	return fmt.Sprintf(`[out:json][timeout:10];
(
  node[highway=crossing](%[1]s);
  node[highway=traffic_signals](%[1]s);
  node[railway=level_crossing](%[1]s);
  node[barrier=kerb](%[1]s);
  node[highway=construction](%[1]s);
  way[highway=construction](%[1]s);
);
out center;`, around)
}

func (c *Client) Near(ctx context.Context, pt geo.Point, radius float64) ([]Hazard, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}
	form := url.Values{"data": {buildQuery(pt, radius)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass: unexpected status %s", resp.Status)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	var out []Hazard
	for _, el := range body.Elements {
		kind, desc, ok := describe(el.Tags)
		if !ok {
			continue
		}
		p := geo.Point{Lon: el.Lon, Lat: el.Lat}
		out = append(out, Hazard{
			ID:             el.ID,
			Kind:           kind,
			Description:    desc,
			Point:          p,
			DistanceMeters: geo.MetersBetween(pt, p),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

// describe maps OSM tags to a spoken description. Unknown tag combinations
// are dropped rather than announced vaguely.
func describe(tags map[string]string) (Kind, string, bool) {
	switch {
	case tags["railway"] == "level_crossing":
		return KindRailwayCrossing, "a railway crossing", true
	case tags["highway"] == "traffic_signals":
		return KindTrafficSignals, "a traffic light", true
	case tags["highway"] == "crossing":
		switch tags["crossing"] {
		case "traffic_signals":
			return KindCrossing, "a signal-controlled crossing", true
		case "marked", "zebra":
			return KindCrossing, "a marked crosswalk", true
		case "uncontrolled", "unmarked":
			return KindCrossing, "an uncontrolled crossing", true
		default:
			return KindCrossing, "a pedestrian crossing", true
		}
	case tags["barrier"] == "kerb":
		return KindKerb, "a kerb", true
	case tags["highway"] == "construction" || tags["construction"] != "":
		return KindConstruction, "construction work", true
	}
	return "", "", false
}
