// Package directions fetches walking and transit routes and renders each
// step as a spoken instruction.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cosmo/pkg/geo"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

var (
	// ErrNoRoute reports that no route exists between the endpoints.
	ErrNoRoute = errors.New("no route found")
	// ErrRouteDenied reports an authorization failure from the routing API.
	ErrRouteDenied = errors.New("route request denied")
)

// Mode is the travel mode of a route request.
type Mode string

const (
	ModeWalking Mode = "walking"
	ModeTransit Mode = "transit"
)

// Step is one maneuver of a route.
type Step struct {
	Instruction    string
	DistanceMeters float64
	DistanceText   string
	DurationText   string
	Start          geo.Point
	End            geo.Point
	TravelMode     string
}

// Route is a full navigable route.
type Route struct {
	Summary       string
	DistanceText  string
	DurationText  string
	Steps         []Step
	Path          []geo.Point
	Destination   geo.Point
	DestinationID string
}

// Router plans a route from an origin to a destination.
type Router interface {
	Route(ctx context.Context, origin, dest geo.Point, mode Mode) (*Route, error)
}

// Client talks to a Directions-style routing endpoint.
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

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary          string `json:"summary"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
			Steps []apiStep `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

type apiStep struct {
	HTMLInstructions string `json:"html_instructions"`
	TravelMode       string `json:"travel_mode"`
	Distance         struct {
		Text  string  `json:"text"`
		Value float64 `json:"value"`
	} `json:"distance"`
	Duration struct {
		Text string `json:"text"`
	} `json:"duration"`
	StartLocation struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"start_location"`
	EndLocation struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"end_location"`
	TransitDetails *transitDetails `json:"transit_details"`
}

type transitDetails struct {
	Line struct {
		ShortName string `json:"short_name"`
		Name      string `json:"name"`
		Vehicle   struct {
			Type string `json:"type"`
		} `json:"vehicle"`
	} `json:"line"`
	DepartureStop struct {
		Name string `json:"name"`
	} `json:"departure_stop"`
	ArrivalStop struct {
		Name string `json:"name"`
	} `json:"arrival_stop"`
	NumStops int `json:"num_stops"`
}

func (c *Client) Route(ctx context.Context, origin, dest geo.Point, mode Mode) (*Route, error) {
	if mode == "" {
		mode = ModeWalking
	}
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lon))
	q.Set("destination", fmt.Sprintf("%f,%f", dest.Lat, dest.Lon))
	q.Set("mode", string(mode))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build directions request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions: unexpected status %s", resp.Status)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, ErrNoRoute
	case "REQUEST_DENIED":
		return nil, fmt.Errorf("%w: %s", ErrRouteDenied, body.ErrorMessage)
	default:
		return nil, fmt.Errorf("directions: status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	r := body.Routes[0]
	leg := r.Legs[0]

	route := &Route{
		Summary:      r.Summary,
		DistanceText: leg.Distance.Text,
		DurationText: leg.Duration.Text,
		Destination:  dest,
	}
	route.Path = geo.DecodePolyline(r.OverviewPolyline.Points)

	for _, s := range leg.Steps {
		route.Steps = append(route.Steps, Step{
			Instruction:    renderInstruction(s),
			DistanceMeters: s.Distance.Value,
			DistanceText:   s.Distance.Text,
			DurationText:   s.Duration.Text,
			Start:          geo.Point{Lon: s.StartLocation.Lng, Lat: s.StartLocation.Lat},
			End:            geo.Point{Lon: s.EndLocation.Lng, Lat: s.EndLocation.Lat},
			TravelMode:     s.TravelMode,
		})
	}
	if len(route.Steps) == 0 {
		return nil, ErrNoRoute
	}
	return route, nil
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from routing instructions and normalizes the
// whitespace left behind.
func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.Join(strings.Fields(s), " ")
}

// renderInstruction builds the spoken text for a step. Transit steps get a
// boarding phrase assembled from the line and stop details.
func renderInstruction(s apiStep) string {
	if s.TravelMode == "TRANSIT" && s.TransitDetails != nil {
		return renderTransit(s.TransitDetails)
	}
	return stripHTML(s.HTMLInstructions)
}

func renderTransit(td *transitDetails) string {
	vehicle := transitVehicleName(td.Line.Vehicle.Type)
	line := td.Line.ShortName
	if line == "" {
		line = td.Line.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Take the %s", vehicle)
	if line != "" {
		fmt.Fprintf(&b, " %s", line)
	}
	if td.DepartureStop.Name != "" {
		fmt.Fprintf(&b, " from %s", td.DepartureStop.Name)
	}
	if td.ArrivalStop.Name != "" {
		fmt.Fprintf(&b, " to %s", td.ArrivalStop.Name)
	}
	if td.NumStops == 1 {
		b.WriteString(", 1 stop")
	} else if td.NumStops > 1 {
		fmt.Fprintf(&b, ", %d stops", td.NumStops)
	}
	return b.String()
}

func transitVehicleName(t string) string {
	switch t {
	case "BUS":
		return "bus"
	case "SUBWAY", "METRO_RAIL":
		return "subway"
	case "TRAM", "LIGHT_RAIL":
		return "tram"
	case "RAIL", "HEAVY_RAIL", "COMMUTER_TRAIN":
		return "train"
	case "FERRY":
		return "ferry"
	default:
		return "transit"
	}
}
