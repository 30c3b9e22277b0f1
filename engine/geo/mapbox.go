// Package geo proxies Mapbox geocoding and directions so the access token
// stays on the server.
package geo

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/pkg/mid"
	"github.com/maiwanamini/unnamed-tms-backend/pkg/resilience"
)

const (
	DefaultGeocodingBase  = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	DefaultDirectionsBase = "https://api.mapbox.com/directions/v5/mapbox"

	// MinQueryLen is the shortest query sent upstream.
	MinQueryLen  = 3
	DefaultLimit = 6
	MaxLimit     = 10

	profile = "driving"
)

var (
	ErrNotConfigured = errors.New("MAPBOX_ACCESS_TOKEN is not configured")
	ErrInvalidPoint  = errors.New("fromLat/fromLng/toLat/toLng are required numbers")
	ErrNoRoute       = errors.New("Mapbox directions response missing distance/duration")
)

// upstreamName prefixes Mapbox errors.
const upstreamName = "mapbox"

// UpstreamError is a non-2xx answer from Mapbox.
type UpstreamError = mid.UpstreamError

// Suggestion is one autocomplete hit.
type Suggestion struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	PlaceName  string   `json:"placeName"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Region     string   `json:"region"`
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

func (p Point) valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) && !math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

// Route is a driving distance and duration.
type Route struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes float64 `json:"durationMinutes"`
}

// Config configures a Client.
type Config struct {
	AccessToken    string
	GeocodingBase  string
	DirectionsBase string
	HTTPClient     *http.Client
	// Breaker, if set, guards every Mapbox call.
	Breaker *resilience.Breaker
}

// Client calls Mapbox.
type Client struct {
	token      string
	geocoding  string
	directions string
	http       *http.Client
	breaker    *resilience.Breaker
	logger     *slog.Logger
}

// New creates a Client. A missing token is not an error here; every call
// then fails with ErrNotConfigured.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		token:      strings.TrimSpace(cfg.AccessToken),
		geocoding:  strings.TrimRight(cfg.GeocodingBase, "/"),
		directions: strings.TrimRight(cfg.DirectionsBase, "/"),
		http:       cfg.HTTPClient,
		breaker:    cfg.Breaker,
		logger:     logger.With("component", "geo"),
	}
	if c.geocoding == "" {
		c.geocoding = DefaultGeocodingBase
	}
	if c.directions == "" {
		c.directions = DefaultDirectionsBase
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

// Configured reports whether an access token is set.
func (c *Client) Configured() bool { return c.token != "" }

type feature struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
	Context   []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
}

type geocodeResponse struct {
	Features []feature `json:"features"`
}

// ClampLimit maps a requested result count into [1, MaxLimit], with
// DefaultLimit for zero or unparsable input.
func ClampLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return DefaultLimit
	}
	return min(max(n, 1), MaxLimit)
}

// Autocomplete returns address suggestions for q. Queries shorter than
// MinQueryLen return an empty list without calling Mapbox.
func (c *Client) Autocomplete(ctx context.Context, q string, limit int) ([]Suggestion, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinQueryLen {
		return []Suggestion{}, nil
	}
	limit = min(max(limit, 1), MaxLimit)

	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("autocomplete", "true")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("types", "address,place,postcode")
	params.Set("language", "en")
	u := c.geocoding + "/" + url.PathEscape(q) + ".json?" + params.Encode()

	resp, err := call[geocodeResponse](ctx, c, u).Unwrap()
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(resp.Features))
	for _, f := range resp.Features {
		s := suggestionFrom(f)
		if s.Label != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func suggestionFrom(f feature) Suggestion {
	s := Suggestion{
		ID:        f.ID,
		Label:     f.PlaceName,
		PlaceName: f.PlaceName,
	}
	if s.Label == "" {
		s.Label = f.Text
	}
	if len(f.Center) >= 2 {
		lng, lat := f.Center[0], f.Center[1]
		s.Lng, s.Lat = &lng, &lat
	}

	var region, district string
	for _, item := range f.Context {
		switch {
		case s.PostalCode == "" && strings.HasPrefix(item.ID, "postcode"):
			s.PostalCode = item.Text
		case s.City == "" && (strings.HasPrefix(item.ID, "place") || strings.HasPrefix(item.ID, "locality")):
			s.City = item.Text
		case region == "" && strings.HasPrefix(item.ID, "region"):
			region = item.Text
		case district == "" && strings.HasPrefix(item.ID, "district"):
			district = item.Text
		}
	}
	// District is the province in many countries; region can be broader.
	s.Region = district
	if s.Region == "" {
		s.Region = region
	}
	return s
}

type directionsResponse struct {
	Routes []struct {
		Distance *float64 `json:"distance"`
		Duration *float64 `json:"duration"`
	} `json:"routes"`
}

// Directions returns the driving distance and duration from one point to
// another.
func (c *Client) Directions(ctx context.Context, from, to Point) (Route, error) {
	if !c.Configured() {
		return Route{}, ErrNotConfigured
	}
	if !from.valid() || !to.valid() {
		return Route{}, ErrInvalidPoint
	}

	coords := formatCoord(from) + ";" + formatCoord(to)
	params := url.Values{}
	params.Set("access_token", c.token)
	params.Set("overview", "false")
	params.Set("alternatives", "false")
	params.Set("geometries", "geojson")
	u := c.directions + "/" + profile + "/" + coords + "?" + params.Encode()

	resp, err := call[directionsResponse](ctx, c, u).Unwrap()
	if err != nil {
		return Route{}, err
	}
	if len(resp.Routes) == 0 || resp.Routes[0].Distance == nil || resp.Routes[0].Duration == nil {
		return Route{}, ErrNoRoute
	}
	dist, dur := *resp.Routes[0].Distance, *resp.Routes[0].Duration
	return Route{
		DistanceMeters:  dist,
		DurationSeconds: dur,
		DistanceKm:      dist / 1000,
		DurationMinutes: dur / 60,
	}, nil
}

func formatCoord(p Point) string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
