// Package routing resolves driving routes between two coordinates through
// an OpenRouteService-compatible directions API, with endpoint fallback,
// disk caching and derived per-segment traffic levels.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/lookuplog"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
)

// ErrNoRoute reports that no usable route candidate survived resolution.
// It covers both the upstream service returning zero routes and the region
// filter eliminating every candidate.
var ErrNoRoute = errors.New("no route found")

// PreferenceWestBank requests routing constrained to the West Bank road
// network: highways and border crossings are avoided and candidates whose
// geometry never enters the region are discarded.
const PreferenceWestBank = "west_bank"

// West Bank bounding rectangle used by the region filter. A coarse
// approximation, not a geofence: one geometry point inside is enough to
// keep a candidate.
const (
	regionLatMin = 31.0
	regionLatMax = 32.5
	regionLonMin = 34.5
	regionLonMax = 35.5
)

// Instruction is a single turn-by-turn step.
type Instruction struct {
	Type     int     `json:"type"`
	Text     string  `json:"instruction"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// TrafficSegment annotates one leg of a route with a congestion level
// derived from the routing service's own timing.
type TrafficSegment struct {
	Start    geo.Coordinate `json:"start"`
	End      geo.Coordinate `json:"end"`
	Distance float64        `json:"distance"`
	Duration float64        `json:"duration"`
	Level    string         `json:"traffic_level"`
}

// Candidate is one resolved route.
type Candidate struct {
	DistanceKm      float64          `json:"distance_km"`
	DurationMinutes float64          `json:"duration_minutes"`
	Geometry        []geo.Coordinate `json:"geometry"`
	Segments        []TrafficSegment `json:"traffic_segments"`
	Instructions    []Instruction    `json:"instructions"`
}

// DefaultEndpoints returns the ordered directions endpoints: the configured
// base URL first, then the documented mirrors.
func DefaultEndpoints(baseURL string) []string {
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org/v2"
	}
	return []string{
		baseURL + "/directions/driving-car",
		"https://api.openroute.com/api/v2/directions/driving-car",
		"https://api.openroute.com/v2/directions/driving-car",
	}
}

// Resolver calls the directions API and caches candidate lists.
type Resolver struct {
	store     cache.Store
	client    *http.Client
	endpoints []string
	apiKey    string
	audit     lookuplog.Writer
}

// Options configures a Resolver.
type Options struct {
	Endpoints []string // tried in order; DefaultEndpoints("") when empty
	APIKey    string
	Timeout   time.Duration // per-endpoint request timeout, default 30s
	Audit     lookuplog.Writer
}

func NewResolver(store cache.Store, opts Options) *Resolver {
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultEndpoints("")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Audit == nil {
		opts.Audit = lookuplog.NoopWriter{}
	}
	return &Resolver{
		store:     store,
		client:    &http.Client{Timeout: opts.Timeout},
		endpoints: opts.Endpoints,
		apiKey:    opts.APIKey,
		audit:     opts.Audit,
	}
}

// directionsRequest is the OpenRouteService request body. Coordinates are
// (longitude, latitude), the reverse of geo.Coordinate field order.
type directionsRequest struct {
	Coordinates [][2]float64       `json:"coordinates"`
	Language    string             `json:"language"`
	Units       string             `json:"units"`
	Preference  string             `json:"preference"`
	Options     *directionsOptions `json:"options,omitempty"`
}

type directionsOptions struct {
	AvoidBorders  string `json:"avoid_borders,omitempty"`
	AvoidHighways bool   `json:"avoid_highways,omitempty"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry json.RawMessage `json:"geometry"`
		Segments []struct {
			Start    []float64 `json:"start"`
			End      []float64 `json:"end"`
			Distance float64   `json:"distance"`
			Duration float64   `json:"duration"`
			Steps    []struct {
				Type        int     `json:"type"`
				Instruction string  `json:"instruction"`
				Distance    float64 `json:"distance"`
				Duration    float64 `json:"duration"`
			} `json:"steps"`
		} `json:"segments"`
	} `json:"routes"`
}

// ResolveRoutes returns the route candidates between origin and destination
// for the given preference ("fastest", "shortest" or PreferenceWestBank).
// Endpoints are tried in order; an endpoint failure is logged and the next
// one attempted. The candidate list is cached under the coordinate pair.
func (r *Resolver) ResolveRoutes(ctx context.Context, origin, dest geo.Coordinate, preference string) ([]Candidate, error) {
	if preference == "" {
		preference = "fastest"
	}
	key := cache.Key(fmt.Sprintf("%.6f_%.6f_%.6f_%.6f_%s",
		origin.Latitude, origin.Longitude, dest.Latitude, dest.Longitude, preference))
	start := time.Now()
	defer func() {
		metrics.LookupDuration.WithLabelValues("routing").Observe(time.Since(start).Seconds())
	}()

	if data, ok := r.store.Get(cache.CategoryRoutes, key); ok {
		var cached []Candidate
		if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
			metrics.CacheHits.WithLabelValues(cache.CategoryRoutes).Inc()
			metrics.LookupsTotal.WithLabelValues("routing", "success").Inc()
			r.writeAudit(ctx, key, "", true, "", start)
			return cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryRoutes).Inc()

	resp, endpoint, err := r.fetch(ctx, origin, dest, preference)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("routing", "error").Inc()
		r.writeAudit(ctx, key, endpoint, false, err.Error(), start)
		return nil, err
	}
	if len(resp.Routes) == 0 {
		metrics.LookupsTotal.WithLabelValues("routing", "not_found").Inc()
		r.writeAudit(ctx, key, endpoint, false, "empty response", start)
		return nil, fmt.Errorf("%w: routing service returned no routes", ErrNoRoute)
	}

	candidates := make([]Candidate, 0, len(resp.Routes))
	for _, route := range resp.Routes {
		c := Candidate{
			DistanceKm:      route.Summary.Distance,
			DurationMinutes: route.Summary.Duration / 60,
			Geometry:        decodeGeometry(ctx, route.Geometry),
		}
		for _, seg := range route.Segments {
			for _, step := range seg.Steps {
				c.Instructions = append(c.Instructions, Instruction{
					Type:     step.Type,
					Text:     step.Instruction,
					Distance: step.Distance,
					Duration: step.Duration,
				})
			}
			ts := TrafficSegment{
				Distance: seg.Distance,
				Duration: seg.Duration,
				Level:    TrafficLevel(seg.Distance, seg.Duration),
			}
			if len(seg.Start) == 2 {
				ts.Start = geo.Coordinate{Latitude: seg.Start[1], Longitude: seg.Start[0]}
			}
			if len(seg.End) == 2 {
				ts.End = geo.Coordinate{Latitude: seg.End[1], Longitude: seg.End[0]}
			}
			c.Segments = append(c.Segments, ts)
		}
		candidates = append(candidates, c)
	}

	if preference == PreferenceWestBank {
		kept := candidates[:0]
		for _, c := range candidates {
			if intersectsRegion(c) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			metrics.LookupsTotal.WithLabelValues("routing", "not_found").Inc()
			r.writeAudit(ctx, key, endpoint, false, "all candidates outside region", start)
			return nil, fmt.Errorf("%w: every candidate leaves the requested region", ErrNoRoute)
		}
		candidates = kept
	}

	r.store.Put(cache.CategoryRoutes, key, candidates)
	metrics.LookupsTotal.WithLabelValues("routing", "success").Inc()
	r.writeAudit(ctx, key, endpoint, false, "", start)
	return candidates, nil
}

// fetch posts the directions request to each endpoint in order and returns
// the first successful response along with the endpoint that served it.
func (r *Resolver) fetch(ctx context.Context, origin, dest geo.Coordinate, preference string) (*directionsResponse, string, error) {
	body := directionsRequest{
		Coordinates: [][2]float64{
			{origin.Longitude, origin.Latitude},
			{dest.Longitude, dest.Latitude},
		},
		Language:   "en",
		Units:      "km",
		Preference: preference,
	}
	if preference == PreferenceWestBank {
		body.Options = &directionsOptions{AvoidBorders: "all", AvoidHighways: true}
		// The directions API has no west_bank profile; the region filter
		// does the narrowing after the fact.
		body.Preference = "fastest"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encoding directions request: %w", err)
	}

	log := logging.FromContext(ctx)
	var lastErr error
	for _, endpoint := range r.endpoints {
		resp, err := r.post(ctx, endpoint, payload)
		if err != nil {
			metrics.RoutingEndpointFailures.WithLabelValues(endpoint).Inc()
			log.Warn("routing endpoint failed, trying next", "endpoint", endpoint, "error", err)
			lastErr = err
			continue
		}
		return resp, endpoint, nil
	}
	return nil, "", fmt.Errorf("all routing endpoints failed: %w", lastErr)
}

func (r *Resolver) post(ctx context.Context, endpoint string, payload []byte) (*directionsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(raw))
	}

	var parsed directionsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding directions response: %w", err)
	}
	return &parsed, nil
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}

// decodeGeometry accepts either GeoJSON-style coordinate arrays or an
// encoded polyline string, whichever the endpoint returned.
func decodeGeometry(ctx context.Context, raw json.RawMessage) []geo.Coordinate {
	if len(raw) == 0 {
		return nil
	}
	var geojson struct {
		Coordinates [][]float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &geojson); err == nil && len(geojson.Coordinates) > 0 {
		points := make([]geo.Coordinate, 0, len(geojson.Coordinates))
		for _, pair := range geojson.Coordinates {
			if len(pair) >= 2 {
				points = append(points, geo.Coordinate{Latitude: pair[1], Longitude: pair[0]})
			}
		}
		return points
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		return decodePolyline(encoded)
	}
	logging.FromContext(ctx).Debug("unrecognized route geometry, dropping", "geometry", firstLine(raw))
	return nil
}

// intersectsRegion reports whether any point of the candidate's geometry or
// segment endpoints falls inside the region rectangle.
func intersectsRegion(c Candidate) bool {
	for _, p := range c.Geometry {
		if inRegion(p) {
			return true
		}
	}
	for _, s := range c.Segments {
		if inRegion(s.Start) || inRegion(s.End) {
			return true
		}
	}
	return false
}

func inRegion(p geo.Coordinate) bool {
	return p.Latitude >= regionLatMin && p.Latitude <= regionLatMax &&
		p.Longitude >= regionLonMin && p.Longitude <= regionLonMax
}

func (r *Resolver) writeAudit(ctx context.Context, key, endpoint string, cacheHit bool, errMsg string, start time.Time) {
	entry := lookuplog.Entry{
		TraceID:    logging.TraceIDFromContext(ctx),
		Component:  "routing",
		Key:        key,
		Provider:   endpoint,
		CacheHit:   cacheHit,
		ErrorMsg:   errMsg,
		DurationMS: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.audit.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("lookup audit write failed", "error", err)
	}
}
