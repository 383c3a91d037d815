// Package geo resolves place names into coordinates and country metadata.
// Geocoding goes through Nominatim; country, currency, and fuel-price data
// come from a knowledge provider. A static override table covers a handful of
// West Bank localities whose general-purpose geocoder coverage is unreliable.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/lookuplog"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
	"github.com/waypoint-labs/fuel-router/internal/ratelimit"
	"github.com/waypoint-labs/fuel-router/providers"
)

// Sentinel errors for the geo boundary.
var (
	// ErrNotFound means the place could not be resolved after all providers
	// and fallbacks were exhausted.
	ErrNotFound = errors.New("place not found")
	// ErrInvalidInput means the caller-supplied place name or coordinates
	// failed basic validation.
	ErrInvalidInput = errors.New("invalid geo input")
)

// Coordinate is a WGS84 latitude/longitude pair. No range validation is
// performed beyond numeric parsing; callers validate before use.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Currency describes a country's currency.
type Currency struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

// FuelPrices holds per-liter prices by octane grade in the local currency.
type FuelPrices struct {
	Octane95 float64 `json:"95"`
	Octane91 float64 `json:"91"`
	Diesel   float64 `json:"diesel"`
}

// CountryProfile carries the pricing metadata attached to a resolved place.
type CountryProfile struct {
	CountryName string     `json:"country_name"`
	Currency    Currency   `json:"currency"`
	FuelPrices  FuelPrices `json:"fuel_prices"`
}

// PlaceResolution is the result of geocoding one place name. Country is nil
// when pricing metadata could not be attached; the place remains usable for
// routing.
type PlaceResolution struct {
	Coordinate     Coordinate      `json:"coordinate"`
	DisplayAddress string          `json:"address"`
	Country        *CountryProfile `json:"country,omitempty"`
}

const (
	defaultGeocoderURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent   = "fuel-router/1.0"
	defaultRetryDelay  = time.Second
)

// Resolver answers place lookups, cache first, then Nominatim, then the
// knowledge provider for country metadata.
type Resolver struct {
	store       cache.Store
	httpClient  *http.Client
	geocoderURL string
	userAgent   string
	knowledge   providers.Provider
	limiter     *ratelimit.Limiter
	audit       lookuplog.Writer
	retryDelay  time.Duration
}

// Options configures a Resolver beyond its required collaborators.
type Options struct {
	// GeocoderURL overrides the Nominatim base URL.
	GeocoderURL string
	// UserAgent is sent on every geocoder request, per Nominatim policy.
	UserAgent string
	// Timeout bounds each geocoder round-trip. Default 10s.
	Timeout time.Duration
	// RetryDelay is the pause before the single timeout retry. Default 1s.
	RetryDelay time.Duration
	// Audit receives lookup log entries; nil disables.
	Audit lookuplog.Writer
}

// NewResolver creates a Resolver. knowledge is typically a providers.Chain.
func NewResolver(store cache.Store, knowledge providers.Provider, opts Options) *Resolver {
	if opts.GeocoderURL == "" {
		opts.GeocoderURL = defaultGeocoderURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Audit == nil {
		opts.Audit = lookuplog.NoopWriter{}
	}
	return &Resolver{
		store:       store,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		geocoderURL: opts.GeocoderURL,
		userAgent:   opts.UserAgent,
		knowledge:   knowledge,
		// Nominatim usage policy: at most one request per second.
		limiter:    ratelimit.New(1, 1),
		audit:      opts.Audit,
		retryDelay: opts.RetryDelay,
	}
}

// nominatimResult is one entry of a Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		County      string `json:"county"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

// ResolveCoordinates geocodes place into a PlaceResolution. The static
// override table is consulted before the external geocoder; a geocoder
// timeout is retried exactly once after a short delay. Country metadata
// failure degrades to a fallback profile rather than failing the place.
func (r *Resolver) ResolveCoordinates(ctx context.Context, place string) (*PlaceResolution, error) {
	if place == "" {
		return nil, fmt.Errorf("%w: place name is required", ErrInvalidInput)
	}

	key := cache.Key(place)
	start := time.Now()
	defer func() {
		metrics.LookupDuration.WithLabelValues("geo").Observe(time.Since(start).Seconds())
	}()

	if data, ok := r.store.Get(cache.CategoryGeocode, key); ok {
		var cached PlaceResolution
		if err := json.Unmarshal(data, &cached); err == nil && cached.DisplayAddress != "" {
			metrics.CacheHits.WithLabelValues(cache.CategoryGeocode).Inc()
			metrics.LookupsTotal.WithLabelValues("geo", "success").Inc()
			r.writeAudit(ctx, key, "", true, "", start)
			return &cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryGeocode).Inc()

	if override, ok := lookupOverride(place); ok {
		res := override.resolution()
		r.store.Put(cache.CategoryGeocode, key, res)
		metrics.LookupsTotal.WithLabelValues("geo", "success").Inc()
		r.writeAudit(ctx, key, "override", false, "", start)
		logging.FromContext(ctx).Info("place resolved from override table", "place", place)
		return res, nil
	}

	results, err := r.geocode(ctx, place)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("geo", "error").Inc()
		r.writeAudit(ctx, key, "nominatim", false, err.Error(), start)
		return nil, err
	}
	if len(results) == 0 {
		metrics.LookupsTotal.WithLabelValues("geo", "not_found").Inc()
		r.writeAudit(ctx, key, "nominatim", false, "no match", start)
		return nil, fmt.Errorf("%w: %q", ErrNotFound, place)
	}

	best := results[0]
	lat, latErr := strconv.ParseFloat(best.Lat, 64)
	lon, lonErr := strconv.ParseFloat(best.Lon, 64)
	if latErr != nil || lonErr != nil {
		metrics.LookupsTotal.WithLabelValues("geo", "error").Inc()
		return nil, fmt.Errorf("%w: unparseable coordinates for %q", ErrNotFound, place)
	}

	res := &PlaceResolution{
		Coordinate:     Coordinate{Latitude: lat, Longitude: lon},
		DisplayAddress: best.DisplayName,
	}

	if profile, err := r.ResolveCountry(ctx, lat, lon); err == nil {
		res.Country = profile
	} else {
		logging.FromContext(ctx).Warn("country resolution failed, using fallback profile",
			"place", place, "error", err)
		res.Country = fallbackProfile()
	}

	r.store.Put(cache.CategoryGeocode, key, res)
	metrics.LookupsTotal.WithLabelValues("geo", "success").Inc()
	r.writeAudit(ctx, key, "nominatim", false, "", start)
	return res, nil
}

// geocode performs the Nominatim search with the single-retry-on-timeout
// policy. Non-timeout errors fail immediately.
func (r *Resolver) geocode(ctx context.Context, place string) ([]nominatimResult, error) {
	results, err := r.searchOnce(ctx, place)
	if err == nil {
		return results, nil
	}
	if !isTimeout(err) {
		return nil, err
	}

	logging.FromContext(ctx).Warn("geocoder timeout, retrying once", "place", place)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.retryDelay):
	}
	return r.searchOnce(ctx, place)
}

func (r *Resolver) searchOnce(ctx context.Context, place string) ([]nominatimResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	params.Set("countrycodes", "ps,il")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.geocoderURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoder request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocoder response: %w", err)
	}
	return results, nil
}

// isTimeout reports whether err represents a transport timeout eligible for
// the single retry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (r *Resolver) writeAudit(ctx context.Context, key, provider string, cacheHit bool, errMsg string, start time.Time) {
	entry := lookuplog.Entry{
		TraceID:    logging.TraceIDFromContext(ctx),
		Component:  "geo",
		Key:        key,
		Provider:   provider,
		CacheHit:   cacheHit,
		ErrorMsg:   errMsg,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := r.audit.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("lookup log write failed", "error", err)
	}
}
