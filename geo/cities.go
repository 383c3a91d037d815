package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
)

// CityMatch is one autocomplete candidate for a city search, shaped for
// direct consumption by form widgets.
type CityMatch struct {
	ID        string  `json:"id"` // "lat,lon"
	Text      string  `json:"text"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CityInfo is the reverse-geocoded description of a coordinate.
type CityInfo struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	State       string  `json:"state"`
	County      string  `json:"county"`
	City        string  `json:"city"`
}

// SearchCities returns up to ten city candidates for query, restricted to
// the Palestine/Israel coverage area, cached hourly.
func (r *Resolver) SearchCities(ctx context.Context, query string) ([]CityMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	key := cache.Key("search", query)
	if data, ok := r.store.Get(cache.CategoryCities, key); ok {
		var cached []CityMatch
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.CacheHits.WithLabelValues(cache.CategoryCities).Inc()
			return cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryCities).Inc()

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "10")
	params.Set("countrycodes", "ps,il")
	params.Set("featuretype", "city,town,village")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.geocoderURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create city search request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("city search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("city search status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode city search response: %w", err)
	}

	matches := make([]CityMatch, 0, len(results))
	for _, res := range results {
		lat, latErr := strconv.ParseFloat(res.Lat, 64)
		lon, lonErr := strconv.ParseFloat(res.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		matches = append(matches, CityMatch{
			ID:        res.Lat + "," + res.Lon,
			Text:      res.DisplayName,
			Latitude:  lat,
			Longitude: lon,
		})
	}

	r.store.Put(cache.CategoryCities, key, matches)
	return matches, nil
}

// ResolveCityInfo reverse-geocodes a coordinate into a city description,
// cached hourly.
func (r *Resolver) ResolveCityInfo(ctx context.Context, lat, lon float64) (*CityInfo, error) {
	key := cache.Key(fmt.Sprintf("city_%.4f_%.4f", lat, lon))
	if data, ok := r.store.Get(cache.CategoryCities, key); ok {
		var cached CityInfo
		if err := json.Unmarshal(data, &cached); err == nil && cached.Name != "" {
			metrics.CacheHits.WithLabelValues(cache.CategoryCities).Inc()
			return &cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryCities).Inc()

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.geocoderURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create reverse geocode request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}

	var result nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode reverse geocode response: %w", err)
	}

	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.Village
	}

	info := &CityInfo{
		Name:        result.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Country:     result.Address.Country,
		CountryCode: result.Address.CountryCode,
		State:       result.Address.State,
		County:      result.Address.County,
		City:        city,
	}
	r.store.Put(cache.CategoryCities, key, info)
	return info, nil
}
