package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
	"github.com/waypoint-labs/fuel-router/providers"
)

// countrySchema gates knowledge-provider country payloads before caching.
var countrySchema = providers.MustCompileSchema("country-profile.json", `{
	"type": "object",
	"required": ["country_name", "currency"],
	"properties": {
		"country_name": {"type": "string"},
		"currency": {
			"type": "object",
			"required": ["code"],
			"properties": {
				"name": {"type": "string"},
				"code": {"type": "string"},
				"symbol": {"type": "string"}
			}
		}
	}
}`)

// ResolveCountry returns the country profile for a coordinate. Results are
// cached under a 2-decimal rounded coordinate key so nearby lookups within
// the same country usually share an entry. When the provider cannot supply
// fuel prices, a secondary per-country price lookup runs before giving up
// and returning zeroed prices.
func (r *Resolver) ResolveCountry(ctx context.Context, lat, lon float64) (*CountryProfile, error) {
	key := cache.Key(fmt.Sprintf("%.2f_%.2f", lat, lon))
	start := time.Now()
	defer func() {
		metrics.LookupDuration.WithLabelValues("country").Observe(time.Since(start).Seconds())
	}()

	if data, ok := r.store.Get(cache.CategoryCountryInfo, key); ok {
		var cached CountryProfile
		if err := json.Unmarshal(data, &cached); err == nil && cached.CountryName != "" {
			metrics.CacheHits.WithLabelValues(cache.CategoryCountryInfo).Inc()
			metrics.LookupsTotal.WithLabelValues("country", "success").Inc()
			return &cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryCountryInfo).Inc()

	text, err := r.knowledge.Query(ctx, countryPrompt(lat, lon))
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("country", "error").Inc()
		return nil, fmt.Errorf("country lookup: %w", err)
	}
	raw, err := providers.ExtractObject(text)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("country", "error").Inc()
		return nil, fmt.Errorf("country lookup: %w", err)
	}
	if err := providers.Validate(countrySchema, raw); err != nil {
		metrics.LookupsTotal.WithLabelValues("country", "error").Inc()
		return nil, fmt.Errorf("country lookup: %w", err)
	}

	var profile CountryProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		metrics.LookupsTotal.WithLabelValues("country", "error").Inc()
		return nil, fmt.Errorf("country lookup: %w: %v", providers.ErrMalformedResponse, err)
	}

	if profile.FuelPrices == (FuelPrices{}) {
		if prices, err := r.FuelPricesForCountry(ctx, profile.CountryName); err == nil {
			profile.FuelPrices = prices
		} else {
			logging.FromContext(ctx).Warn("fuel price lookup failed, keeping zeroed prices",
				"country", profile.CountryName, "error", err)
		}
	}

	r.store.Put(cache.CategoryCountryInfo, key, &profile)
	metrics.LookupsTotal.WithLabelValues("country", "success").Inc()
	return &profile, nil
}

// defaultPrices lists the documented fallback prices for countries whose
// official price feeds the original deployment tracked manually.
var defaultPrices = map[string]FuelPrices{
	"palestine": {Octane95: 7.7, Octane91: 7.2, Diesel: 7.2},
	"west bank": {Octane95: 7.7, Octane91: 7.2, Diesel: 7.2},
	"فلسطين":    {Octane95: 7.7, Octane91: 7.2, Diesel: 7.2},
	"israel":    {Octane95: 7.83, Octane91: 7.65, Diesel: 7.8},
	"إسرائيل":   {Octane95: 7.83, Octane91: 7.65, Diesel: 7.8},
}

// FuelPricesForCountry returns per-liter fuel prices for the named country,
// cached hourly. Lookup order: cache, knowledge provider, documented static
// defaults, zeroed prices.
func (r *Resolver) FuelPricesForCountry(ctx context.Context, country string) (FuelPrices, error) {
	if country == "" {
		return FuelPrices{}, fmt.Errorf("%w: country name is required", ErrInvalidInput)
	}

	key := cache.Key(country)
	if data, ok := r.store.Get(cache.CategoryFuelPrices, key); ok {
		var cached FuelPrices
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.CacheHits.WithLabelValues(cache.CategoryFuelPrices).Inc()
			return cached, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryFuelPrices).Inc()

	prices, err := r.fetchFuelPrices(ctx, country)
	if err != nil {
		if fallback, ok := defaultPrices[strings.ToLower(strings.TrimSpace(country))]; ok {
			logging.FromContext(ctx).Warn("using default fuel prices", "country", country, "error", err)
			return fallback, nil
		}
		return FuelPrices{}, err
	}

	r.store.Put(cache.CategoryFuelPrices, key, &prices)
	return prices, nil
}

func (r *Resolver) fetchFuelPrices(ctx context.Context, country string) (FuelPrices, error) {
	text, err := r.knowledge.Query(ctx, fuelPricePrompt(country))
	if err != nil {
		return FuelPrices{}, fmt.Errorf("fuel price lookup: %w", err)
	}
	raw, err := providers.ExtractObject(text)
	if err != nil {
		return FuelPrices{}, fmt.Errorf("fuel price lookup: %w", err)
	}
	var prices FuelPrices
	if err := json.Unmarshal(raw, &prices); err != nil {
		return FuelPrices{}, fmt.Errorf("fuel price lookup: %w: %v", providers.ErrMalformedResponse, err)
	}
	return prices, nil
}

func countryPrompt(lat, lon float64) string {
	return fmt.Sprintf(`What country is the coordinate (latitude %.4f, longitude %.4f) in?

Return ONLY a JSON object with this exact structure, no additional text:
{
    "country_name": string,
    "currency": {"name": string, "code": string, "symbol": string},
    "fuel_prices": {"95": float, "91": float, "diesel": float}
}

fuel_prices are current per-liter prices in the local currency; use 0 for
grades you cannot determine.`, lat, lon)
}

func fuelPricePrompt(country string) string {
	return fmt.Sprintf(`What are the current per-liter fuel prices in %s, in the local currency?
Return ONLY a JSON object: {"95": float, "91": float, "diesel": float}, no additional text.`, country)
}
