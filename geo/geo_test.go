package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/providers"
)

type stubKnowledge struct {
	text  string
	err   error
	calls int
}

func (s *stubKnowledge) Name() string { return "stub" }

func (s *stubKnowledge) Query(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

const countryResponse = `{
	"country_name": "Israel",
	"currency": {"name": "Israeli new shekel", "code": "ILS", "symbol": "₪"},
	"fuel_prices": {"95": 7.83, "91": 7.65, "diesel": 7.8}
}`

func nominatimStub(t *testing.T, hits *int32, results []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(hits, 1)
		_ = json.NewEncoder(w).Encode(results)
	}))
}

func telAvivResult() map[string]any {
	return map[string]any{
		"lat": "32.0853", "lon": "34.7818",
		"display_name": "Tel Aviv, Israel",
		"address":      map[string]any{"country": "Israel", "country_code": "il"},
	}
}

func newTestResolver(t *testing.T, geocoderURL string, k providers.Provider) *Resolver {
	t.Helper()
	return NewResolver(cache.NewDisk(t.TempDir(), nil), k, Options{
		GeocoderURL: geocoderURL,
		Timeout:     2 * time.Second,
		RetryDelay:  10 * time.Millisecond,
	})
}

func TestResolveCoordinates(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, []map[string]any{telAvivResult()})
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})

	res, err := r.ResolveCoordinates(context.Background(), "Tel Aviv")
	if err != nil {
		t.Fatalf("ResolveCoordinates: %v", err)
	}
	if res.Coordinate.Latitude != 32.0853 || res.Coordinate.Longitude != 34.7818 {
		t.Errorf("coordinate = %+v", res.Coordinate)
	}
	if res.Country == nil || res.Country.Currency.Code != "ILS" {
		t.Errorf("country = %+v", res.Country)
	}
	if res.Country.FuelPrices.Octane95 != 7.83 {
		t.Errorf("prices = %+v", res.Country.FuelPrices)
	}
}

func TestResolveCoordinates_SecondCallServedFromCache(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, []map[string]any{telAvivResult()})
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})

	if _, err := r.ResolveCoordinates(context.Background(), "Tel Aviv"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveCoordinates(context.Background(), "Tel  Aviv"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("geocoder hit %d times, want 1 (second call should be cached)", got)
	}
}

func TestResolveCoordinates_OverrideSkipsGeocoder(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, nil)
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})

	res, err := r.ResolveCoordinates(context.Background(), "Ramallah")
	if err != nil {
		t.Fatalf("ResolveCoordinates: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Error("override lookup must not call the geocoder")
	}
	if res.Country == nil || res.Country.CountryName != "Palestine" {
		t.Errorf("country = %+v", res.Country)
	}
	if res.Coordinate.Latitude != 31.9038 {
		t.Errorf("latitude = %v", res.Coordinate.Latitude)
	}
}

func TestResolveCoordinates_NotFound(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, []map[string]any{})
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})
	_, err := r.ResolveCoordinates(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolveCoordinates_RetriesOnceOnTimeout(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{telAvivResult()})
	}))
	defer srv.Close()

	r := NewResolver(cache.NewDisk(t.TempDir(), nil), &stubKnowledge{text: countryResponse}, Options{
		GeocoderURL: srv.URL,
		Timeout:     100 * time.Millisecond,
		RetryDelay:  10 * time.Millisecond,
	})

	res, err := r.ResolveCoordinates(context.Background(), "Tel Aviv")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if res.DisplayAddress != "Tel Aviv, Israel" {
		t.Errorf("address = %q", res.DisplayAddress)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("geocoder hit %d times, want 2", got)
	}
}

func TestResolveCoordinates_NoRetryOnServiceError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})
	if _, err := r.ResolveCoordinates(context.Background(), "Tel Aviv"); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("geocoder hit %d times, want 1 (no retry on service errors)", got)
	}
}

func TestResolveCoordinates_CountryFailureDegradesToFallback(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, []map[string]any{telAvivResult()})
	defer srv.Close()

	k := &stubKnowledge{err: fmt.Errorf("%w: down", providers.ErrUnavailable)}
	r := newTestResolver(t, srv.URL, k)

	res, err := r.ResolveCoordinates(context.Background(), "Tel Aviv")
	if err != nil {
		t.Fatalf("place resolution must survive country failure: %v", err)
	}
	if res.Country == nil {
		t.Fatal("expected fallback country profile")
	}
	if res.Country.Currency.Code != "ILS" {
		t.Errorf("fallback currency = %q, want ILS", res.Country.Currency.Code)
	}
	if res.Country.FuelPrices != (FuelPrices{}) {
		t.Errorf("fallback prices should be zeroed, got %+v", res.Country.FuelPrices)
	}
}

func TestResolveCountry_CachedByRoundedCoordinate(t *testing.T) {
	k := &stubKnowledge{text: countryResponse}
	r := newTestResolver(t, "http://unused.invalid", k)

	if _, err := r.ResolveCountry(context.Background(), 32.0853, 34.7818); err != nil {
		t.Fatal(err)
	}
	// Nearby coordinate rounding to the same 2-decimal key.
	if _, err := r.ResolveCountry(context.Background(), 32.0851, 34.7823); err != nil {
		t.Fatal(err)
	}
	if k.calls != 1 {
		t.Errorf("knowledge provider called %d times, want 1", k.calls)
	}
}

func TestResolveCountry_SecondaryPriceLookup(t *testing.T) {
	// First answer has no prices; the secondary lookup supplies them.
	k := &pricesThenCountry{}
	r := newTestResolver(t, "http://unused.invalid", k)

	profile, err := r.ResolveCountry(context.Background(), 31.77, 35.21)
	if err != nil {
		t.Fatalf("ResolveCountry: %v", err)
	}
	if profile.FuelPrices.Octane95 != 7.83 {
		t.Errorf("prices = %+v, want secondary lookup result", profile.FuelPrices)
	}
}

// pricesThenCountry returns a priceless country profile first, then a
// price-only object for the secondary lookup.
type pricesThenCountry struct {
	calls int
}

func (s *pricesThenCountry) Name() string { return "stub" }

func (s *pricesThenCountry) Query(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.calls == 1 {
		return `{"country_name": "Israel", "currency": {"name": "Israeli new shekel", "code": "ILS", "symbol": "₪"}}`, nil
	}
	return `{"95": 7.83, "91": 7.65, "diesel": 7.8}`, nil
}

func TestFuelPricesForCountry_DefaultFallback(t *testing.T) {
	k := &stubKnowledge{err: fmt.Errorf("%w: down", providers.ErrUnavailable)}
	r := newTestResolver(t, "http://unused.invalid", k)

	prices, err := r.FuelPricesForCountry(context.Background(), "Palestine")
	if err != nil {
		t.Fatalf("expected documented defaults, got %v", err)
	}
	if prices.Octane95 != 7.7 || prices.Diesel != 7.2 {
		t.Errorf("prices = %+v, want Palestine defaults", prices)
	}
}

func TestFuelPricesForCountry_UnknownCountryFails(t *testing.T) {
	k := &stubKnowledge{err: fmt.Errorf("%w: down", providers.ErrUnavailable)}
	r := newTestResolver(t, "http://unused.invalid", k)

	if _, err := r.FuelPricesForCountry(context.Background(), "Atlantis"); err == nil {
		t.Error("expected error for unknown country with no defaults")
	}
}

func TestSearchCities(t *testing.T) {
	var hits int32
	srv := nominatimStub(t, &hits, []map[string]any{
		telAvivResult(),
		{"lat": "31.7683", "lon": "35.2137", "display_name": "Jerusalem", "address": map[string]any{}},
	})
	defer srv.Close()

	r := newTestResolver(t, srv.URL, &stubKnowledge{text: countryResponse})

	matches, err := r.SearchCities(context.Background(), "je")
	if err != nil {
		t.Fatalf("SearchCities: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].ID != "32.0853,34.7818" {
		t.Errorf("ID = %q", matches[0].ID)
	}

	// Cached on repeat.
	if _, err := r.SearchCities(context.Background(), "je"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("geocoder hit %d times, want 1", got)
	}
}

func TestResolveCoordinates_InvalidInput(t *testing.T) {
	r := newTestResolver(t, "http://unused.invalid", &stubKnowledge{})
	if _, err := r.ResolveCoordinates(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
