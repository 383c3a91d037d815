package fuelrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/routing"
	"github.com/waypoint-labs/fuel-router/vehicles"
)

// promptKnowledge answers by prompt content so one stub can serve vehicle,
// country and fuel price lookups in a single flow.
type promptKnowledge struct{}

func (promptKnowledge) Name() string { return "stub" }

func (promptKnowledge) Query(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "specifications"):
		return `{
			"brand": "Toyota", "model": "Corolla", "year": 2020,
			"specifications": {"fuel_consumption": {"city": 7.1, "highway": 5.2, "combined": 6.0}}
		}`, nil
	case strings.Contains(prompt, "What country"):
		return `{
			"country_name": "Israel",
			"currency": {"name": "Israeli new shekel", "code": "ILS", "symbol": "₪"},
			"fuel_prices": {"95": 7.83, "91": 7.65, "diesel": 7.8}
		}`, nil
	default:
		return `{"95": 7.83, "91": 7.65, "diesel": 7.8}`, nil
	}
}

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()

	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		place := req.URL.Query().Get("q")
		lat, lon := "32.0853", "34.7818"
		if strings.Contains(strings.ToLower(place), "jerusalem") {
			lat, lon = "31.7683", "35.2137"
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"lat": lat, "lon": lon,
			"display_name": place,
			"address":      map[string]any{"country": "Israel", "country_code": "il"},
		}})
	}))
	t.Cleanup(geocoder.Close)

	directions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"routes": []map[string]any{{
			"summary":  map[string]any{"distance": 67.5, "duration": 3900},
			"geometry": map[string]any{"coordinates": [][]float64{{34.7818, 32.0853}, {35.2137, 31.7683}}},
			"segments": []map[string]any{{
				"start": []float64{34.7818, 32.0853}, "end": []float64{35.2137, 31.7683},
				"distance": 67.5, "duration": 3900,
			}},
		}}})
	}))
	t.Cleanup(directions.Close)

	store := cache.NewDisk(t.TempDir(), nil)
	return &Estimator{
		Geo: geo.NewResolver(store, promptKnowledge{}, geo.Options{
			GeocoderURL: geocoder.URL,
		}),
		Vehicles: vehicles.NewResolver(store, promptKnowledge{}, nil),
		Routes: routing.NewResolver(store, routing.Options{
			Endpoints: []string{directions.URL},
		}),
		DefaultFuelPrice: 7.5,
	}
}

func TestEstimate(t *testing.T) {
	e := newTestEstimator(t)

	got, err := e.Estimate(context.Background(), EstimateRequest{
		Origin:      "Tel Aviv",
		Destination: "Jerusalem",
		Brand:       "Toyota",
		Model:       "Corolla",
		Year:        2020,
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	if got.Origin.Coordinate.Latitude != 32.0853 {
		t.Errorf("origin = %+v", got.Origin.Coordinate)
	}
	if len(got.Routes) != 1 || got.Routes[0].DistanceKm != 67.5 {
		t.Fatalf("routes = %+v", got.Routes)
	}
	if got.Vehicle.Consumption.Combined != 6.0 {
		t.Errorf("consumption = %+v", got.Vehicle.Consumption)
	}

	// 6.0 L/100km over 67.5 km at 7.83 ILS/L.
	if got.Cost.FuelNeededLiters != 4.05 {
		t.Errorf("FuelNeededLiters = %v, want 4.05", got.Cost.FuelNeededLiters)
	}
	if got.Cost.TotalCost != 31.71 {
		t.Errorf("TotalCost = %v, want 31.71", got.Cost.TotalCost)
	}
	if got.LocalCurrency != "ILS" || got.DisplayCurrency != "ILS" {
		t.Errorf("currencies = %q/%q", got.LocalCurrency, got.DisplayCurrency)
	}
	if got.DisplayCost != got.Cost.TotalCost {
		t.Errorf("DisplayCost = %v, want same-currency passthrough", got.DisplayCost)
	}
}

func TestEstimate_CurrencyConversion(t *testing.T) {
	e := newTestEstimator(t)

	got, err := e.Estimate(context.Background(), EstimateRequest{
		Origin:      "Tel Aviv",
		Destination: "Jerusalem",
		Brand:       "Toyota",
		Model:       "Corolla",
		Year:        2020,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.DisplayCurrency != "USD" {
		t.Errorf("DisplayCurrency = %q", got.DisplayCurrency)
	}
	// Static table: ILS rate 1.0, USD rate 0.27, both relative to the
	// reference unit.
	want := got.Cost.TotalCost * 1.0 / 0.27
	if diff := got.DisplayCost - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("DisplayCost = %v, want %v", got.DisplayCost, want)
	}
}

func TestEstimate_FuelGradeSelection(t *testing.T) {
	e := newTestEstimator(t)

	got, err := e.Estimate(context.Background(), EstimateRequest{
		Origin:      "Tel Aviv",
		Destination: "Jerusalem",
		Brand:       "Toyota",
		Model:       "Corolla",
		Year:        2020,
		FuelType:    "diesel",
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got.Cost.FuelPrice != 7.8 {
		t.Errorf("FuelPrice = %v, want diesel price 7.8", got.Cost.FuelPrice)
	}
}

func TestEstimate_UnresolvablePlaceFails(t *testing.T) {
	e := newTestEstimator(t)
	_, err := e.Estimate(context.Background(), EstimateRequest{
		Origin:      "",
		Destination: "Jerusalem",
		Brand:       "Toyota",
		Model:       "Corolla",
		Year:        2020,
	})
	if err == nil {
		t.Fatal("expected error for empty origin")
	}
}
