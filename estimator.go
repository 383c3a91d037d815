// Package fuelrouter estimates trip fuel costs for the West Bank and
// surrounding region. It wires place resolution, vehicle spec lookup,
// route resolution and cost computation behind a single Estimator.
package fuelrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/waypoint-labs/fuel-router/costing"
	"github.com/waypoint-labs/fuel-router/geo"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/routing"
	"github.com/waypoint-labs/fuel-router/vehicles"
)

// DefaultCurrency is the display currency when neither the request nor the
// config names one.
const DefaultCurrency = "ILS"

// Estimator runs the full estimation flow: geocode both endpoints, resolve
// routes between them, resolve the vehicle's consumption, price the fuel in
// the origin country's currency and convert for display.
type Estimator struct {
	Geo      *geo.Resolver
	Vehicles *vehicles.Resolver
	Routes   *routing.Resolver

	// DefaultFuelPrice is the per-liter fallback when the origin country's
	// profile has no price for the requested grade.
	DefaultFuelPrice float64
	// DefaultCurrency overrides the package default display currency.
	DefaultCurrency string
}

// EstimateRequest is one trip estimation request.
type EstimateRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  int    `json:"year"`

	// FuelType selects the price grade: "95" (default), "91" or "diesel".
	FuelType string `json:"fuel_type,omitempty"`
	// Preference selects the routing mode; see routing.PreferenceWestBank.
	Preference string `json:"preference,omitempty"`
	// Currency is the display currency code; converted from the origin
	// country's local currency via a static rate table.
	Currency string `json:"currency,omitempty"`
}

// Estimate is the full estimation result. Cost figures are in LocalCurrency;
// DisplayCost carries the converted total when a different display currency
// was requested.
type Estimate struct {
	Origin      *geo.PlaceResolution `json:"origin"`
	Destination *geo.PlaceResolution `json:"destination"`
	Vehicle     *vehicles.Spec       `json:"vehicle"`
	Routes      []routing.Candidate  `json:"routes"`

	Cost          costing.Result `json:"cost"`
	LocalCurrency string         `json:"local_currency"`

	DisplayCost     float64 `json:"display_cost"`
	DisplayCurrency string  `json:"display_currency"`
}

// Estimate runs the flow for one request. The first (preferred) route
// candidate prices the trip; the rest are returned for display.
func (e *Estimator) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	log := logging.FromContext(ctx)

	origin, err := e.Geo.ResolveCoordinates(ctx, req.Origin)
	if err != nil {
		return nil, fmt.Errorf("resolving origin %q: %w", req.Origin, err)
	}
	dest, err := e.Geo.ResolveCoordinates(ctx, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("resolving destination %q: %w", req.Destination, err)
	}

	routes, err := e.Routes.ResolveRoutes(ctx, origin.Coordinate, dest.Coordinate, req.Preference)
	if err != nil {
		return nil, err
	}

	spec, err := e.Vehicles.Resolve(ctx, req.Brand, req.Model, req.Year)
	if err != nil {
		return nil, err
	}

	price, localCurrency := e.fuelPrice(origin, req.FuelType)
	if price == 0 {
		price = e.DefaultFuelPrice
		log.Warn("no fuel price resolved, using configured default",
			"origin", req.Origin, "fuel_type", req.FuelType, "price", price)
	}

	result := costing.Compute(routes[0].DistanceKm, spec.Consumption, price)

	displayCurrency := req.Currency
	if displayCurrency == "" {
		displayCurrency = e.DefaultCurrency
	}
	if displayCurrency == "" {
		displayCurrency = DefaultCurrency
	}

	return &Estimate{
		Origin:          origin,
		Destination:     dest,
		Vehicle:         spec,
		Routes:          routes,
		Cost:            result,
		LocalCurrency:   localCurrency,
		DisplayCost:     costing.Convert(result.TotalCost, localCurrency, displayCurrency),
		DisplayCurrency: displayCurrency,
	}, nil
}

// fuelPrice picks the per-liter price for the requested grade from the
// origin country's profile. Returns 0 when no profile or price is available.
func (e *Estimator) fuelPrice(origin *geo.PlaceResolution, fuelType string) (price float64, currency string) {
	currency = DefaultCurrency
	if e.DefaultCurrency != "" {
		currency = e.DefaultCurrency
	}
	if origin.Country == nil {
		return 0, currency
	}
	if origin.Country.Currency.Code != "" {
		currency = origin.Country.Currency.Code
	}
	prices := origin.Country.FuelPrices
	switch strings.ToLower(strings.TrimSpace(fuelType)) {
	case "", "95":
		price = prices.Octane95
	case "91":
		price = prices.Octane91
	case "diesel":
		price = prices.Diesel
	}
	return price, currency
}
