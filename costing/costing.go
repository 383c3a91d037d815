// Package costing turns a route distance, a vehicle consumption figure, and a
// fuel price into a cost breakdown, and converts amounts between currencies
// using a fixed rate table.
package costing

import (
	"encoding/json"
	"math"
)

// DefaultConsumptionRate is used when a vehicle spec carries no usable
// consumption figure, in L/100km.
const DefaultConsumptionRate = 8.0

// Consumption holds a vehicle's fuel consumption. Providers return either a
// structured breakdown or a bare scalar; a scalar decodes into Combined.
type Consumption struct {
	City       float64 `json:"city,omitempty"`
	Highway    float64 `json:"highway,omitempty"`
	Combined   float64 `json:"combined,omitempty"`
	Efficiency float64 `json:"efficiency,omitempty"`
}

// UnmarshalJSON accepts either a JSON number or a structured object.
func (c *Consumption) UnmarshalJSON(b []byte) error {
	var scalar float64
	if err := json.Unmarshal(b, &scalar); err == nil {
		*c = Consumption{Combined: scalar}
		return nil
	}
	type alias Consumption
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Consumption(a)
	return nil
}

// EffectiveRate returns the single L/100km figure used for cost math:
// combined when present, then city, then DefaultConsumptionRate.
func (c Consumption) EffectiveRate() float64 {
	if c.Combined > 0 {
		return c.Combined
	}
	if c.City > 0 {
		return c.City
	}
	return DefaultConsumptionRate
}

// Result is the cost breakdown for one trip. Transient: computed per request
// and never cached, since the expensive lookups upstream already are.
type Result struct {
	FuelNeededLiters float64 `json:"fuel_needed_liters"`
	TotalCost        float64 `json:"total_cost"`
	ConsumptionRate  float64 `json:"consumption_rate"`
	FuelPrice        float64 `json:"fuel_price"`
	DistanceKm       float64 `json:"distance_km"`
}

// Compute calculates the fuel needed and total cost for distanceKm at the
// consumption's effective rate and pricePerLiter. Fuel and cost are rounded
// to two decimal places for display; the unrounded values are not retained.
func Compute(distanceKm float64, consumption Consumption, pricePerLiter float64) Result {
	rate := consumption.EffectiveRate()
	fuel := rate * distanceKm / 100
	return Result{
		FuelNeededLiters: round2(fuel),
		TotalCost:        round2(fuel * pricePerLiter),
		ConsumptionRate:  rate,
		FuelPrice:        pricePerLiter,
		DistanceKm:       distanceKm,
	}
}

// rates expresses each currency relative to the Saudi riyal reference unit.
// A static approximation, not live FX; callers needing accuracy must convert
// elsewhere.
var rates = map[string]float64{
	"SAR": 1.0,
	"USD": 0.27,
	"EUR": 0.25,
	"GBP": 0.21,
	"AED": 0.98,
	"KWD": 0.082,
	"BHD": 0.10,
	"QAR": 0.98,
	"OMR": 0.10,
	"ILS": 1.0,
	"JOD": 0.19,
	"EGP": 8.2,
}

// Convert translates amount from one currency code to another through the
// reference unit. Unknown codes are treated as already expressed in the
// reference unit (rate 1.0).
func Convert(amount float64, from, to string) float64 {
	fromRate, ok := rates[from]
	if !ok {
		fromRate = 1.0
	}
	toRate, ok := rates[to]
	if !ok {
		toRate = 1.0
	}
	return amount * fromRate / toRate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
