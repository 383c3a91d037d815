package geo

import "strings"

// override is a hand-maintained place entry for localities where Nominatim
// coverage is unreliable. Coordinates and pricing were verified manually.
type override struct {
	names   []string
	lat     float64
	lon     float64
	address string
	profile CountryProfile
}

func (o override) resolution() *PlaceResolution {
	profile := o.profile
	return &PlaceResolution{
		Coordinate:     Coordinate{Latitude: o.lat, Longitude: o.lon},
		DisplayAddress: o.address,
		Country:        &profile,
	}
}

// palestineProfile is shared by the West Bank overrides and by the
// per-country fuel price defaults.
var palestineProfile = CountryProfile{
	CountryName: "Palestine",
	Currency:    Currency{Name: "Israeli new shekel", Code: "ILS", Symbol: "₪"},
	FuelPrices:  FuelPrices{Octane95: 7.7, Octane91: 7.2, Diesel: 7.2},
}

// overrides lists the known-bad geocoder localities. Matching is
// case-insensitive on any listed name.
var overrides = []override{
	{
		names:   []string{"ramallah", "رام الله"},
		lat:     31.9038, lon: 35.2034,
		address: "Ramallah, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"nablus", "نابلس"},
		lat:     32.2211, lon: 35.2544,
		address: "Nablus, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"hebron", "الخليل"},
		lat:     31.5326, lon: 35.0998,
		address: "Hebron, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"jenin", "جنين"},
		lat:     32.4597, lon: 35.2938,
		address: "Jenin, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"bethlehem", "بيت لحم"},
		lat:     31.7054, lon: 35.2024,
		address: "Bethlehem, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"jericho", "أريحا"},
		lat:     31.8667, lon: 35.4500,
		address: "Jericho, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"tulkarm", "طولكرم"},
		lat:     32.3104, lon: 35.0286,
		address: "Tulkarm, West Bank",
		profile: palestineProfile,
	},
	{
		names:   []string{"qalqilya", "قلقيلية"},
		lat:     32.1964, lon: 34.9706,
		address: "Qalqilya, West Bank",
		profile: palestineProfile,
	},
}

// lookupOverride matches place against the override table.
func lookupOverride(place string) (override, bool) {
	needle := strings.ToLower(strings.TrimSpace(place))
	for _, o := range overrides {
		for _, name := range o.names {
			if needle == name {
				return o, true
			}
		}
	}
	return override{}, false
}

// fallbackProfile is attached when country resolution fails entirely: the
// default currency of the original deployment region with unknown prices.
func fallbackProfile() *CountryProfile {
	return &CountryProfile{
		CountryName: "",
		Currency:    Currency{Name: "Israeli new shekel", Code: "ILS", Symbol: "₪"},
		FuelPrices:  FuelPrices{},
	}
}
