// Package cache provides the disk-backed expiring JSON store shared by all
// resolvers. Entries are partitioned into categories, each with its own TTL.
// The default implementation is Disk.
package cache

import (
	"regexp"
	"strings"
	"time"
)

// Category names for the logical datasets stored by the resolvers.
const (
	CategoryVehicles    = "vehicles"
	CategoryGeocode     = "geocode"
	CategoryRoutes      = "routes"
	CategoryCities      = "cities"
	CategoryCountryInfo = "country_info"
	CategoryFuelPrices  = "fuel_prices"
)

// Store defines the cache operations used by the resolvers. Get returns the
// raw JSON payload and false on any miss, including expired or unreadable
// entries. Put and Clear report failure via their return value; neither ever
// panics or surfaces I/O errors to the caller.
type Store interface {
	Get(category, key string) ([]byte, bool)
	Put(category, key string, value any) bool
	Clear(category string) bool
}

// DefaultTTLs maps each category to its expiry policy. Zero means never
// expire: vehicle specs and geocoded coordinates encode historical facts,
// while fuel prices, country info, and routes go stale within the hour.
var DefaultTTLs = map[string]time.Duration{
	CategoryVehicles:    0,
	CategoryGeocode:     0,
	CategoryRoutes:      time.Hour,
	CategoryCities:      time.Hour,
	CategoryCountryInfo: time.Hour,
	CategoryFuelPrices:  time.Hour,
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Key normalizes the given parts into a file-safe cache key: lower-cased,
// whitespace collapsed to underscores, joined with underscores.
func Key(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "_"))
	joined = strings.Join(strings.Fields(joined), "_")
	return unsafeKeyChars.ReplaceAllString(joined, "_")
}
