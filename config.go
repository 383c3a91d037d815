package fuelrouter

// Config holds the configuration for the fuel router service.
type Config struct {
	// Providers lists the knowledge provider backends in fallback order.
	Providers []ProviderConfig `json:"providers" yaml:"providers"`
	// Cache configures the on-disk lookup cache.
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
	// Geocoder configures the Nominatim-compatible geocoding client.
	Geocoder GeocoderConfig `json:"geocoder,omitempty" yaml:"geocoder,omitempty"`
	// Routing configures the directions API client.
	Routing RoutingConfig `json:"routing,omitempty" yaml:"routing,omitempty"`
	// Defaults used when upstream lookups cannot supply a value.
	Defaults DefaultsConfig `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	// LookupLog configures the optional SQL audit log.
	LookupLog LookupLogConfig `json:"lookup_log,omitempty" yaml:"lookup_log,omitempty"`
	// Server configures the HTTP API binary.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	// Logging configures log output.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// ProviderKind names a supported knowledge provider backend.
type ProviderKind string

const (
	ProviderGemini  ProviderKind = "gemini"
	ProviderOpenAI  ProviderKind = "openai"
	ProviderBedrock ProviderKind = "bedrock"
)

// ProviderConfig describes one knowledge provider backend.
type ProviderConfig struct {
	Kind    ProviderKind `json:"kind" yaml:"kind"`
	APIKey  string       `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string       `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Model overrides the backend's default model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Region is used by the bedrock backend only.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// CacheConfig configures the disk cache.
type CacheConfig struct {
	// Dir is the cache root directory. Defaults to "cache" under the
	// working directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// TTLSeconds overrides per-category expiry. 0 means never expire.
	TTLSeconds map[string]int `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
}

// GeocoderConfig configures the geocoding client.
type GeocoderConfig struct {
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	UserAgent      string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// RoutingConfig configures the directions client.
type RoutingConfig struct {
	// Endpoints override the default endpoint list, tried in order.
	Endpoints      []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	APIKey         string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// DefaultsConfig holds fallback values for cost computation.
type DefaultsConfig struct {
	// Currency is the display currency when the caller requests none.
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
	// FuelPrice is the per-liter price used when country resolution
	// yields no price for the requested fuel grade.
	FuelPrice float64 `json:"fuel_price,omitempty" yaml:"fuel_price,omitempty"`
}

// LookupLogConfig configures the SQL lookup audit log. An empty driver
// disables auditing.
type LookupLogConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"` // sqlite | postgres
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or text.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}
