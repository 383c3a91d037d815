package fuelrouter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waypoint-labs/fuel-router/internal/cache"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one knowledge provider is required")
	}
	for i, p := range cfg.Providers {
		switch p.Kind {
		case ProviderGemini, ProviderOpenAI:
			if p.APIKey == "" {
				return fmt.Errorf("provider %d (%s): api_key is required", i, p.Kind)
			}
		case ProviderBedrock:
			// Credentials come from the ambient AWS config chain.
		default:
			return fmt.Errorf("provider %d: unknown kind %q", i, p.Kind)
		}
	}

	for category, ttl := range cfg.Cache.TTLSeconds {
		if ttl < 0 {
			return fmt.Errorf("cache ttl for %q is negative", category)
		}
		if _, ok := cache.DefaultTTLs[category]; !ok {
			return fmt.Errorf("cache ttl for unknown category %q", category)
		}
	}

	switch cfg.LookupLog.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown lookup_log driver %q: use sqlite or postgres", cfg.LookupLog.Driver)
	}
	if cfg.LookupLog.Driver != "" && cfg.LookupLog.DSN == "" {
		return fmt.Errorf("lookup_log driver %q requires a dsn", cfg.LookupLog.Driver)
	}

	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown logging format %q: use json or text", cfg.Logging.Format)
	}

	return nil
}
