// Package vehicles resolves (brand, model, year) into fuel-consumption data
// via a knowledge provider, with long-lived disk caching. Specs encode
// historical facts, so cached entries never expire by default.
package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/waypoint-labs/fuel-router/costing"
	"github.com/waypoint-labs/fuel-router/internal/cache"
	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/lookuplog"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
	"github.com/waypoint-labs/fuel-router/providers"
)

// ErrLookupFailed is returned when the knowledge provider cannot supply a
// spec in the expected shape after exhausting all backends.
var ErrLookupFailed = errors.New("vehicle spec lookup failed")

// Spec is a resolved vehicle specification. Raw preserves the full provider
// payload for callers that render additional fields.
type Spec struct {
	Brand       string              `json:"brand"`
	Model       string              `json:"model"`
	Year        int                 `json:"year"`
	Consumption costing.Consumption `json:"fuel_consumption"`
	Raw         json.RawMessage     `json:"-"`
}

// specWire covers the two response shapes providers produce: a flat object
// with fuel_consumption at the top level, or one nested under
// "specifications".
type specWire struct {
	Brand          string               `json:"brand"`
	Model          string               `json:"model"`
	Year           int                  `json:"year"`
	Consumption    *costing.Consumption `json:"fuel_consumption"`
	Specifications *struct {
		Consumption *costing.Consumption `json:"fuel_consumption"`
	} `json:"specifications"`
}

// specSchema requires either shape before a payload is cached; anything else
// is a lookup failure, not cacheable data.
var specSchema = providers.MustCompileSchema("vehicle-spec.json", `{
	"type": "object",
	"anyOf": [
		{"required": ["specifications"], "properties": {"specifications": {"type": "object"}}},
		{"required": ["fuel_consumption"]}
	]
}`)

// Resolver answers vehicle spec lookups, cache first.
type Resolver struct {
	store     cache.Store
	knowledge providers.Provider
	audit     lookuplog.Writer
}

// NewResolver creates a Resolver. knowledge is typically a providers.Chain;
// audit may be nil to disable lookup logging.
func NewResolver(store cache.Store, knowledge providers.Provider, audit lookuplog.Writer) *Resolver {
	if audit == nil {
		audit = lookuplog.NoopWriter{}
	}
	return &Resolver{store: store, knowledge: knowledge, audit: audit}
}

// Resolve returns the spec for the given vehicle, from cache when possible.
// Failures wrap ErrLookupFailed.
func (r *Resolver) Resolve(ctx context.Context, brand, model string, year int) (*Spec, error) {
	if brand == "" || model == "" || year <= 0 {
		return nil, fmt.Errorf("%w: brand, model, and year are required", ErrLookupFailed)
	}

	key := cache.Key(brand, model, strconv.Itoa(year))
	start := time.Now()
	defer func() {
		metrics.LookupDuration.WithLabelValues("vehicles").Observe(time.Since(start).Seconds())
	}()

	if data, ok := r.store.Get(cache.CategoryVehicles, key); ok {
		if spec, err := parseSpec(data, brand, model, year); err == nil {
			metrics.CacheHits.WithLabelValues(cache.CategoryVehicles).Inc()
			r.writeAudit(ctx, key, "", true, "", start)
			metrics.LookupsTotal.WithLabelValues("vehicles", "success").Inc()
			return spec, nil
		}
		// A cached entry that no longer parses is stale tooling output;
		// fall through to a fresh lookup.
		logging.FromContext(ctx).Warn("cached vehicle spec unparseable, refetching", "key", key)
	}
	metrics.CacheMisses.WithLabelValues(cache.CategoryVehicles).Inc()

	text, err := r.knowledge.Query(ctx, specPrompt(brand, model, year))
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("vehicles", "error").Inc()
		r.writeAudit(ctx, key, r.knowledge.Name(), false, err.Error(), start)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	raw, err := providers.ExtractObject(text)
	if err != nil {
		metrics.KnowledgeErrors.WithLabelValues(r.knowledge.Name(), "malformed").Inc()
		metrics.LookupsTotal.WithLabelValues("vehicles", "error").Inc()
		r.writeAudit(ctx, key, r.knowledge.Name(), false, err.Error(), start)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if err := providers.Validate(specSchema, raw); err != nil {
		metrics.KnowledgeErrors.WithLabelValues(r.knowledge.Name(), "malformed").Inc()
		metrics.LookupsTotal.WithLabelValues("vehicles", "error").Inc()
		r.writeAudit(ctx, key, r.knowledge.Name(), false, err.Error(), start)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	spec, err := parseSpec(raw, brand, model, year)
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("vehicles", "error").Inc()
		r.writeAudit(ctx, key, r.knowledge.Name(), false, err.Error(), start)
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	r.store.Put(cache.CategoryVehicles, key, json.RawMessage(raw))
	r.writeAudit(ctx, key, r.knowledge.Name(), false, "", start)
	metrics.LookupsTotal.WithLabelValues("vehicles", "success").Inc()
	logging.FromContext(ctx).Info("vehicle spec resolved",
		"brand", brand, "model", model, "year", year,
		"rate", spec.Consumption.EffectiveRate())
	return spec, nil
}

// ListModels returns the model names the provider knows for brand, newest
// first as returned. Results are not cached: name lists churn and a stale
// list is worse than a second lookup.
func (r *Resolver) ListModels(ctx context.Context, brand string) ([]string, error) {
	if brand == "" {
		return nil, fmt.Errorf("%w: brand is required", ErrLookupFailed)
	}

	text, err := r.knowledge.Query(ctx, modelsPrompt(brand))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	raw, err := providers.ExtractArray(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	var models []string
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return models, nil
}

func parseSpec(raw []byte, brand, model string, year int) (*Spec, error) {
	var w specWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}

	spec := &Spec{Brand: brand, Model: model, Year: year, Raw: append(json.RawMessage(nil), raw...)}
	if w.Brand != "" {
		spec.Brand = w.Brand
	}
	if w.Model != "" {
		spec.Model = w.Model
	}
	if w.Year != 0 {
		spec.Year = w.Year
	}

	switch {
	case w.Specifications != nil && w.Specifications.Consumption != nil:
		spec.Consumption = *w.Specifications.Consumption
	case w.Consumption != nil:
		spec.Consumption = *w.Consumption
	}
	return spec, nil
}

func (r *Resolver) writeAudit(ctx context.Context, key, provider string, cacheHit bool, errMsg string, start time.Time) {
	entry := lookuplog.Entry{
		TraceID:    logging.TraceIDFromContext(ctx),
		Component:  "vehicles",
		Key:        key,
		Provider:   provider,
		CacheHit:   cacheHit,
		ErrorMsg:   errMsg,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := r.audit.Write(ctx, entry); err != nil {
		logging.FromContext(ctx).Warn("lookup log write failed", "error", err)
	}
}

func specPrompt(brand, model string, year int) string {
	return fmt.Sprintf(`Provide detailed specifications for the %d %s %s car.

Format the response as a JSON object with this exact structure:
{
    "brand": %q,
    "model": %q,
    "year": %d,
    "specifications": {
        "fuel_consumption": {"city": float, "highway": float, "combined": float},
        "engine": {"type": string, "displacement": string, "power": string},
        "transmission": string,
        "fuel_type": string,
        "fuel_tank": string
    }
}

Important:
- fuel_consumption values are in L/100km
- Return ONLY the JSON object, no additional text
- Ensure all numeric values are actual numbers, not strings`, year, brand, model, brand, model, year)
}

func modelsPrompt(brand string) string {
	return fmt.Sprintf(`List the car model names sold by %s in the last 15 years.
Return ONLY a JSON array of strings, e.g. ["Corolla", "Camry"], no additional text.`, brand)
}
