// Package providers defines the knowledge-provider interface used by the
// vehicle and country resolvers, and its backends (Gemini, OpenAI, Bedrock).
//
// A knowledge provider answers a free-text prompt with free text that is
// expected to contain one JSON object or array, possibly wrapped in code-fence
// markup. Responses are untrusted: callers run them through ExtractObject /
// ExtractArray before use.
package providers

import (
	"context"
	"errors"
)

// Provider is implemented by every knowledge backend.
type Provider interface {
	// Name returns the backend identifier, e.g. "gemini".
	Name() string
	// Query sends prompt and returns the raw response text.
	Query(ctx context.Context, prompt string) (string, error)
}

// Sentinel errors for the provider boundary. Transport and service failures
// wrap ErrUnavailable; responses that cannot be coerced into the expected
// JSON shape wrap ErrMalformedResponse.
var (
	ErrUnavailable       = errors.New("knowledge provider unavailable")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrEmptyResponse     = errors.New("empty provider response")
)

// Registry manages a collection of providers for lookup by name.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry. Registration order is preserved
// and defines the fallback order used by Chain.
func (r *Registry) Register(p Provider) {
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns a provider by name and whether it was found.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// List returns the names of all registered providers in registration order.
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns the registered providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}
