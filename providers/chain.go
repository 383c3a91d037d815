package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/waypoint-labs/fuel-router/internal/logging"
	"github.com/waypoint-labs/fuel-router/internal/metrics"
)

// Chain queries providers in order, moving to the next on failure. A backend
// is never retried within one query; the next backend handles it instead.
type Chain struct {
	providers []Provider
}

// NewChain creates a fallback chain over the given providers, tried in order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// ChainFromRegistry builds a chain over all registered providers in
// registration order.
func ChainFromRegistry(r *Registry) *Chain {
	return &Chain{providers: r.All()}
}

// Name identifies the chain in lookup logs.
func (c *Chain) Name() string {
	if len(c.providers) == 1 {
		return c.providers[0].Name()
	}
	return "chain"
}

// Query tries each provider in order and returns the first successful
// response. It fails only when every provider has failed, returning the last
// error. Context cancellation stops the chain immediately.
func (c *Chain) Query(ctx context.Context, prompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured", ErrUnavailable)
	}

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := p.Query(ctx, prompt)
		if err == nil {
			return text, nil
		}
		metrics.KnowledgeErrors.WithLabelValues(p.Name(), errorType(err)).Inc()
		logging.FromContext(ctx).Warn("knowledge provider failed, trying next",
			"provider", p.Name(), "error", err)
		lastErr = fmt.Errorf("provider %s: %w", p.Name(), err)
	}
	return "", fmt.Errorf("all knowledge providers failed: %w", lastErr)
}

// errorType buckets a backend failure for the knowledge error counter.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "transport"
	}
}
