package providers

// Base provides common fields shared by REST-based knowledge backends.
// Embed this struct to avoid repeating name, apiKey, and baseURL handling.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the provider base URL.
func (b *Base) BaseURL() string { return b.baseURL }
