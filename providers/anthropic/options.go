package anthropic

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/internal/validate"
)

// Option configures the Anthropic provider.
type Option func(*Provider)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithAPIVersion sets the Anthropic API version.
func WithAPIVersion(version string) Option {
	return func(p *Provider) {
		if version != "" {
			p.apiVersion = version
		}
	}
}

// WithHeader adds a custom header.
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers[key] = value
	}
}

// WithModelTable replaces the built-in model mapping table. The strict
// miss policy is kept; unmapped ids stay rejected.
func WithModelTable(table map[string]string) Option {
	return func(p *Provider) {
		p.mapper = modelmap.New(ProviderName, table, modelmap.Strict)
	}
}

// WithRules replaces the validation rules.
func WithRules(rules validate.Rules) Option {
	return func(p *Provider) {
		p.rules = rules
	}
}
