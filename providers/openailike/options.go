package openailike

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/internal/validate"
)

// Option configures an OpenAI-like provider.
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

// WithHeader adds a custom header.
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers[key] = value
	}
}

// WithModelTable replaces the built-in model mapping table.
func WithModelTable(table map[string]string) Option {
	return func(p *Provider) {
		p.mapper = modelmap.New(p.info.Name, table, p.info.MissPolicy)
	}
}

// WithRules replaces the validation rules.
func WithRules(rules validate.Rules) Option {
	return func(p *Provider) {
		p.rules = rules
	}
}
