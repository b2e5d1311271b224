// Package openrouter provides the OpenRouter provider adapter. OpenRouter
// fronts many upstream vendors behind one OpenAI-compatible endpoint, so
// its native model names already carry vendor prefixes.
// API Reference: https://openrouter.ai/docs
package openrouter

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/providers/openailike"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openrouter"

	// DefaultBaseURL is the default OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

// DefaultModelTable maps normalized ids to OpenRouter model paths.
var DefaultModelTable = map[string]string{
	"openrouter/gpt-4o":            "openai/gpt-4o",
	"openrouter/claude-3.5-sonnet": "anthropic/claude-3.5-sonnet",
	"openrouter/gemini-flash-1.5":  "google/gemini-flash-1.5",
	"openrouter/llama-3.1-70b":     "meta-llama/llama-3.1-70b-instruct",
}

var providerInfo = openailike.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
	Capabilities: provider.Capabilities{
		Chat:      true,
		Streaming: true,
	},
	ExtraHeaders: map[string]string{
		"HTTP-Referer": "https://github.com/nebulark/oneapi",
		"X-Title":      "oneapi",
	},
	ModelTable: DefaultModelTable,
	MissPolicy: modelmap.Permissive,
}

// Provider wraps the OpenAI-compatible base for OpenRouter.
type Provider struct {
	*openailike.Provider
}

// New creates a new OpenRouter provider with the given options.
func New(opts ...openailike.Option) *Provider {
	return &Provider{
		Provider: openailike.New(providerInfo, opts...),
	}
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	base, err := openailike.NewFromConfig(providerInfo, cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{Provider: base.(*openailike.Provider)}, nil
}
