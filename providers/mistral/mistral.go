// Package mistral provides the Mistral AI provider adapter.
// API Reference: https://docs.mistral.ai/api/
package mistral

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/providers/openailike"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "mistral"

	// DefaultBaseURL is the default Mistral AI API endpoint.
	DefaultBaseURL = "https://api.mistral.ai/v1"
)

// DefaultModelTable maps normalized ids to Mistral model names.
var DefaultModelTable = map[string]string{
	"mistral/mistral-large":     "mistral-large-latest",
	"mistral/mistral-medium":    "mistral-medium-latest",
	"mistral/mistral-small":     "mistral-small-latest",
	"mistral/open-mistral-7b":   "open-mistral-7b",
	"mistral/open-mixtral-8x7b": "open-mixtral-8x7b",
	"mistral/codestral":         "codestral-latest",
	"mistral/mistral-embed":     "mistral-embed",
}

var providerInfo = openailike.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
	Capabilities: provider.Capabilities{
		Chat:       true,
		Streaming:  true,
		Embeddings: true,
	},
	ModelTable: DefaultModelTable,
	MissPolicy: modelmap.Permissive,
}

// Provider wraps the OpenAI-compatible base for Mistral AI.
type Provider struct {
	*openailike.Provider
}

// New creates a new Mistral AI provider with the given options.
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
