// Package together provides the Together AI provider adapter.
// API Reference: https://docs.together.ai/reference
package together

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/providers/openailike"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "together"

	// DefaultBaseURL is the default Together AI API endpoint.
	DefaultBaseURL = "https://api.together.xyz/v1"
)

// DefaultModelTable maps normalized ids to Together model paths.
var DefaultModelTable = map[string]string{
	"together/llama-3.1-405b": "meta-llama/Meta-Llama-3.1-405B-Instruct-Turbo",
	"together/llama-3.1-70b":  "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
	"together/llama-3.1-8b":   "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
	"together/qwen-2.5-72b":   "Qwen/Qwen2.5-72B-Instruct-Turbo",
	"together/m2-bert-8k":     "togethercomputer/m2-bert-80M-8k-retrieval",
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

// Provider wraps the OpenAI-compatible base for Together AI.
type Provider struct {
	*openailike.Provider
}

// New creates a new Together AI provider with the given options.
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
