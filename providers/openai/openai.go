// Package openai provides the OpenAI provider adapter. It builds on the
// OpenAI-compatible base and adds the image generation and audio
// transcription endpoints that only OpenAI exposes.
package openai

import (
	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/providers/openailike"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// DefaultModelTable maps normalized ids to OpenAI model names. Ids absent
// from the table pass through unchanged so new models work without a
// library update.
var DefaultModelTable = map[string]string{
	"openai/gpt-4o":                 "gpt-4o",
	"openai/gpt-4o-mini":            "gpt-4o-mini",
	"openai/gpt-4-turbo":            "gpt-4-turbo",
	"openai/gpt-3.5-turbo":          "gpt-3.5-turbo",
	"openai/o1":                     "o1",
	"openai/o1-mini":                "o1-mini",
	"openai/text-embedding-3-small": "text-embedding-3-small",
	"openai/text-embedding-3-large": "text-embedding-3-large",
	"openai/dall-e-3":               "dall-e-3",
	"openai/whisper-1":              "whisper-1",
}

var providerInfo = openailike.Info{
	Name:           ProviderName,
	DefaultBaseURL: DefaultBaseURL,
	Capabilities: provider.Capabilities{
		Chat:       true,
		Streaming:  true,
		Embeddings: true,
		Images:     true,
		Audio:      true,
	},
	ModelTable: DefaultModelTable,
	MissPolicy: modelmap.Permissive,
}

// Provider wraps the OpenAI-compatible base and adds image and audio
// endpoints.
type Provider struct {
	*openailike.Provider
}

// New creates a new OpenAI provider with the given options.
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
