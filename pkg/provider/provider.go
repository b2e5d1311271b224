// Package provider defines the public interface for LLM provider adapters.
// Each provider (OpenAI, Anthropic, Gemini, ...) implements this interface
// to handle model-id mapping, request/response translation, and API
// communication.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/nebulark/oneapi/pkg/types"
)

// Capabilities describes which operations a provider supports.
// Operations not listed here fail before any network call.
type Capabilities struct {
	Chat       bool
	Streaming  bool
	Embeddings bool
	Images     bool
	Audio      bool
}

// Provider defines the interface that all provider adapters must implement.
// It handles the complete lifecycle of a chat request: model mapping,
// building, sending, and parsing.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string

	// Capabilities returns the provider's capability table.
	Capabilities() Capabilities

	// ToProviderModel maps a normalized "<provider>/<slug>" id to the
	// vendor's native model string. Strict providers return an
	// unsupported-model error for ids missing from their mapping table;
	// permissive providers return the cleaned input unchanged.
	ToProviderModel(model string) (string, error)

	// ToNormalizedModel maps a vendor-native model string back to the
	// normalized id. Unknown native names pass through unchanged.
	ToNormalizedModel(model string) string

	// ValidateRequest checks provider-specific preconditions. All
	// violations found are aggregated into a single validation error.
	// It runs before any network call and before any limiter mutation.
	ValidateRequest(req *types.ChatRequest) error

	// BuildRequest transforms a normalized ChatRequest into a
	// provider-specific HTTP request. The request's Model must already be
	// the vendor-native string.
	BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error)

	// ParseResponse transforms a provider-specific response into a
	// normalized ChatResponse. Usage totals are recomputed, never trusted.
	ParseResponse(resp *http.Response) (*types.ChatResponse, error)

	// ParseStreamChunk parses a single line of a streaming response body.
	// Returns nil, nil for keep-alive, event, or non-content lines; a
	// malformed line is a local parse failure, not a stream failure.
	ParseStreamChunk(data []byte) (*types.StreamChunk, error)

	// MapError converts a provider-specific error response into a
	// standardized APIError.
	MapError(statusCode int, body []byte) error
}

// StreamParser consumes the lines of one streaming response body. Unlike
// Provider.ParseStreamChunk it may carry state across lines, which vendors
// with event-typed stream protocols need to place the terminal fragment.
type StreamParser interface {
	Parse(data []byte) (*types.StreamChunk, error)
}

// StreamParserProvider is implemented by providers whose stream protocol
// requires per-stream state. Callers obtain a fresh parser per stream;
// providers without it fall back to the stateless ParseStreamChunk.
type StreamParserProvider interface {
	NewStreamParser() StreamParser
}

// Embedder is implemented by providers whose capability table includes
// embeddings.
type Embedder interface {
	BuildEmbeddingRequest(ctx context.Context, req *types.EmbeddingRequest) (*http.Request, error)
	ParseEmbeddingResponse(resp *http.Response) (*types.EmbeddingResponse, error)
}

// ImageGenerator is implemented by providers that support image generation.
type ImageGenerator interface {
	BuildImageRequest(ctx context.Context, req *types.ImageRequest) (*http.Request, error)
	ParseImageResponse(resp *http.Response) (*types.ImageResponse, error)
}

// Transcriber is implemented by providers that support audio transcription.
type Transcriber interface {
	BuildTranscriptionRequest(ctx context.Context, req *types.TranscriptionRequest) (*http.Request, error)
	ParseTranscriptionResponse(resp *http.Response) (*types.TranscriptionResponse, error)
}

// Config contains provider-specific configuration.
type Config struct {
	Name    string
	Type    string
	APIKey  string
	BaseURL string
	Models  []string
	Timeout time.Duration
	Headers map[string]string

	// AllowPrivateBaseURL permits loopback and private-range BaseURL hosts,
	// which are rejected by default.
	AllowPrivateBaseURL bool

	// ModelTable overrides the provider's built-in model mapping table.
	// Keys are normalized ids, values are vendor-native model strings.
	ModelTable map[string]string
}

// Factory creates provider instances from configuration.
type Factory func(cfg Config) (Provider, error)
