// Package openailike provides a base implementation for OpenAI-compatible
// providers. Most LLM vendors follow OpenAI's API format with minor
// variations; this package reduces duplication by providing the common
// request building, parsing, and error mapping once.
package openailike

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/internal/validate"
	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/pkg/types"
)

// Info contains provider-specific configuration.
type Info struct {
	// Name is the provider identifier (e.g., "mistral", "together")
	Name string

	// DefaultBaseURL is the default API endpoint
	DefaultBaseURL string

	// APIKeyHeader is the header name for API key authentication
	// Default: "Authorization" with "Bearer " prefix
	APIKeyHeader string

	// APIKeyPrefix is the prefix for the API key value
	APIKeyPrefix string

	// ChatEndpoint is the path for chat completions
	// Default: "/chat/completions"
	ChatEndpoint string

	// EmbeddingEndpoint is the path for embeddings
	// Default: "/embeddings"
	EmbeddingEndpoint string

	// Capabilities is the provider's capability table
	Capabilities provider.Capabilities

	// ExtraHeaders are additional headers to include in requests
	ExtraHeaders map[string]string

	// ModelTable maps normalized ids to vendor-native model strings
	ModelTable map[string]string

	// MissPolicy controls handling of ids absent from ModelTable.
	// OpenAI-compatible providers default to Permissive.
	MissPolicy modelmap.MissPolicy

	// Rules holds the provider's validation constraints. A zero value
	// selects validate.DefaultRules for the provider.
	Rules validate.Rules
}

// Provider implements a generic OpenAI-compatible LLM provider adapter.
type Provider struct {
	info    Info
	apiKey  string
	baseURL string
	headers map[string]string
	mapper  *modelmap.Mapper
	rules   validate.Rules
}

// New creates a new OpenAI-like provider instance.
func New(info Info, opts ...Option) *Provider {
	p := &Provider{
		info:    info,
		baseURL: info.DefaultBaseURL,
		headers: make(map[string]string),
		rules:   info.Rules,
	}
	if p.rules.Provider == "" {
		p.rules = validate.DefaultRules(info.Name)
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.mapper == nil {
		p.mapper = modelmap.New(info.Name, info.ModelTable, info.MissPolicy)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(info Info, cfg provider.Config) (provider.Provider, error) {
	if cfg.BaseURL != "" {
		if err := provider.ValidateBaseURL(cfg.BaseURL, cfg.AllowPrivateBaseURL); err != nil {
			return nil, err
		}
	}

	opts := []Option{
		WithAPIKey(cfg.APIKey),
		WithBaseURL(cfg.BaseURL),
	}
	if len(cfg.ModelTable) > 0 {
		opts = append(opts, WithModelTable(cfg.ModelTable))
	}

	p := New(info, opts...)
	for k, v := range cfg.Headers {
		p.headers[k] = v
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.info.Name
}

// Capabilities returns the provider's capability table.
func (p *Provider) Capabilities() provider.Capabilities {
	return p.info.Capabilities
}

// ToProviderModel maps a normalized id to the vendor-native model string.
func (p *Provider) ToProviderModel(model string) (string, error) {
	return p.mapper.ToProviderModel(model)
}

// ToNormalizedModel maps a vendor-native model string back to the
// normalized id.
func (p *Provider) ToNormalizedModel(model string) string {
	return p.mapper.ToNormalizedModel(model)
}

// ValidateRequest checks provider-specific preconditions, aggregating all
// violations into a single error.
func (p *Provider) ValidateRequest(req *types.ChatRequest) error {
	return validate.Request(p.rules, req)
}

// BuildRequest creates an HTTP request for the provider's API.
// req.Model must already be the vendor-native string.
func (p *Provider) BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.info.ChatEndpoint
	if endpoint == "" {
		endpoint = "/chat/completions"
	}

	url := strings.TrimSuffix(p.baseURL, "/") + endpoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	p.setHeaders(httpReq)
	return httpReq, nil
}

func (p *Provider) setHeaders(httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	p.AuthHeaders(httpReq)
}

// AuthHeaders applies the authentication and custom headers without touching
// Content-Type, for endpoints that send non-JSON bodies.
func (p *Provider) AuthHeaders(httpReq *http.Request) {
	apiKeyHeader := p.info.APIKeyHeader
	if apiKeyHeader == "" {
		apiKeyHeader = "Authorization"
	}
	apiKeyPrefix := p.info.APIKeyPrefix
	if apiKeyPrefix == "" && apiKeyHeader == "Authorization" {
		apiKeyPrefix = "Bearer "
	}
	httpReq.Header.Set(apiKeyHeader, apiKeyPrefix+p.apiKey)

	for k, v := range p.info.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
}

// ParseResponse transforms the provider's response into the unified format.
// Usage totals are recomputed from the components.
func (p *Provider) ParseResponse(resp *http.Response) (*types.ChatResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp types.ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if chatResp.Usage != nil {
		chatResp.Usage.Recompute()
	}

	return &chatResp, nil
}

// ParseStreamChunk parses a single SSE line. Keep-alives, event lines, and
// the [DONE] marker yield nil, nil.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[DONE]")) {
		return nil, nil
	}

	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}

	if bytes.Equal(trimmed, []byte("[DONE]")) {
		return nil, nil
	}

	var chunk types.StreamChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		return nil, fmt.Errorf("unmarshal chunk: %w", err)
	}

	return &chunk, nil
}

// MapError converts a provider-specific error response to a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := "unknown error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	providerName := p.info.Name

	switch statusCode {
	case http.StatusUnauthorized:
		return errors.NewAuthenticationError(providerName, "", message)
	case http.StatusTooManyRequests:
		return errors.NewRateLimitError(providerName, "", message)
	case http.StatusBadRequest:
		return errors.NewInvalidRequestError(providerName, "", message)
	case http.StatusNotFound:
		return errors.NewNotFoundError(providerName, "", message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errors.NewTimeoutError(providerName, "", message)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return errors.NewServiceUnavailableError(providerName, "", message)
	default:
		return errors.NewUpstreamError(providerName, "", statusCode, message)
	}
}

// Mapper returns the provider's model id mapper.
func (p *Provider) Mapper() *modelmap.Mapper {
	return p.mapper
}

// BaseURL returns the effective base URL.
func (p *Provider) BaseURL() string {
	return p.baseURL
}
