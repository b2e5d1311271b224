// Package gemini provides the Google Gemini provider adapter. It handles
// request/response transformation between the normalized chat format and
// Gemini's generateContent API, including the out-of-band systemInstruction
// and inline image data.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nebulark/oneapi/internal/modelmap"
	"github.com/nebulark/oneapi/internal/validate"
	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "gemini"

	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultAPIVersion is the default Gemini API version.
	DefaultAPIVersion = "v1beta"
)

// DefaultModelTable maps normalized ids to Gemini model names. Unknown ids
// pass through unchanged.
var DefaultModelTable = map[string]string{
	"gemini/gemini-1.5-pro":   "gemini-1.5-pro",
	"gemini/gemini-1.5-flash": "gemini-1.5-flash",
	"gemini/gemini-2.0-flash": "gemini-2.0-flash",
}

// Provider implements the Google Gemini API adapter.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	headers    map[string]string
	mapper     *modelmap.Mapper
	rules      validate.Rules
}

// New creates a new Gemini provider with the given options.
func New(opts ...Option) *Provider {
	rules := validate.DefaultRules(ProviderName)
	rules.CheckImages = true

	p := &Provider{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		headers:    make(map[string]string),
		rules:      rules,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.mapper == nil {
		p.mapper = modelmap.New(ProviderName, DefaultModelTable, modelmap.Permissive)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
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

	p := New(opts...)
	for k, v := range cfg.Headers {
		p.headers[k] = v
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Capabilities returns the provider's capability table.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Chat:      true,
		Streaming: true,
	}
}

// ToProviderModel maps a normalized id to the Gemini model name.
func (p *Provider) ToProviderModel(model string) (string, error) {
	return p.mapper.ToProviderModel(model)
}

// ToNormalizedModel maps a Gemini model name back to the normalized id.
func (p *Provider) ToNormalizedModel(model string) string {
	return p.mapper.ToNormalizedModel(model)
}

// Mapper exposes the model mapping table for model listing.
func (p *Provider) Mapper() *modelmap.Mapper {
	return p.mapper
}

// ValidateRequest checks Gemini-specific preconditions.
func (p *Provider) ValidateRequest(req *types.ChatRequest) error {
	return validate.Request(p.rules, req)
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// BuildRequest creates an HTTP request for the Gemini API. The API key is
// carried as a query parameter, not a header.
func (p *Provider) BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error) {
	geminiReq, err := p.transformRequest(req)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	action := "generateContent"
	if req.Stream {
		action = "streamGenerateContent"
	}

	base, err := url.Parse(strings.TrimSuffix(p.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base_url: %w", err)
	}
	base.Path = base.Path + "/" + p.apiVersion + "/models/" + url.PathEscape(req.Model) + ":" + action
	q := base.Query()
	q.Set("key", p.apiKey)
	if req.Stream {
		q.Set("alt", "sse")
	}
	base.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (p *Provider) transformRequest(req *types.ChatRequest) (*geminiRequest, error) {
	geminiReq := &geminiRequest{GenerationConfig: &generationConfig{}}
	if req.MaxTokens > 0 {
		geminiReq.GenerationConfig.MaxOutputTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		geminiReq.GenerationConfig.Temperature = req.Temperature
	}
	if req.TopP != nil {
		geminiReq.GenerationConfig.TopP = req.TopP
	}
	if req.TopK != nil {
		geminiReq.GenerationConfig.TopK = req.TopK
	}
	if len(req.Stop) > 0 {
		geminiReq.GenerationConfig.StopSequences = req.Stop
	}

	for i, msg := range req.Messages {
		// Only the first message becomes the out-of-band systemInstruction;
		// later system turns stay in the content list.
		if msg.Role == "system" && i == 0 {
			geminiReq.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: types.ContentText(msg.Content)}},
			}
			continue
		}

		role := msg.Role
		if role == "assistant" {
			role = "model"
		}

		text, parts, err := types.ParseContent(msg.Content)
		if err != nil {
			return nil, err
		}
		if parts == nil {
			geminiReq.Contents = append(geminiReq.Contents, geminiContent{
				Role:  role,
				Parts: []geminiPart{{Text: text}},
			})
			continue
		}

		geminiParts, err := transformParts(parts)
		if err != nil {
			return nil, err
		}
		geminiReq.Contents = append(geminiReq.Contents, geminiContent{
			Role:  role,
			Parts: geminiParts,
		})
	}
	return geminiReq, nil
}

func transformParts(parts []types.ContentPart) ([]geminiPart, error) {
	result := make([]geminiPart, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case "text":
			result = append(result, geminiPart{Text: part.Text})
		case "image_url":
			if part.ImageURL == nil {
				return nil, fmt.Errorf("image_url part has no url")
			}
			u := part.ImageURL.URL
			if types.IsDataURI(u) {
				mediaType, data, ok := types.ParseDataURI(u)
				if !ok {
					return nil, fmt.Errorf("malformed base64 image data URI")
				}
				result = append(result, geminiPart{
					InlineData: &inlineData{MimeType: mediaType, Data: data},
				})
			} else {
				result = append(result, geminiPart{
					FileData: &fileData{FileURI: u},
				})
			}
		default:
			return nil, fmt.Errorf("unsupported content part type %q", part.Type)
		}
	}
	return result, nil
}

// ParseResponse transforms a Gemini response into the unified format.
// The vendor finish reason is preserved verbatim.
func (p *Provider) ParseResponse(resp *http.Response) (*types.ChatResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return transformResponse(&geminiResp), nil
}

func transformResponse(resp *geminiResponse) *types.ChatResponse {
	choices := make([]types.Choice, 0, len(resp.Candidates))
	for i, c := range resp.Candidates {
		var text strings.Builder
		for _, part := range c.Content.Parts {
			text.WriteString(part.Text)
		}
		choices = append(choices, types.Choice{
			Index: i,
			Message: types.ChatMessage{
				Role:    "assistant",
				Content: types.TextContent(text.String()),
			},
			FinishReason: c.FinishReason,
		})
	}
	chatResp := &types.ChatResponse{Object: "chat.completion", Choices: choices}
	if resp.UsageMetadata != nil {
		chatResp.Usage = &types.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
		chatResp.Usage.Recompute()
	}
	return chatResp
}

// ParseStreamChunk parses one streaming line. Gemini streams JSON objects,
// optionally behind an SSE data prefix when alt=sse is requested.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}
	// Array framing from the non-SSE JSON stream.
	trimmed = bytes.Trim(trimmed, ",[]")
	if len(trimmed) == 0 {
		return nil, nil
	}

	var resp geminiResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal chunk: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, nil
	}

	c := resp.Candidates[0]
	var text strings.Builder
	for _, part := range c.Content.Parts {
		text.WriteString(part.Text)
	}
	chunk := &types.StreamChunk{
		Object: "chat.completion.chunk",
		Choices: []types.StreamChoice{{
			Index: 0,
			Delta: types.StreamDelta{Content: text.String()},
		}},
	}
	if c.FinishReason != "" {
		chunk.Choices[0].FinishReason = c.FinishReason
	}
	return chunk, nil
}

// MapError converts a Gemini error response to a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := "unknown error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuthenticationError(ProviderName, "", message)
	case http.StatusTooManyRequests:
		return errors.NewRateLimitError(ProviderName, "", message)
	case http.StatusBadRequest:
		return errors.NewInvalidRequestError(ProviderName, "", message)
	case http.StatusNotFound:
		return errors.NewNotFoundError(ProviderName, "", message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return errors.NewTimeoutError(ProviderName, "", message)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return errors.NewServiceUnavailableError(ProviderName, "", message)
	default:
		return errors.NewUpstreamError(ProviderName, "", statusCode, message)
	}
}
