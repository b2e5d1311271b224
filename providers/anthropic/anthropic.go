// Package anthropic provides the Anthropic Claude provider adapter. It
// handles request/response transformation between the normalized chat format
// and Anthropic's Messages API, including multimodal content and the
// out-of-band system prompt.
package anthropic

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

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "anthropic"

	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the default Anthropic API version.
	DefaultAPIVersion = "2023-06-01"

	// DefaultMaxTokens is applied at dispatch when the request leaves
	// max_tokens unset. The Messages API requires the field.
	DefaultMaxTokens = 1024

	// DefaultMaxMessages bounds the turn list length.
	DefaultMaxMessages = 50
)

// DefaultModelTable maps normalized ids to dated Anthropic model names.
// Ids absent from the table are rejected; Anthropic model names are dated
// and an unmapped id would silently hit a nonexistent model.
var DefaultModelTable = map[string]string{
	"anthropic/claude-3-5-sonnet": "claude-3-5-sonnet-20241022",
	"anthropic/claude-3-5-haiku":  "claude-3-5-haiku-20241022",
	"anthropic/claude-3-opus":     "claude-3-opus-20240229",
	"anthropic/claude-3-sonnet":   "claude-3-sonnet-20240229",
	"anthropic/claude-3-haiku":    "claude-3-haiku-20240307",
}

// Provider implements the Anthropic Claude API adapter.
type Provider struct {
	apiKey     string
	baseURL    string
	apiVersion string
	headers    map[string]string
	mapper     *modelmap.Mapper
	rules      validate.Rules
}

// New creates a new Anthropic provider with the given options.
func New(opts ...Option) *Provider {
	rules := validate.DefaultRules(ProviderName)
	rules.MaxMessages = DefaultMaxMessages
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
		p.mapper = modelmap.New(ProviderName, DefaultModelTable, modelmap.Strict)
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
func (p *Provider) Name() string {
	return ProviderName
}

// Capabilities returns the provider's capability table.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Chat:      true,
		Streaming: true,
	}
}

// ToProviderModel maps a normalized id to the dated Anthropic model name.
// Unknown ids are rejected.
func (p *Provider) ToProviderModel(model string) (string, error) {
	return p.mapper.ToProviderModel(model)
}

// ToNormalizedModel maps an Anthropic model name back to the normalized id.
func (p *Provider) ToNormalizedModel(model string) string {
	return p.mapper.ToNormalizedModel(model)
}

// Mapper exposes the model mapping table for model listing.
func (p *Provider) Mapper() *modelmap.Mapper {
	return p.mapper
}

// ValidateRequest checks Anthropic-specific preconditions, aggregating all
// violations into a single error.
func (p *Provider) ValidateRequest(req *types.ChatRequest) error {
	return validate.Request(p.rules, req)
}

// anthropicRequest represents the Anthropic Messages API request format.
type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	Metadata      *metadata          `json:"metadata,omitempty"`
	Tools         []anthropicTool    `json:"tools,omitempty"`
	ToolChoice    *toolChoice        `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type      string       `json:"type"`
	Text      string       `json:"text,omitempty"`
	Source    *imageSource `json:"source,omitempty"`
	ID        string       `json:"id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Input     any          `json:"input,omitempty"`
	ToolUseID string       `json:"tool_use_id,omitempty"`
	Content   string       `json:"content,omitempty"`
}

// imageSource is the media-attachment shape. Base64 data URIs and plain
// URLs use different source types.
type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type metadata struct {
	UserID string `json:"user_id,omitempty"`
}

type anthropicTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema inputSchema `json:"input_schema"`
}

type inputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// anthropicResponse represents the Anthropic Messages API response format.
type anthropicResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []contentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        anthropicUsage `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// BuildRequest creates an HTTP request for the Anthropic API.
func (p *Provider) BuildRequest(ctx context.Context, req *types.ChatRequest) (*http.Request, error) {
	anthropicReq, err := p.transformRequest(req)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)

	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

func (p *Provider) transformRequest(req *types.ChatRequest) (*anthropicRequest, error) {
	anthropicReq := &anthropicRequest{
		Model:     req.Model,
		MaxTokens: DefaultMaxTokens,
		Stream:    req.Stream,
	}

	if req.MaxTokens > 0 {
		anthropicReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		anthropicReq.Temperature = req.Temperature
	}
	if req.TopP != nil {
		anthropicReq.TopP = req.TopP
	}
	if req.TopK != nil {
		anthropicReq.TopK = req.TopK
	}
	if len(req.Stop) > 0 {
		anthropicReq.StopSequences = req.Stop
	}
	if req.User != "" {
		anthropicReq.Metadata = &metadata{UserID: req.User}
	}

	messages, systemPrompt, err := transformMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	anthropicReq.Messages = messages
	anthropicReq.System = systemPrompt

	if len(req.Tools) > 0 {
		anthropicReq.Tools = transformTools(req.Tools)
	}

	if len(req.ToolChoice) > 0 {
		tc, err := transformToolChoice(req.ToolChoice)
		if err == nil && tc != nil {
			anthropicReq.ToolChoice = tc
		}
	}

	return anthropicReq, nil
}

// transformMessages splits the conversation into the out-of-band system
// prompt and the remaining turn list. Only the first message is treated as
// the system prompt; a system-role message appearing later in the list is
// passed through as a regular turn.
func transformMessages(messages []types.ChatMessage) ([]anthropicMessage, string, error) {
	var result []anthropicMessage
	var systemPrompt string

	for i, msg := range messages {
		if msg.Role == "system" && i == 0 {
			// A content-part array is forwarded as its JSON text, not
			// flattened to the concatenated fragments.
			if _, parts, err := types.ParseContent(msg.Content); err == nil && parts != nil {
				systemPrompt = string(msg.Content)
			} else {
				systemPrompt = types.ContentText(msg.Content)
			}
			continue
		}

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			var blocks []contentBlock
			for _, tc := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
					input = tc.Function.Arguments
				}
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			result = append(result, anthropicMessage{Role: "assistant", Content: blocks})
			continue
		}

		if msg.Role == "tool" {
			result = append(result, anthropicMessage{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   types.ContentText(msg.Content),
				}},
			})
			continue
		}

		text, parts, err := types.ParseContent(msg.Content)
		if err != nil {
			return nil, "", err
		}
		if parts == nil {
			result = append(result, anthropicMessage{Role: msg.Role, Content: text})
			continue
		}

		blocks, err := transformParts(parts)
		if err != nil {
			return nil, "", err
		}
		result = append(result, anthropicMessage{Role: msg.Role, Content: blocks})
	}

	return result, systemPrompt, nil
}

// transformParts maps multimodal content parts to Anthropic content blocks.
// Image parts branch on base64 data URIs vs plain URLs.
func transformParts(parts []types.ContentPart) ([]contentBlock, error) {
	blocks := make([]contentBlock, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case "text":
			blocks = append(blocks, contentBlock{Type: "text", Text: part.Text})
		case "image_url":
			if part.ImageURL == nil {
				return nil, fmt.Errorf("image_url part has no url")
			}
			src, err := transformImage(part.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, contentBlock{Type: "image", Source: src})
		default:
			return nil, fmt.Errorf("unsupported content part type %q", part.Type)
		}
	}
	return blocks, nil
}

func transformImage(url string) (*imageSource, error) {
	if types.IsDataURI(url) {
		mediaType, data, ok := types.ParseDataURI(url)
		if !ok {
			return nil, fmt.Errorf("malformed base64 image data URI")
		}
		return &imageSource{Type: "base64", MediaType: mediaType, Data: data}, nil
	}
	return &imageSource{Type: "url", URL: url}, nil
}

func transformTools(tools []types.Tool) []anthropicTool {
	result := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		if tool.Type != "function" {
			continue
		}

		var params map[string]any
		if len(tool.Function.Parameters) > 0 {
			if err := json.Unmarshal(tool.Function.Parameters, &params); err != nil {
				params = make(map[string]any)
			}
		}

		schema := inputSchema{Type: "object", Properties: make(map[string]any)}
		if props, ok := params["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		if required, ok := params["required"].([]any); ok {
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}

		result = append(result, anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: schema,
		})
	}
	return result
}

func transformToolChoice(raw json.RawMessage) (*toolChoice, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		switch str {
		case "auto":
			return &toolChoice{Type: "auto"}, nil
		case "required":
			return &toolChoice{Type: "any"}, nil
		case "none":
			return &toolChoice{Type: "none"}, nil
		}
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	if fn, ok := obj["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok {
			return &toolChoice{Type: "tool", Name: name}, nil
		}
	}

	return nil, nil
}

// ParseResponse transforms an Anthropic response into the unified format.
// The vendor stop reason is preserved verbatim and usage totals recomputed.
func (p *Provider) ParseResponse(resp *http.Response) (*types.ChatResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return transformResponse(&anthropicResp), nil
}

func transformResponse(resp *anthropicResponse) *types.ChatResponse {
	var textContent strings.Builder
	var toolCalls []types.ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textContent.WriteString(block.Text)
		case "tool_use":
			inputJSON, err := json.Marshal(block.Input)
			if err != nil {
				inputJSON = []byte("{}")
			}
			toolCalls = append(toolCalls, types.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: types.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(inputJSON),
				},
			})
		}
	}

	message := types.ChatMessage{
		Role:    "assistant",
		Content: types.TextContent(textContent.String()),
	}
	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
	}

	usage := &types.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	usage.Recompute()

	return &types.ChatResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      message,
			FinishReason: resp.StopReason,
		}},
		Usage: usage,
	}
}

// MapError converts an Anthropic error response to a standardized error.
func (p *Provider) MapError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	message := "unknown error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized:
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
