package anthropic

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/types"
)

func buildBody(t *testing.T, req *types.ChatRequest) anthropicRequest {
	t.Helper()
	p := New(WithAPIKey("sk-test"))

	httpReq, err := p.BuildRequest(context.Background(), req)
	require.NoError(t, err)

	body, err := io.ReadAll(httpReq.Body)
	require.NoError(t, err)

	var parsed anthropicRequest
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed
}

func TestBuildRequestHeaders(t *testing.T) {
	p := New(WithAPIKey("sk-test"), WithHeader("X-Custom", "yes"))

	httpReq, err := p.BuildRequest(context.Background(), &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []types.ChatMessage{{Role: "user", Content: types.TextContent("hi")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", httpReq.URL.String())
	assert.Equal(t, "sk-test", httpReq.Header.Get("x-api-key"))
	assert.Equal(t, DefaultAPIVersion, httpReq.Header.Get("anthropic-version"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "yes", httpReq.Header.Get("X-Custom"))
}

func TestFirstSystemMessageExtracted(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model: "claude-3-opus-20240229",
		Messages: []types.ChatMessage{
			{Role: "system", Content: types.TextContent("be terse")},
			{Role: "user", Content: types.TextContent("hi")},
		},
	})

	assert.Equal(t, "be terse", parsed.System)
	require.Len(t, parsed.Messages, 1)
	assert.Equal(t, "user", parsed.Messages[0].Role)
}

func TestSystemMessagePartsKeptAsJSON(t *testing.T) {
	systemParts := json.RawMessage(`[{"type":"text","text":"A"},{"type":"text","text":"B"}]`)
	parsed := buildBody(t, &types.ChatRequest{
		Model: "claude-3-opus-20240229",
		Messages: []types.ChatMessage{
			{Role: "system", Content: systemParts},
			{Role: "user", Content: types.TextContent("hi")},
		},
	})

	assert.JSONEq(t, string(systemParts), parsed.System,
		"a content-part system prompt survives as JSON text")
}

func TestLaterSystemMessagePassesThrough(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model: "claude-3-opus-20240229",
		Messages: []types.ChatMessage{
			{Role: "user", Content: types.TextContent("hi")},
			{Role: "system", Content: types.TextContent("mid-conversation instruction")},
		},
	})

	assert.Empty(t, parsed.System, "only a leading system message is hoisted")
	require.Len(t, parsed.Messages, 2)
	assert.Equal(t, "system", parsed.Messages[1].Role)
}

func TestDefaultMaxTokensApplied(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []types.ChatMessage{{Role: "user", Content: types.TextContent("hi")}},
	})
	assert.Equal(t, DefaultMaxTokens, parsed.MaxTokens)

	parsed = buildBody(t, &types.ChatRequest{
		Model:     "claude-3-opus-20240229",
		MaxTokens: 77,
		Messages:  []types.ChatMessage{{Role: "user", Content: types.TextContent("hi")}},
	})
	assert.Equal(t, 77, parsed.MaxTokens)
}

func TestStopBecomesStopSequences(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Stop:     []string{"END"},
		User:     "u-1",
		Messages: []types.ChatMessage{{Role: "user", Content: types.TextContent("hi")}},
	})
	assert.Equal(t, []string{"END"}, parsed.StopSequences)
	require.NotNil(t, parsed.Metadata)
	assert.Equal(t, "u-1", parsed.Metadata.UserID)
}

func multimodalMessage(url string) types.ChatMessage {
	parts := []types.ContentPart{
		{Type: "text", Text: "what is this"},
		{Type: "image_url", ImageURL: &types.ImageURL{URL: url}},
	}
	raw, _ := json.Marshal(parts)
	return types.ChatMessage{Role: "user", Content: raw}
}

func TestImageDataURIBecomesBase64Source(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []types.ChatMessage{multimodalMessage("data:image/png;base64,QUJD")},
	})

	require.Len(t, parsed.Messages, 1)
	raw, _ := json.Marshal(parsed.Messages[0].Content)
	var blocks []contentBlock
	require.NoError(t, json.Unmarshal(raw, &blocks))
	require.Len(t, blocks, 2)

	assert.Equal(t, "image", blocks[1].Type)
	require.NotNil(t, blocks[1].Source)
	assert.Equal(t, "base64", blocks[1].Source.Type)
	assert.Equal(t, "image/png", blocks[1].Source.MediaType)
	assert.Equal(t, "QUJD", blocks[1].Source.Data)
}

func TestImageURLBecomesURLSource(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []types.ChatMessage{multimodalMessage("https://example.com/a.png")},
	})

	raw, _ := json.Marshal(parsed.Messages[0].Content)
	var blocks []contentBlock
	require.NoError(t, json.Unmarshal(raw, &blocks))
	require.NotNil(t, blocks[1].Source)
	assert.Equal(t, "url", blocks[1].Source.Type)
	assert.Equal(t, "https://example.com/a.png", blocks[1].Source.URL)
}

func TestMalformedDataURIRejected(t *testing.T) {
	p := New(WithAPIKey("sk-test"))
	_, err := p.BuildRequest(context.Background(), &types.ChatRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []types.ChatMessage{multimodalMessage("data:image/png,missing-marker")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestToolRoundTrip(t *testing.T) {
	parsed := buildBody(t, &types.ChatRequest{
		Model: "claude-3-opus-20240229",
		Messages: []types.ChatMessage{
			{Role: "user", Content: types.TextContent("weather?")},
			{Role: "assistant", ToolCalls: []types.ToolCall{{
				ID:   "call_1",
				Type: "function",
				Function: types.ToolCallFunction{
					Name:      "get_weather",
					Arguments: `{"city":"Paris"}`,
				},
			}}},
			{Role: "tool", ToolCallID: "call_1", Content: types.TextContent(`{"temp":21}`)},
		},
		Tools: []types.Tool{{
			Type: "function",
			Function: types.ToolFunction{
				Name:       "get_weather",
				Parameters: []byte(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
			},
		}},
		ToolChoice: []byte(`"required"`),
	})

	require.Len(t, parsed.Tools, 1)
	assert.Equal(t, "get_weather", parsed.Tools[0].Name)
	assert.Equal(t, []string{"city"}, parsed.Tools[0].InputSchema.Required)
	require.NotNil(t, parsed.ToolChoice)
	assert.Equal(t, "any", parsed.ToolChoice.Type)
	require.Len(t, parsed.Messages, 3)
}

func TestParseResponse(t *testing.T) {
	body := `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-opus-20240229",
		"content": [{"type": "text", "text": "Hello!"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 4}
	}`
	p := New(WithAPIKey("sk-test"))

	resp, err := p.ParseResponse(&http.Response{Body: io.NopCloser(strings.NewReader(body))})
	require.NoError(t, err)

	assert.Equal(t, "msg_01", resp.ID)
	assert.Equal(t, "claude-3-opus-20240229", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Hello!", types.ContentText(resp.Choices[0].Message.Content))
	assert.Equal(t, "end_turn", resp.Choices[0].FinishReason, "vendor stop reason is verbatim")
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestParseResponseToolUse(t *testing.T) {
	body := `{
		"id": "msg_02",
		"model": "claude-3-opus-20240229",
		"content": [
			{"type": "text", "text": "Checking."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "Paris"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
	p := New(WithAPIKey("sk-test"))

	resp, err := p.ParseResponse(&http.Response{Body: io.NopCloser(strings.NewReader(body))})
	require.NoError(t, err)

	assert.Equal(t, "tool_use", resp.Choices[0].FinishReason)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	tc := resp.Choices[0].Message.ToolCalls[0]
	assert.Equal(t, "toolu_1", tc.ID)
	assert.Equal(t, "get_weather", tc.Function.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, tc.Function.Arguments)
}

func TestModelMappingStrict(t *testing.T) {
	p := New(WithAPIKey("sk-test"))

	native, err := p.ToProviderModel("anthropic/claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-20241022", native)

	_, err = p.ToProviderModel("anthropic/claude-unknown")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeUnsupportedModel))
}

func TestValidateRequestMessageBound(t *testing.T) {
	p := New(WithAPIKey("sk-test"))

	msgs := make([]types.ChatMessage, DefaultMaxMessages+1)
	for i := range msgs {
		msgs[i] = types.ChatMessage{Role: "user", Content: types.TextContent("x")}
	}
	err := p.ValidateRequest(&types.ChatRequest{Model: "anthropic/claude-3-opus", Messages: msgs})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeValidation))
}

func TestMapError(t *testing.T) {
	p := New(WithAPIKey("sk-test"))
	body := []byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`)

	tests := []struct {
		status    int
		errType   string
		retryable bool
	}{
		{http.StatusUnauthorized, errors.TypeAuthentication, false},
		{http.StatusTooManyRequests, errors.TypeRateLimit, true},
		{http.StatusBadRequest, errors.TypeInvalidRequest, false},
		{http.StatusServiceUnavailable, errors.TypeServiceUnavailable, true},
		{http.StatusInternalServerError, errors.TypeInternalError, true},
		{520, errors.TypeInternalError, true},
		{http.StatusTeapot, errors.TypeInternalError, false},
	}
	for _, tt := range tests {
		err := p.MapError(tt.status, body)
		apiErr, ok := errors.AsAPIError(err)
		require.True(t, ok, "status %d", tt.status)
		assert.Equal(t, tt.errType, apiErr.Type)
		assert.Equal(t, tt.retryable, apiErr.Retryable)
		assert.Equal(t, "slow down", apiErr.Message)
	}
}
