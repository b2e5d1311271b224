package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nebulark/oneapi/pkg/types"
)

func TestCountTextTokensEmpty(t *testing.T) {
	assert.Zero(t, CountTextTokens("anthropic/claude-3-opus", ""))
}

func TestCountTextTokensHeuristic(t *testing.T) {
	text := strings.Repeat("word ", 100) // 500 chars

	claude := CountTextTokens("anthropic/claude-3-opus", text)
	gemini := CountTextTokens("gemini/gemini-1.5-pro", text)

	// Claude's chars-per-token ratio is lower, so the estimate is higher.
	assert.Greater(t, claude, gemini)
	assert.InDelta(t, 500/3.5, claude, 2)
	assert.InDelta(t, 500/4.0, gemini, 2)
}

func TestCountTextTokensMinimumOne(t *testing.T) {
	assert.Equal(t, 1, CountTextTokens("anthropic/claude-3-opus", "a"))
}

func TestSpecialTokenMarkers(t *testing.T) {
	base := CountTextTokens("llama-3", strings.Repeat("x", 40))
	withMarkers := CountTextTokens("llama-3", strings.Repeat("x", 40)+"<|eot_id|><|eot_id|>")
	assert.GreaterOrEqual(t, withMarkers-base, 2)
}

func TestThinkingSuffixIgnoredForCounting(t *testing.T) {
	text := strings.Repeat("hello ", 50)
	assert.Equal(t,
		CountTextTokens("anthropic/claude-3-opus", text),
		CountTextTokens("anthropic/claude-3-opus:thinking", text))
}

func TestEstimatePromptTokens(t *testing.T) {
	req := &types.ChatRequest{
		Model: "anthropic/claude-3-opus",
		Messages: []types.ChatMessage{
			{Role: "system", Content: types.TextContent("You are helpful.")},
			{Role: "user", Content: types.TextContent("What is the capital of France?")},
		},
	}

	total := EstimatePromptTokens("anthropic/claude-3-opus", req)
	assert.Greater(t, total, 5)
	assert.Less(t, total, 100)
}

func TestEstimatePromptTokensNil(t *testing.T) {
	assert.Zero(t, EstimatePromptTokens("m", nil))
}

func TestEstimateGrowsWithMessages(t *testing.T) {
	short := &types.ChatRequest{Messages: []types.ChatMessage{
		{Role: "user", Content: types.TextContent("hi")},
	}}
	long := &types.ChatRequest{Messages: []types.ChatMessage{
		{Role: "user", Content: types.TextContent("hi")},
		{Role: "assistant", Content: types.TextContent("hello there, how can I help?")},
		{Role: "user", Content: types.TextContent("tell me about tokenizers")},
	}}

	assert.Greater(t,
		EstimatePromptTokens("claude-3", long),
		EstimatePromptTokens("claude-3", short))
}

func TestEstimateIncludesTools(t *testing.T) {
	base := &types.ChatRequest{Messages: []types.ChatMessage{
		{Role: "user", Content: types.TextContent("hi")},
	}}
	withTools := &types.ChatRequest{
		Messages: base.Messages,
		Tools: []types.Tool{{
			Type: "function",
			Function: types.ToolFunction{
				Name:        "get_weather",
				Description: "Returns the current weather for a location",
			},
		}},
	}

	assert.Greater(t,
		EstimatePromptTokens("claude-3", withTools),
		EstimatePromptTokens("claude-3", base))
}

func TestMultimodalCountsTextPartsOnly(t *testing.T) {
	content := []byte(`[{"type":"text","text":"describe this"},` +
		`{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]`)
	textOnly := []byte(`"describe this"`)

	multimodal := EstimatePromptTokens("claude-3", &types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: content}},
	})
	plain := EstimatePromptTokens("claude-3", &types.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: textOnly}},
	})

	assert.Equal(t, plain, multimodal, "image parts contribute no text tokens")
}
