// Package tokenizer provides token counting helpers for request prechecks.
// Estimates feed the rate limiter's capacity wait; they do not need to be
// exact, only stable and conservative.
package tokenizer

import (
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkoukk/tiktoken-go"

	"github.com/nebulark/oneapi/pkg/types"
)

var (
	encodingCache sync.Map
	defaultOnce   sync.Once
	defaultEnc    *tiktoken.Tiktoken
)

// charsPerToken refines the character-length heuristic for model families
// tiktoken has no encoding for. Values are approximate characters per token.
var charsPerToken = map[string]float64{
	"claude":  3.5,
	"gemini":  4.0,
	"llama":   3.8,
	"mistral": 3.8,
}

// specialTokenPattern matches control-token markers that cost a full token
// each regardless of their character length.
var specialTokenPattern = regexp.MustCompile(`<\|[a-z_]+\|>`)

// CountTextTokens returns the token count for the given text.
// It uses tiktoken for models it has an encoding for, otherwise a per-family
// chars-per-token heuristic with a bonus for special-token markers, falling
// back to a conservative len/4 estimate.
func CountTextTokens(model, text string) int {
	if text == "" {
		return 0
	}

	base := normalizeModelName(model)
	if enc := getEncoding(base); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}

	ratio := 4.0
	for family, r := range charsPerToken {
		if strings.Contains(base, family) {
			ratio = r
			break
		}
	}

	count := int(float64(len(text)) / ratio)
	count += len(specialTokenPattern.FindAllString(text, -1))
	if count < 1 {
		count = 1
	}
	return count
}

// EstimatePromptTokens estimates prompt tokens for a chat request.
// It counts message content and adds a small per-message overhead matching
// common chat formats.
func EstimatePromptTokens(model string, req *types.ChatRequest) int {
	if req == nil {
		return 0
	}

	total := 0
	for _, msg := range req.Messages {
		total += estimateMessageTokens(model, msg)
	}

	if len(req.Tools) > 0 {
		if toolsJSON, err := json.Marshal(req.Tools); err == nil {
			total += CountTextTokens(model, string(toolsJSON))
		}
	}

	if len(req.ToolChoice) > 0 {
		total += CountTextTokens(model, string(req.ToolChoice))
	}

	// Reply primer overhead used by common chat formats.
	total += 3
	return total
}

func estimateMessageTokens(model string, msg types.ChatMessage) int {
	total := 0
	total += CountTextTokens(model, msg.Role)
	total += CountTextTokens(model, msg.Name)
	total += CountTextTokens(model, types.ContentText(msg.Content))
	total += toolCallsTokens(model, msg.ToolCalls)
	total += CountTextTokens(model, msg.ToolCallID)

	// Per-message overhead for role/formatting tokens.
	total += 2
	return total
}

func toolCallsTokens(model string, calls []types.ToolCall) int {
	if len(calls) == 0 {
		return 0
	}
	total := 0
	for _, call := range calls {
		total += CountTextTokens(model, call.ID)
		total += CountTextTokens(model, call.Function.Name)
		total += CountTextTokens(model, call.Function.Arguments)
	}
	return total
}

func getEncoding(model string) *tiktoken.Tiktoken {
	// Only OpenAI-family models have real encodings; everything else uses
	// the heuristic path so we don't silently apply cl100k to Claude text.
	if !strings.HasPrefix(model, "gpt-") && !strings.HasPrefix(model, "o1") &&
		!strings.HasPrefix(model, "text-embedding") {
		return nil
	}

	if cached, ok := encodingCache.Load(model); ok {
		if enc, ok := cached.(*tiktoken.Tiktoken); ok {
			return enc
		}
		return getDefaultEncoding()
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = getDefaultEncoding()
	}
	if enc != nil {
		encodingCache.Store(model, enc)
	}
	return enc
}

func getDefaultEncoding() *tiktoken.Tiktoken {
	defaultOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			defaultEnc = enc
		}
	})
	return defaultEnc
}

func normalizeModelName(model string) string {
	model = types.BaseModel(model)
	if idx := strings.LastIndex(model, "/"); idx >= 0 && idx+1 < len(model) {
		return model[idx+1:]
	}
	return model
}
