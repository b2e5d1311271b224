package anthropic

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/nebulark/oneapi/pkg/provider"
	"github.com/nebulark/oneapi/pkg/types"
)

// streamParser consumes Anthropic SSE events for one stream. It carries the
// stop reason from message_delta to message_stop so the terminal fragment
// emitted at message_stop carries the vendor's finish reason verbatim.
type streamParser struct {
	stopReason   string
	outputTokens int
	inputTokens  int
}

// NewStreamParser returns a fresh parser for one streaming response.
func (p *Provider) NewStreamParser() provider.StreamParser {
	return &streamParser{}
}

// ParseStreamChunk parses a single line without cross-line state. Streaming
// callers should use NewStreamParser instead; this path cannot attach the
// recorded stop reason to the terminal fragment.
func (p *Provider) ParseStreamChunk(data []byte) (*types.StreamChunk, error) {
	return (&streamParser{}).Parse(data)
}

// streamEvent covers every Anthropic stream event shape we consume.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Parse handles one SSE line. Event lines, keep-alives, and bookkeeping
// events yield nil, nil; message_stop yields the terminal fragment.
func (sp *streamParser) Parse(data []byte) (*types.StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.HasPrefix(trimmed, []byte("event:")) {
		return nil, nil
	}

	if bytes.HasPrefix(trimmed, []byte("data: ")) {
		trimmed = bytes.TrimPrefix(trimmed, []byte("data: "))
	}

	if bytes.Equal(trimmed, []byte("[DONE]")) {
		return nil, nil
	}

	var event streamEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}

	switch event.Type {
	case "message_start":
		sp.inputTokens = event.Message.Usage.InputTokens
		return &types.StreamChunk{
			ID:     event.Message.ID,
			Object: "chat.completion.chunk",
			Model:  event.Message.Model,
			Choices: []types.StreamChoice{{
				Index: 0,
				Delta: types.StreamDelta{Role: "assistant"},
			}},
		}, nil

	case "content_block_delta":
		if event.Delta.Type != "text_delta" {
			return nil, nil
		}
		return &types.StreamChunk{
			Object: "chat.completion.chunk",
			Choices: []types.StreamChoice{{
				Index: 0,
				Delta: types.StreamDelta{Content: event.Delta.Text},
			}},
		}, nil

	case "message_delta":
		// Records the stop reason; the terminal fragment is emitted at
		// message_stop so content deltas and the finish marker stay ordered.
		if event.Delta.StopReason != "" {
			sp.stopReason = event.Delta.StopReason
		}
		if event.Usage.OutputTokens > 0 {
			sp.outputTokens = event.Usage.OutputTokens
		}
		return nil, nil

	case "message_stop":
		finishReason := sp.stopReason
		if finishReason == "" {
			finishReason = "end_turn"
		}
		chunk := &types.StreamChunk{
			Object: "chat.completion.chunk",
			Choices: []types.StreamChoice{{
				Index:        0,
				FinishReason: finishReason,
			}},
		}
		if sp.inputTokens > 0 || sp.outputTokens > 0 {
			usage := &types.Usage{
				PromptTokens:     sp.inputTokens,
				CompletionTokens: sp.outputTokens,
			}
			usage.Recompute()
			chunk.Usage = usage
		}
		return chunk, nil
	}

	return nil, nil
}
