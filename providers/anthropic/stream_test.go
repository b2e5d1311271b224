package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulark/oneapi/pkg/types"
)

// feed runs the lines through one parser and returns the emitted fragments.
func feed(t *testing.T, lines []string) []*types.StreamChunk {
	t.Helper()
	p := New(WithAPIKey("sk-test"))
	parser := p.NewStreamParser()

	var chunks []*types.StreamChunk
	for _, line := range lines {
		chunk, err := parser.Parse([]byte(line))
		require.NoError(t, err, "line %q", line)
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func TestStreamFragmentCount(t *testing.T) {
	chunks := feed(t, []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_01","model":"claude-3-opus-20240229","usage":{"input_tokens":9}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start"}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"lo "}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"there"}}`,
		`data: {"type":"content_block_stop"}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`,
		`data: {"type":"message_stop"}`,
	})

	// Role fragment, three content deltas, one terminal fragment.
	require.Len(t, chunks, 5)

	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)

	var text string
	for _, c := range chunks[1:4] {
		assert.Empty(t, c.Choices[0].FinishReason)
		text += c.Choices[0].Delta.Content
	}
	assert.Equal(t, "Hello there", text)

	terminal := chunks[4]
	assert.Equal(t, "end_turn", terminal.Choices[0].FinishReason)
	assert.Empty(t, terminal.Choices[0].Delta.Content)
}

func TestTerminalFragmentCarriesUsage(t *testing.T) {
	chunks := feed(t, []string{
		`data: {"type":"message_start","message":{"id":"m","usage":{"input_tokens":10}}}`,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"x"}}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"max_tokens"},"usage":{"output_tokens":7}}`,
		`data: {"type":"message_stop"}`,
	})

	terminal := chunks[len(chunks)-1]
	assert.Equal(t, "max_tokens", terminal.Choices[0].FinishReason, "vendor stop reason is verbatim")
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 10, terminal.Usage.PromptTokens)
	assert.Equal(t, 7, terminal.Usage.CompletionTokens)
	assert.Equal(t, 17, terminal.Usage.TotalTokens)
}

func TestMessageStopWithoutDeltaDefaultsEndTurn(t *testing.T) {
	chunks := feed(t, []string{
		`data: {"type":"message_stop"}`,
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "end_turn", chunks[0].Choices[0].FinishReason)
}

func TestNonContentLinesYieldNothing(t *testing.T) {
	p := New(WithAPIKey("sk-test"))
	parser := p.NewStreamParser()

	for _, line := range []string{
		``,
		`event: ping`,
		`data: {"type":"ping"}`,
		`data: [DONE]`,
		`data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`,
	} {
		chunk, err := parser.Parse([]byte(line))
		assert.NoError(t, err, "line %q", line)
		assert.Nil(t, chunk, "line %q", line)
	}
}

func TestMalformedLineReturnsError(t *testing.T) {
	p := New(WithAPIKey("sk-test"))
	parser := p.NewStreamParser()

	_, err := parser.Parse([]byte(`data: {not json`))
	assert.Error(t, err)
}

func TestParsersDoNotShareState(t *testing.T) {
	p := New(WithAPIKey("sk-test"))

	first := p.NewStreamParser()
	_, err := first.Parse([]byte(`data: {"type":"message_delta","delta":{"stop_reason":"max_tokens"}}`))
	require.NoError(t, err)

	second := p.NewStreamParser()
	chunk, err := second.Parse([]byte(`data: {"type":"message_stop"}`))
	require.NoError(t, err)
	assert.Equal(t, "end_turn", chunk.Choices[0].FinishReason)
}
