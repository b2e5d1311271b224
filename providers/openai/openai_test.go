package openai

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nebulark/oneapi/pkg/types"
	"github.com/nebulark/oneapi/providers/openailike"
)

func TestDefaults(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	assert.Equal(t, ProviderName, p.Name())
	caps := p.Capabilities()
	assert.True(t, caps.Chat)
	assert.True(t, caps.Streaming)
	assert.True(t, caps.Embeddings)
	assert.True(t, caps.Images)
	assert.True(t, caps.Audio)
}

func TestChatRequestTarget(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	httpReq, err := p.BuildRequest(context.Background(), &types.ChatRequest{
		Model:    "gpt-4o",
		Messages: []types.ChatMessage{{Role: "user", Content: types.TextContent("hi")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", httpReq.URL.String())
	assert.Equal(t, "Bearer sk-test", httpReq.Header.Get("Authorization"))
}

func TestModelTable(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	native, err := p.ToProviderModel("openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", native)
	assert.Equal(t, "openai/gpt-4o", p.ToNormalizedModel("gpt-4o"))
}

func TestBuildImageRequest(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	httpReq, err := p.BuildImageRequest(context.Background(), &types.ImageRequest{
		Model:  "dall-e-3",
		Prompt: "a lighthouse at dusk",
		Size:   "1024x1024",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/images/generations", httpReq.URL.String())
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer sk-test", httpReq.Header.Get("Authorization"))

	body, _ := io.ReadAll(httpReq.Body)
	assert.Contains(t, string(body), `"a lighthouse at dusk"`)
}

func TestBuildImageRequestRequiresPrompt(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))
	_, err := p.BuildImageRequest(context.Background(), &types.ImageRequest{Model: "dall-e-3"})
	assert.Error(t, err)
}

func TestParseImageResponse(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))
	body := `{"created": 1700000000, "data": [{"url": "https://img.example.com/1.png", "revised_prompt": "A lighthouse"}]}`

	resp, err := p.ParseImageResponse(&http.Response{Body: io.NopCloser(strings.NewReader(body))})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://img.example.com/1.png", resp.Data[0].URL)
}

func TestBuildTranscriptionRequest(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))
	temp := 0.2

	httpReq, err := p.BuildTranscriptionRequest(context.Background(), &types.TranscriptionRequest{
		Model:       "whisper-1",
		FileName:    "clip.mp3",
		Audio:       []byte("fake-mp3-bytes"),
		Language:    "en",
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/audio/transcriptions", httpReq.URL.String())
	assert.Equal(t, "Bearer sk-test", httpReq.Header.Get("Authorization"))

	mediaType, params, err := mime.ParseMediaType(httpReq.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(httpReq.Body, params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	require.NoError(t, err)

	assert.Equal(t, "whisper-1", form.Value["model"][0])
	assert.Equal(t, "en", form.Value["language"][0])
	assert.Equal(t, "0.2", form.Value["temperature"][0])

	require.Len(t, form.File["file"], 1)
	assert.Equal(t, "clip.mp3", form.File["file"][0].Filename)
}

func TestParseTranscriptionResponse(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	resp, err := p.ParseTranscriptionResponse(&http.Response{
		Body: io.NopCloser(strings.NewReader(`{"text": "hello world", "language": "en", "duration": 2.5}`)),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, 2.5, resp.Duration)
}

func TestParseTranscriptionResponseBareText(t *testing.T) {
	p := New(openailike.WithAPIKey("sk-test"))

	resp, err := p.ParseTranscriptionResponse(&http.Response{
		Body: io.NopCloser(strings.NewReader("hello world\n")),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
}
