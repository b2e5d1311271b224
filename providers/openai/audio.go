package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nebulark/oneapi/pkg/types"
)

// BuildTranscriptionRequest creates a multipart HTTP request for the audio
// transcription API.
func (p *Provider) BuildTranscriptionRequest(ctx context.Context, req *types.TranscriptionRequest) (*http.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcription request: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"model":           req.Model,
		"language":        req.Language,
		"prompt":          req.Prompt,
		"response_format": req.ResponseFormat,
	}
	if req.Temperature != nil {
		fields["temperature"] = strconv.FormatFloat(*req.Temperature, 'f', -1, 64)
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := strings.TrimSuffix(p.BaseURL(), "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	p.AuthHeaders(httpReq)
	return httpReq, nil
}

// ParseTranscriptionResponse transforms the transcription response into the
// unified format.
func (p *Provider) ParseTranscriptionResponse(resp *http.Response) (*types.TranscriptionResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var trResp types.TranscriptionResponse
	if err := json.Unmarshal(body, &trResp); err != nil {
		// response_format=text returns a bare string body
		text := strings.TrimSpace(string(body))
		if text == "" {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &types.TranscriptionResponse{Text: text}, nil
	}

	return &trResp, nil
}
