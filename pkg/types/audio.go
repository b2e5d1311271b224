package types //nolint:revive // package name is intentional

import "fmt"

// TranscriptionRequest represents a normalized audio transcription request.
// Audio carries the raw file bytes; FileName is used for the multipart part
// and lets the vendor infer the container format.
type TranscriptionRequest struct {
	Model          string   `json:"model"`
	FileName       string   `json:"file_name"`
	Audio          []byte   `json:"-"`
	Language       string   `json:"language,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// Validate checks the transcription request.
func (r *TranscriptionRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Audio) == 0 {
		return fmt.Errorf("audio data is required")
	}
	if r.FileName == "" {
		return fmt.Errorf("file name is required")
	}
	return nil
}

// TranscriptionResponse represents a normalized transcription response.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}
