package types //nolint:revive // package name is intentional

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// ContentPart is one element of a multimodal message content array.
// Type is "text" or "image_url".
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference, either a plain URL or a
// data:image/...;base64 URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// dataURIPattern matches base64 image data URIs and captures the media type
// and payload. URIs that carry the data: scheme but do not match this shape
// are malformed and rejected at validation time.
var dataURIPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.+)$`)

// ParseDataURI splits a base64 image data URI into media type and payload.
// ok is false when the input does not match the expected shape.
func ParseDataURI(uri string) (mediaType, data string, ok bool) {
	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsDataURI reports whether the URL uses the data: scheme at all,
// regardless of whether it is well formed.
func IsDataURI(uri string) bool {
	return strings.HasPrefix(uri, "data:")
}

// ParseContent decodes a ChatMessage content field into either a plain string
// or a list of content parts. Exactly one of the two results is populated.
func ParseContent(raw json.RawMessage) (text string, parts []ContentPart, err error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil, nil
	}

	var ps []ContentPart
	if err := json.Unmarshal(raw, &ps); err == nil {
		return "", ps, nil
	}

	return "", nil, fmt.Errorf("invalid message content format")
}

// ContentText flattens a content field into plain text, concatenating the
// text parts of a multimodal array. Image parts contribute nothing.
func ContentText(raw json.RawMessage) string {
	text, parts, err := ParseContent(raw)
	if err != nil {
		return string(raw)
	}
	if parts == nil {
		return text
	}
	var b strings.Builder
	for _, part := range parts {
		if part.Type == "" || part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// TextContent wraps a plain string as a JSON content field.
func TextContent(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
