// Package validate implements the precondition checks that run before any
// network call or rate limiter mutation. All violations found in a request
// are aggregated into a single validation error rather than failing on the
// first one.
package validate

import (
	"encoding/base64"
	"fmt"

	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/types"
)

// Defaults for validation rules.
const (
	DefaultTemperatureMin         = 0.0
	DefaultTemperatureMax         = 1.0
	DefaultThinkingTemperatureMin = 0.5
	DefaultMaxImageBytes          = 5 * 1024 * 1024
)

// Rules holds per-provider validation constraints.
type Rules struct {
	// Provider names the provider the rules belong to, for error context.
	Provider string
	// MaxMessages bounds the message list length. 0 means unbounded.
	MaxMessages int
	// TemperatureMin/Max bound the sampling temperature.
	TemperatureMin float64
	TemperatureMax float64
	// ThinkingTemperatureMin raises the floor for thinking-mode models.
	ThinkingTemperatureMin float64
	// TokenLimits caps max_tokens per model id. Models without an entry
	// fall back to DefaultTokenLimit.
	TokenLimits map[string]int
	// DefaultTokenLimit caps max_tokens for unlisted models. 0 disables
	// the check.
	DefaultTokenLimit int
	// MaxImageBytes bounds the decoded size of inline base64 images.
	MaxImageBytes int
	// CheckImages enables multimodal content-part validation.
	CheckImages bool
}

// DefaultRules returns provider-neutral defaults.
func DefaultRules(provider string) Rules {
	return Rules{
		Provider:               provider,
		TemperatureMin:         DefaultTemperatureMin,
		TemperatureMax:         DefaultTemperatureMax,
		ThinkingTemperatureMin: DefaultThinkingTemperatureMin,
		MaxImageBytes:          DefaultMaxImageBytes,
	}
}

// Request checks a chat request against the rules and returns a single
// validation error aggregating every violation found, or nil.
func Request(rules Rules, req *types.ChatRequest) error {
	var violations []string

	if len(req.Messages) == 0 {
		violations = append(violations, "messages must not be empty")
	}
	if rules.MaxMessages > 0 && len(req.Messages) > rules.MaxMessages {
		violations = append(violations,
			fmt.Sprintf("too many messages: %d (max %d)", len(req.Messages), rules.MaxMessages))
	}

	violations = append(violations, temperatureViolations(rules, req)...)
	violations = append(violations, tokenLimitViolations(rules, req)...)

	if rules.CheckImages {
		violations = append(violations, imageViolations(rules, req)...)
	}

	if len(violations) > 0 {
		return errors.NewValidationError(rules.Provider, req.Model, violations)
	}
	return nil
}

func temperatureViolations(rules Rules, req *types.ChatRequest) []string {
	if req.Temperature == nil {
		return nil
	}
	t := *req.Temperature

	low := rules.TemperatureMin
	if types.IsThinkingModel(req.Model) && rules.ThinkingTemperatureMin > low {
		low = rules.ThinkingTemperatureMin
	}

	var violations []string
	if t < low {
		violations = append(violations,
			fmt.Sprintf("temperature %.2f below minimum %.2f for model %s", t, low, req.Model))
	}
	if t > rules.TemperatureMax {
		violations = append(violations,
			fmt.Sprintf("temperature %.2f above maximum %.2f", t, rules.TemperatureMax))
	}
	return violations
}

func tokenLimitViolations(rules Rules, req *types.ChatRequest) []string {
	if req.MaxTokens <= 0 {
		return nil
	}
	limit := rules.DefaultTokenLimit
	if l, ok := rules.TokenLimits[types.BaseModel(req.Model)]; ok {
		limit = l
	}
	if limit > 0 && req.MaxTokens > limit {
		return []string{fmt.Sprintf("max_tokens %d exceeds model limit %d", req.MaxTokens, limit)}
	}
	return nil
}

// imageViolations checks multimodal content parts. A data: URI that does
// not match the base64 image shape is rejected here rather than forwarded
// to the vendor with an empty media block.
func imageViolations(rules Rules, req *types.ChatRequest) []string {
	var violations []string
	for i, msg := range req.Messages {
		_, parts, err := types.ParseContent(msg.Content)
		if err != nil {
			violations = append(violations, fmt.Sprintf("message %d: invalid content format", i))
			continue
		}
		for _, part := range parts {
			if part.Type != "image_url" || part.ImageURL == nil {
				continue
			}
			url := part.ImageURL.URL
			if url == "" {
				violations = append(violations, fmt.Sprintf("message %d: image_url part has empty url", i))
				continue
			}
			if !types.IsDataURI(url) {
				continue
			}
			_, data, ok := types.ParseDataURI(url)
			if !ok {
				violations = append(violations,
					fmt.Sprintf("message %d: malformed base64 image data URI", i))
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				violations = append(violations,
					fmt.Sprintf("message %d: image data is not valid base64", i))
				continue
			}
			if rules.MaxImageBytes > 0 && len(decoded) > rules.MaxImageBytes {
				violations = append(violations,
					fmt.Sprintf("message %d: image exceeds %d bytes", i, rules.MaxImageBytes))
			}
		}
	}
	return violations
}
