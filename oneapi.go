// Package oneapi provides a unified client for multiple LLM providers.
// Callers speak one normalized, OpenAI-compatible request shape; the client
// maps model ids, validates, rate-limits, caches, and translates to and
// from each vendor's native protocol.
package oneapi

import (
	"github.com/nebulark/oneapi/pkg/errors"
	"github.com/nebulark/oneapi/pkg/types"
)

// Version is the current oneapi release.
const Version = "0.3.0"

// Request and response types, re-exported so most callers only import the
// root package.
type (
	ChatRequest    = types.ChatRequest
	ChatResponse   = types.ChatResponse
	ChatMessage    = types.ChatMessage
	StreamChunk    = types.StreamChunk
	StreamChoice   = types.StreamChoice
	StreamDelta    = types.StreamDelta
	Choice         = types.Choice
	Usage          = types.Usage
	Model          = types.Model
	Tool           = types.Tool
	ToolCall       = types.ToolCall
	ResponseFormat = types.ResponseFormat

	EmbeddingRequest      = types.EmbeddingRequest
	EmbeddingResponse     = types.EmbeddingResponse
	EmbeddingInput        = types.EmbeddingInput
	ImageRequest          = types.ImageRequest
	ImageResponse         = types.ImageResponse
	TranscriptionRequest  = types.TranscriptionRequest
	TranscriptionResponse = types.TranscriptionResponse
)

// APIError is the standardized error type returned by all operations.
type APIError = errors.APIError

// Error helpers, re-exported for callers branching on failure class.
var (
	AsAPIError = errors.AsAPIError
	IsType     = errors.IsType
)

// Error type identifiers.
const (
	ErrTypeAuthentication        = errors.TypeAuthentication
	ErrTypeRateLimit             = errors.TypeRateLimit
	ErrTypeRateLimitExceeded     = errors.TypeRateLimitExceeded
	ErrTypeInvalidRequest        = errors.TypeInvalidRequest
	ErrTypeValidation            = errors.TypeValidation
	ErrTypeUnsupportedModel      = errors.TypeUnsupportedModel
	ErrTypeUnsupportedCapability = errors.TypeUnsupportedCapability
	ErrTypeNotFound              = errors.TypeNotFound
	ErrTypeTimeout               = errors.TypeTimeout
	ErrTypeServiceUnavailable    = errors.TypeServiceUnavailable
	ErrTypeStreamParse           = errors.TypeStreamParse
	ErrTypeStreamTransport       = errors.TypeStreamTransport
)

// NewUserMessage builds a plain-text user message.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: types.TextContent(text)}
}

// NewSystemMessage builds a plain-text system message.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: types.TextContent(text)}
}

// NewAssistantMessage builds a plain-text assistant message.
func NewAssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: types.TextContent(text)}
}
