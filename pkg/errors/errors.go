// Package errors defines unified error types for OneAPI operations.
// All provider-specific errors are mapped to these standard error types so
// callers can branch on the Type string rather than message text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a standardized error from a provider adapter or from
// the local request pipeline (validation, rate limiting, streaming).
type APIError struct {
	StatusCode int      `json:"status_code"`
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
	Violations []string `json:"violations,omitempty"`
	Retryable  bool     `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s (provider=%s, model=%s, code=%d)",
		e.Type, e.Message, e.Provider, e.Model, e.StatusCode)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// Error type strings. Stable machine-readable identifiers; callers branch on
// these, never on the human message.
const (
	TypeAuthentication        = "authentication_error"
	TypeRateLimit             = "rate_limit_error"
	TypeRateLimitExceeded     = "rate_limit_exceeded"
	TypeInvalidRequest        = "invalid_request_error"
	TypeValidation            = "validation_error"
	TypeUnsupportedModel      = "unsupported_model"
	TypeUnsupportedCapability = "unsupported_capability"
	TypeNotFound              = "not_found_error"
	TypeTimeout               = "timeout_error"
	TypeServiceUnavailable    = "service_unavailable_error"
	TypeInternalError         = "internal_error"
	TypeStreamParse           = "stream_parse_error"
	TypeStreamTransport       = "stream_transport_error"
)

// NewAuthenticationError creates an authentication error (401).
func NewAuthenticationError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Type:       TypeAuthentication,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewRateLimitError creates an upstream rate limit error (429).
func NewRateLimitError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimit,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewRateLimitExceededError creates a local rate limiter rejection (429).
// Raised before any network call when the non-waiting acquire path fails.
func NewRateLimitExceededError(model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		Type:       TypeRateLimitExceeded,
		Model:      model,
		Retryable:  true,
	}
}

// NewInvalidRequestError creates an invalid request error (400).
func NewInvalidRequestError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Type:       TypeInvalidRequest,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewValidationError aggregates all precondition violations found in a
// request. It is always raised before any network call or limiter mutation.
func NewValidationError(provider, model string, violations []string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    "request validation failed: " + strings.Join(violations, "; "),
		Type:       TypeValidation,
		Provider:   provider,
		Model:      model,
		Violations: violations,
		Retryable:  false,
	}
}

// NewUnsupportedModelError is raised by strict providers when a model id has
// no entry in the mapping table.
func NewUnsupportedModelError(provider, model string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("model %q is not supported by provider %s", model, provider),
		Type:       TypeUnsupportedModel,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewUnsupportedCapabilityError is raised before any network call when a
// provider's capability table does not include the requested operation.
func NewUnsupportedCapabilityError(provider, capability string) *APIError {
	return &APIError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf("provider %s does not support %s", provider, capability),
		Type:       TypeUnsupportedCapability,
		Provider:   provider,
		Retryable:  false,
	}
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusNotFound,
		Message:    message,
		Type:       TypeNotFound,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewTimeoutError creates a timeout error (408).
func NewTimeoutError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusRequestTimeout,
		Message:    message,
		Type:       TypeTimeout,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewServiceUnavailableError creates a service unavailable error (503).
func NewServiceUnavailableError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    message,
		Type:       TypeServiceUnavailable,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(provider, model, message string) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Type:       TypeInternalError,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewUpstreamError maps a vendor status code with no dedicated
// constructor. Server-side failures (5xx) are retryable, anything else
// is not.
func NewUpstreamError(provider, model string, statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Type:       TypeInternalError,
		Provider:   provider,
		Model:      model,
		Retryable:  statusCode >= http.StatusInternalServerError,
	}
}

// NewStreamParseError marks a malformed stream line. The line is skipped
// and the stream continues; this error surfaces only through logging.
func NewStreamParseError(provider, model string, cause error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("malformed stream chunk: %v", cause),
		Type:       TypeStreamParse,
		Provider:   provider,
		Model:      model,
		Retryable:  false,
	}
}

// NewStreamTransportError wraps a connection-level streaming failure.
// It propagates after the retry budget is exhausted; single malformed lines
// are recovered locally and never produce this error.
func NewStreamTransportError(provider, model string, cause error) *APIError {
	return &APIError{
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("stream transport failed: %v", cause),
		Type:       TypeStreamTransport,
		Provider:   provider,
		Model:      model,
		Retryable:  true,
	}
}

// AsAPIError unwraps err into an *APIError if possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsType reports whether err is an APIError of the given type.
func IsType(err error, errType string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Type == errType
}
