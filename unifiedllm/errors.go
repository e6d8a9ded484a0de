package unifiedllm

import (
	"errors"
	"fmt"
)

// SDKError is the base error type for all unified LLM errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents a failed round trip to an LLM provider: a
// transport failure, a non-2xx status, or an unreadable reply. Body holds
// the raw response body as diagnostic detail.
type ProviderError struct {
	SDKError
	Provider   ProviderKind
	StatusCode int
	Body       string
	Retryable  bool
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("[%s] %s", e.Provider, e.SDKError.Error())
	}
	if e.Body == "" {
		return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s (status=%d): %s", e.Provider, e.Message, e.StatusCode, e.Body)
}

// ConfigurationError reports a missing or malformed setting, typically a
// credential, detected before any network call is made.
type ConfigurationError struct{ SDKError }

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{SDKError: SDKError{Message: fmt.Sprintf(format, args...)}}
}

// AbortError reports that the caller's context ended the operation.
type AbortError struct{ SDKError }

// ErrorFromStatusCode maps an HTTP status code to a ProviderError and marks
// rate limiting and server-side failures as retryable.
func ErrorFromStatusCode(provider ProviderKind, statusCode int, body string, retryAfter *float64) *ProviderError {
	pe := &ProviderError{
		SDKError:   SDKError{Message: statusMessage(statusCode)},
		Provider:   provider,
		StatusCode: statusCode,
		Body:       body,
		RetryAfter: retryAfter,
	}
	switch {
	case statusCode == 408, statusCode == 429:
		pe.Retryable = true
	case statusCode >= 500:
		pe.Retryable = true
	}
	return pe
}

func statusMessage(statusCode int) string {
	switch statusCode {
	case 400, 422:
		return "invalid request"
	case 401:
		return "authentication failed"
	case 403:
		return "access denied"
	case 404:
		return "not found"
	case 408:
		return "request timeout"
	case 413:
		return "context length exceeded"
	case 429:
		return "rate limited"
	}
	if statusCode >= 500 {
		return "server error"
	}
	return "unexpected status"
}

// IsRetryable returns true if the error is safe to retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsProviderError reports whether err is, or wraps, a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
