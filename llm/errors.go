package llm

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of a failed response body is kept in an Error.
const maxErrorBody = 512

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Provider    string
	Message     string
	StatusCode  int
	Body        string
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeHTTPStatus     ErrorType = "http_status"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeDecode         ErrorType = "decode"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.ProviderErr != nil {
		return msg + ": " + e.ProviderErr.Error()
	}
	return msg
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// IsHTTPStatusError checks if an error is a non-2xx HTTP response from a provider.
func IsHTTPStatusError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeHTTPStatus
	}
	return false
}

// IsNetworkError checks if an error is a transport failure.
func IsNetworkError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeNetwork
	}
	return false
}

// StatusCode extracts the HTTP status code from an error, or 0 if there is none.
func StatusCode(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return 0
}

// NewHTTPStatusError creates an error for a non-2xx HTTP response.
// The body is truncated to keep error messages readable.
func NewHTTPStatusError(provider string, statusCode int, body []byte) *Error {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &Error{
		Type:       ErrorTypeHTTPStatus,
		Provider:   provider,
		Message:    "unexpected HTTP status",
		StatusCode: statusCode,
		Body:       text,
	}
}

// NewNetworkError creates a new transport error.
func NewNetworkError(provider, message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Provider:    provider,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewDecodeError creates an error for a response body that could not be parsed.
func NewDecodeError(provider, message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeDecode,
		Provider:    provider,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewInvalidRequestError creates an error for a request that was rejected before
// anything was sent.
func NewInvalidRequestError(provider, message string) *Error {
	return &Error{
		Type:     ErrorTypeInvalidRequest,
		Provider: provider,
		Message:  message,
	}
}

// NewProviderError creates an error the provider reported inside an otherwise
// successful response, such as an error event in a stream.
func NewProviderError(provider, message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Provider:    provider,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// IsInvalidRequestError checks if an error is a request rejected before sending.
func IsInvalidRequestError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeInvalidRequest
	}
	return false
}

// IsProviderError checks if an error was reported by the provider in its response.
func IsProviderError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeProvider
	}
	return false
}
