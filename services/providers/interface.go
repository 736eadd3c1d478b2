package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider represents a unified LLM provider interface
type Provider interface {
	// Name returns the provider name (e.g., "xai", "groq", "openrouter")
	Name() string

	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable reports whether the provider is configured to accept requests
	IsAvailable(ctx context.Context) bool
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "grok-2-1212", "llama-3.1-8b-instant")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float32 `json:"temperature,omitempty"`

	// JSONMode asks the model for a single JSON object
	JSONMode bool `json:"json_mode,omitempty"`

	// User identifier for abuse monitoring
	User string `json:"user,omitempty"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// ImageURL attaches an image, either an https URL or a data: URL
	ImageURL string `json:"image_url,omitempty"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HasImage reports whether any message in the request carries an image
func (r *ChatRequest) HasImage() bool {
	for _, m := range r.Messages {
		if m.ImageURL != "" {
			return true
		}
	}
	return false
}

// Clone returns a copy that can be modified without affecting r
func (r *ChatRequest) Clone() *ChatRequest {
	c := *r
	c.Messages = append([]Message(nil), r.Messages...)
	return &c
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	// ID is the unique identifier for this completion
	ID string `json:"id"`

	// Model used for the completion
	Model string `json:"model"`

	// Content is the assistant reply
	Content string `json:"content"`

	// FinishReason indicates why the completion finished
	FinishReason string `json:"finish_reason"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Latency of the request
	Latency time.Duration `json:"latency"`

	// Created timestamp
	Created time.Time `json:"created"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// Name the provider registers under
	Name string

	// APIKey for authentication
	APIKey string

	// BaseURL of the OpenAI-compatible API
	BaseURL string

	// Timeout for a single request
	Timeout time.Duration

	// Additional headers sent with every request
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 30 * time.Second,
		Headers: make(map[string]string),
	}
}

// Error codes carried by ProviderError
const (
	CodeAuth           = "AUTH_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUpstream       = "UPSTREAM_ERROR"
	CodeBadRequest     = "BAD_REQUEST"
	CodeTransport      = "TRANSPORT_ERROR"
	CodeTimeout        = "TIMEOUT"
	CodeEmptyResponse  = "EMPTY_RESPONSE"
	CodeNotConfigured  = "NOT_CONFIGURED"
	CodeInvalidRequest = "INVALID_REQUEST"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the same request may succeed later
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// ErrorFromStatus builds a ProviderError for a non-2xx HTTP status
func ErrorFromStatus(provider string, status int, message string, cause error) *ProviderError {
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	switch {
	case status == 401 || status == 403:
		return NewProviderError(provider, CodeAuth, message, status, false, cause)
	case status == 408:
		return NewProviderError(provider, CodeTimeout, message, status, true, cause)
	case status == 429:
		return NewProviderError(provider, CodeRateLimited, message, status, true, cause)
	case status >= 500:
		return NewProviderError(provider, CodeUpstream, message, status, true, cause)
	default:
		return NewProviderError(provider, CodeBadRequest, message, status, false, cause)
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsAuthError reports whether err is a rejected credential
func IsAuthError(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code == CodeAuth
	}
	return false
}

// ErrorCode returns the provider error code for err, or "" if err is not a ProviderError
func ErrorCode(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return ""
}
