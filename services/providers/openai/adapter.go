package openai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/vedaai/veda-backend/services/providers"
)

const (
	defaultTimeout = 30 * time.Second
)

// Adapter implements the Provider interface for any OpenAI-compatible
// chat completions API. xAI, Groq, Gemini and OpenRouter all expose one,
// so a single adapter serves every configured provider.
type Adapter struct {
	config providers.ProviderConfig
	client *goopenai.Client
}

// NewAdapter creates a new OpenAI-compatible adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: config.Timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: config.Headers,
		},
	}

	return &Adapter{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return a.config.Name
}

// IsAvailable reports whether the adapter has a credential to call with
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.config.APIKey != ""
}

// ChatCompletion performs a single chat completion request. It never retries:
// callers decide what to do with a failure.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	if !a.IsAvailable(ctx) {
		return nil, providers.NewProviderError(a.Name(), providers.CodeNotConfigured, "API key not configured", 0, false, nil)
	}
	if req == nil || req.Model == "" || len(req.Messages) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidRequest, "model and messages are required", 0, false, nil)
	}

	startTime := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return nil, a.classifyError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyResponse, "provider returned no content", http.StatusOK, true, nil)
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}

	return &providers.ChatResponse{
		ID:           resp.ID,
		Model:        model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Provider: a.Name(),
		Latency:  time.Since(startTime),
		Created:  time.Unix(resp.Created, 0),
	}, nil
}

// buildRequest converts the unified request to the go-openai request type
func (a *Adapter) buildRequest(req *providers.ChatRequest) goopenai.ChatCompletionRequest {
	out := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.User,
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, convertMessage(msg))
	}

	if req.JSONMode {
		out.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return out
}

func convertMessage(msg providers.Message) goopenai.ChatCompletionMessage {
	role := goopenai.ChatMessageRoleUser
	switch msg.Role {
	case providers.RoleSystem:
		role = goopenai.ChatMessageRoleSystem
	case providers.RoleAssistant:
		role = goopenai.ChatMessageRoleAssistant
	}

	if msg.ImageURL == "" {
		return goopenai.ChatCompletionMessage{Role: role, Content: msg.Content}
	}

	// Vision input must use the multi-part form; Content has to stay empty.
	parts := make([]goopenai.ChatMessagePart, 0, 2)
	if msg.Content != "" {
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeText,
			Text: msg.Content,
		})
	}
	parts = append(parts, goopenai.ChatMessagePart{
		Type: goopenai.ChatMessagePartTypeImageURL,
		ImageURL: &goopenai.ChatMessageImageURL{
			URL:    msg.ImageURL,
			Detail: goopenai.ImageURLDetailAuto,
		},
	})
	return goopenai.ChatCompletionMessage{Role: role, MultiContent: parts}
}

// classifyError maps go-openai and transport errors onto ProviderError codes
func (a *Adapter) classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.ErrorFromStatus(a.Name(), apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.ErrorFromStatus(a.Name(), reqErr.HTTPStatusCode, "", err)
	}

	if errors.Is(err, context.Canceled) {
		return providers.NewProviderError(a.Name(), providers.CodeTransport, "request cancelled", 0, false, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return providers.NewProviderError(a.Name(), providers.CodeTimeout, "request timed out", 0, true, err)
	}

	return providers.NewProviderError(a.Name(), providers.CodeTransport, "request failed", 0, true, err)
}

// headerTransport adds static headers to every outgoing request
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
