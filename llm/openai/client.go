// Package openai invokes OpenAI-compatible chat completion endpoints through
// github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aschepis/backscratcher/galaxy/llm"
	"github.com/aschepis/backscratcher/galaxy/metrics"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// ProviderName labels logs, metrics and errors from this package.
const ProviderName = "openai"

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model used when a request leaves Model empty.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient replaces the transport used for API calls.
func WithHTTPClient(doer openai.HTTPDoer) Option {
	return func(c *Client) { c.httpClient = doer }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records request counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client implements llm.Invoker for OpenAI-compatible APIs.
// The underlying API client is built on first use and reused afterwards.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient openai.HTTPDoer
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	once   sync.Once
	client *openai.Client
}

// NewClient creates a new Client.
// If baseURL is empty, it will use the default OpenAI API endpoint.
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "llm").Str("provider", ProviderName).Logger()
	return c
}

func (c *Client) api() *openai.Client {
	c.once.Do(func() {
		config := openai.DefaultConfig(c.apiKey)
		if c.baseURL != "" {
			config.BaseURL = c.baseURL
		}
		config.HTTPClient = &extraBodyDoer{next: c.httpClient}
		c.client = openai.NewClientWithConfig(config)
		c.logger.Debug().Str("base_url", config.BaseURL).Msg("OpenAI client created")
	})
	return c.client
}

// Invoke implements llm.Invoker. Streaming requests accumulate
// delta.reasoning_content and delta.content until the stream ends.
func (c *Client) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	if req == nil {
		return nil, llm.NewInvalidRequestError(ProviderName, "request is required")
	}
	chatReq, err := c.chatRequest(req)
	if err != nil {
		return nil, err
	}
	ctx = withExtraBody(ctx, extraBody(req))

	start := time.Now()
	var res *llm.Result
	if req.Stream {
		res, err = c.stream(ctx, chatReq)
	} else {
		res, err = c.complete(ctx, chatReq)
	}

	status := http.StatusOK
	if err != nil {
		status = llm.StatusCode(err)
	}
	c.metrics.ObserveLLM(ProviderName, status, time.Since(start))
	return res, err
}

func (c *Client) complete(ctx context.Context, chatReq openai.ChatCompletionRequest) (*llm.Result, error) {
	resp, err := c.api().CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, convertOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewDecodeError(ProviderName, "no choices in response", nil)
	}
	msg := resp.Choices[0].Message
	return &llm.Result{Reasoning: msg.ReasoningContent, Answer: msg.Content}, nil
}

func (c *Client) stream(ctx context.Context, chatReq openai.ChatCompletionRequest) (*llm.Result, error) {
	stream, err := c.api().CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, convertOpenAIError(err)
	}
	defer stream.Close()

	var acc llm.Accumulator
	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			partial := acc.Result()
			return &partial, convertOpenAIError(err)
		}
		chunks++
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		acc.Add(llm.Delta{Reasoning: delta.ReasoningContent, Answer: delta.Content})
	}

	c.logger.Debug().Int("chunks", chunks).Msg("Stream finished")
	res := acc.Result()
	return &res, nil
}

func (c *Client) chatRequest(req *llm.Request) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return openai.ChatCompletionRequest{}, llm.NewInvalidRequestError(ProviderName, "model is required")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   req.Stream,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}
	return chatReq, nil
}

// extraBody collects the fields go-openai has no request field for.
// enable_thinking is always sent, matching what thinking-capable
// OpenAI-compatible servers expect.
func extraBody(req *llm.Request) map[string]any {
	extra := make(map[string]any, len(req.Extra)+2)
	for k, v := range req.Extra {
		extra[k] = v
	}
	extra["enable_thinking"] = req.EnableThinking
	if req.ThinkingBudget > 0 {
		extra["thinking_budget"] = req.ThinkingBudget
	}
	return extra
}

// convertOpenAIError converts OpenAI API errors to llm.Error types.
func convertOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.Error{
			Type:        llm.ErrorTypeHTTPStatus,
			Provider:    ProviderName,
			Message:     apiErr.Message,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &llm.Error{
			Type:        llm.ErrorTypeHTTPStatus,
			Provider:    ProviderName,
			Message:     "unexpected HTTP status",
			StatusCode:  reqErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}

	return llm.NewNetworkError(ProviderName, "request failed", err)
}
