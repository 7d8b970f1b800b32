// Package siliconflow invokes the SiliconFlow chat completions endpoint.
//
// Streamed responses are read in small chunks and fed through sse.Parser, so
// records that straddle network reads are reassembled before parsing.
package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/galaxy/llm"
	"github.com/aschepis/backscratcher/galaxy/llm/sse"
	"github.com/aschepis/backscratcher/galaxy/metrics"
	"github.com/rs/zerolog"
)

const (
	// ProviderName labels logs, metrics and errors from this package.
	ProviderName = "siliconflow"

	// DefaultEndpoint is used when no endpoint is configured.
	DefaultEndpoint = "https://api.siliconflow.cn/v1/chat/completions"

	// errorBodyLimit caps how much of a failed response is read.
	errorBodyLimit = 4096
)

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model used when a request leaves Model empty.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithChunkSize sets the read size for streamed bodies.
func WithChunkSize(n int) Option {
	return func(c *Client) { c.chunkSize = n }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records request counts, durations and skipped stream lines.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client implements llm.Invoker for SiliconFlow.
type Client struct {
	endpoint  string
	token     string
	model     string
	chunkSize int
	http      *http.Client
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewClient creates a client that posts to endpoint with token as bearer
// credentials. An empty endpoint selects DefaultEndpoint.
func NewClient(endpoint, token string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:  endpoint,
		token:     token,
		chunkSize: sse.DefaultChunkSize,
		http:      http.DefaultClient,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "llm").Str("provider", ProviderName).Logger()
	return c
}

// Invoke implements llm.Invoker.
func (c *Client) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	if req == nil {
		return nil, llm.NewInvalidRequestError(ProviderName, "request is required")
	}
	if req.Model == "" && c.model == "" {
		return nil, llm.NewInvalidRequestError(ProviderName, "model is required")
	}
	body, err := json.Marshal(c.payload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveLLM(ProviderName, 0, time.Since(start))
		return nil, llm.NewNetworkError(ProviderName, "request failed", err)
	}
	defer resp.Body.Close()

	res, err := c.readResponse(resp, req.Stream)
	c.metrics.ObserveLLM(ProviderName, resp.StatusCode, time.Since(start))
	return res, err
}

func (c *Client) readResponse(resp *http.Response, stream bool) (*llm.Result, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, llm.NewHTTPStatusError(ProviderName, resp.StatusCode, body)
	}

	if !stream {
		return decodeCompletion(resp.Body)
	}

	res, parser, err := sse.Consume(resp.Body, sse.ChatCompletionDelta, sse.WithChunkSize(c.chunkSize))
	c.metrics.ObserveSkippedLines(ProviderName, parser.Skipped())
	c.logger.Debug().
		Int("records", parser.Records()).
		Int("skipped", parser.Skipped()).
		Msg("Stream finished")
	if err != nil {
		return &res, llm.NewNetworkError(ProviderName, "stream interrupted", err)
	}
	return &res, nil
}

// payload builds the request body. Extra is merged last so callers can pass
// SiliconFlow options (min_p, top_k, tools, response_format, ...) untouched.
func (c *Client) payload(req *llm.Request) map[string]any {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := map[string]any{
		"model":           model,
		"messages":        req.Messages,
		"stream":          req.Stream,
		"enable_thinking": req.EnableThinking,
	}
	if req.ThinkingBudget > 0 {
		body["thinking_budget"] = req.ThinkingBudget
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	for k, v := range req.Extra {
		body[k] = v
	}
	return body
}

type completion struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

func decodeCompletion(r io.Reader) (*llm.Result, error) {
	var resp completion
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, llm.NewDecodeError(ProviderName, "failed to decode completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewDecodeError(ProviderName, "no choices in response", nil)
	}
	msg := resp.Choices[0].Message
	return &llm.Result{Reasoning: msg.ReasoningContent, Answer: msg.Content}, nil
}
