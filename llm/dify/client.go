// Package dify talks to the Dify chat-messages API, which always answers with
// an event stream.
package dify

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/galaxy/llm"
	"github.com/aschepis/backscratcher/galaxy/llm/sse"
	"github.com/aschepis/backscratcher/galaxy/metrics"
	"github.com/rs/zerolog"
)

const (
	// ProviderName labels logs, metrics and errors from this package.
	ProviderName = "dify"

	// DefaultUser identifies the end user when none is configured.
	DefaultUser = "galaxy"

	// ResponseModeStreaming is the only response mode Invoke uses.
	ResponseModeStreaming = "streaming"

	errorBodyLimit = 4096
)

// ChatPayload is the body of a chat-messages request.
type ChatPayload struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithUser sets the user identifier sent with Invoke requests.
func WithUser(user string) Option {
	return func(c *Client) {
		if user != "" {
			c.user = user
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records request counts, durations and skipped stream events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client calls a Dify endpoint with an API key.
type Client struct {
	endpoint string
	apiKey   string
	user     string
	http     *http.Client
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// NewClient creates a client for the chat-messages endpoint.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		user:     DefaultUser,
		http:     http.DefaultClient,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "llm").Str("provider", ProviderName).Logger()
	return c
}

// Stream posts payload and yields the trimmed payload of every data line of the
// response. Nothing is sent until the sequence is ranged over, and every range
// sends a fresh request. A failure is yielded once as the final element.
func (c *Client) Stream(ctx context.Context, payload any) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		resp, err := c.post(ctx, payload)
		if err != nil {
			c.metrics.ObserveLLM(ProviderName, 0, time.Since(start))
			yield("", err)
			return
		}
		defer resp.Body.Close()
		defer func() { c.metrics.ObserveLLM(ProviderName, resp.StatusCode, time.Since(start)) }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			yield("", llm.NewHTTPStatusError(ProviderName, resp.StatusCode, body))
			return
		}

		for data, err := range sse.Payloads(resp.Body) {
			if errors.Is(err, bufio.ErrTooLong) {
				yield("", llm.NewDecodeError(ProviderName, "stream event too large", err))
				return
			}
			if err != nil {
				yield("", llm.NewNetworkError(ProviderName, "stream interrupted", err))
				return
			}
			if !yield(data, nil) {
				return
			}
		}
	}
}

// Invoke implements llm.Invoker. The last user message becomes the query and
// the answer and reasoning fragments of the event stream are accumulated.
// Extra entries become workflow inputs, except conversation_id which continues
// an existing conversation.
func (c *Client) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	if req == nil {
		return nil, llm.NewInvalidRequestError(ProviderName, "request is required")
	}

	var res llm.Result
	events, skipped := 0, 0
	for data, err := range c.Stream(ctx, c.payload(req)) {
		if err != nil {
			return &res, err
		}
		if err := streamError([]byte(data)); err != nil {
			return &res, err
		}
		delta, err := sse.DifyEvent([]byte(data))
		if err != nil {
			skipped++
			continue
		}
		if delta.IsEmpty() {
			continue
		}
		events++
		res.Append(delta)
	}

	c.metrics.ObserveSkippedLines(ProviderName, skipped)
	c.logger.Debug().Int("events", events).Int("skipped", skipped).Msg("Stream finished")
	return &res, nil
}

// errorEvent is the event Dify sends when a run fails after the stream started.
type errorEvent struct {
	Event   string `json:"event"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventError names the stream event that reports a failed run.
const EventError = "error"

// streamError returns a provider error for an error event and nil for anything else.
func streamError(payload []byte) error {
	var ev errorEvent
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Event != EventError {
		return nil
	}
	e := llm.NewProviderError(ProviderName, "stream error event", fmt.Errorf("%s: %s", ev.Code, ev.Message))
	e.StatusCode = ev.Status
	return e
}

func (c *Client) payload(req *llm.Request) ChatPayload {
	p := ChatPayload{
		Inputs:       map[string]any{},
		Query:        llm.LastUserMessage(req.Messages),
		ResponseMode: ResponseModeStreaming,
		User:         c.user,
	}
	for k, v := range req.Extra {
		if k == "conversation_id" {
			if id, ok := v.(string); ok {
				p.ConversationID = id
			}
			continue
		}
		p.Inputs[k] = v
	}
	return p
}

func (c *Client) post(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, llm.NewNetworkError(ProviderName, "request failed", err)
	}
	return resp, nil
}
