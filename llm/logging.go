package llm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs each Invoke call with its model, duration and result sizes.
func LoggingMiddleware(provider string, logger zerolog.Logger) Middleware {
	log := logger.With().Str("component", "llm").Str("provider", provider).Logger()
	return &loggingMiddleware{log: log}
}

type loggingMiddleware struct {
	log zerolog.Logger
	// start times keyed by request pointer; requests are not shared across calls
	starts sync.Map
}

func (m *loggingMiddleware) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	m.starts.Store(req, time.Now())
	m.log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("stream", req.Stream).
		Msg("Sending LLM request")
	return req, nil
}

func (m *loggingMiddleware) AfterResult(ctx context.Context, req *Request, res *Result) (*Result, error) {
	m.log.Info().
		Str("model", req.Model).
		Dur("duration", m.elapsed(req)).
		Int("reasoning_chars", len(res.Reasoning)).
		Int("answer_chars", len(res.Answer)).
		Msg("LLM request completed")
	return res, nil
}

func (m *loggingMiddleware) OnError(ctx context.Context, req *Request, err error) error {
	m.log.Error().
		Err(err).
		Str("model", req.Model).
		Dur("duration", m.elapsed(req)).
		Msg("LLM request failed")
	return nil
}

func (m *loggingMiddleware) elapsed(req *Request) time.Duration {
	v, ok := m.starts.LoadAndDelete(req)
	if !ok {
		return 0
	}
	return time.Since(v.(time.Time))
}
