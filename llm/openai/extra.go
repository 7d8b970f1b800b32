package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type extraBodyKey struct{}

func withExtraBody(ctx context.Context, extra map[string]any) context.Context {
	if len(extra) == 0 {
		return ctx
	}
	return context.WithValue(ctx, extraBodyKey{}, extra)
}

// extraBodyDoer merges the extra fields carried by the request context into
// the JSON body go-openai produced, then hands the request to next.
type extraBodyDoer struct {
	next openai.HTTPDoer
}

func (d *extraBodyDoer) Do(req *http.Request) (*http.Response, error) {
	extra, _ := req.Context().Value(extraBodyKey{}).(map[string]any)
	if len(extra) == 0 || req.Body == nil {
		return d.next.Do(req)
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	// Fields go-openai wrote are kept as raw bytes so numbers keep their exact text.
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}
	for k, v := range extra {
		field, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extra field %s: %w", k, err)
		}
		body[k] = field
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req.Body = io.NopCloser(bytes.NewReader(encoded))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(encoded)), nil
	}
	req.ContentLength = int64(len(encoded))
	return d.next.Do(req)
}
