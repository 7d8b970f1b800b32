package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

type recordingDoer struct {
	body []byte
}

func (r *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	r.body = body
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func TestExtraBodyDoer_KeepsLargeIntegers(t *testing.T) {
	rec := &recordingDoer{}
	doer := &extraBodyDoer{next: rec}

	ctx := withExtraBody(context.Background(), map[string]any{
		"enable_thinking": true,
		"user_seed":       int64(9007199254740995),
	})
	original := []byte(`{"model":"m","seed":9007199254740993,"temperature":0.7}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://example.invalid", bytes.NewReader(original))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if _, err := doer.Do(req); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	for _, want := range []string{`"seed":9007199254740993`, `"user_seed":9007199254740995`, `"enable_thinking":true`, `"temperature":0.7`} {
		if !bytes.Contains(rec.body, []byte(want)) {
			t.Errorf("Expected %s in forwarded body %s", want, rec.body)
		}
	}
	if req.ContentLength != int64(len(rec.body)) {
		t.Errorf("ContentLength %d does not match body length %d", req.ContentLength, len(rec.body))
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(rec.body, &decoded); err != nil {
		t.Errorf("Forwarded body is not JSON: %v", err)
	}
}

func TestExtraBodyDoer_PassThroughWithoutExtra(t *testing.T) {
	rec := &recordingDoer{}
	doer := &extraBodyDoer{next: rec}

	original := `{"model":"m"}`
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://example.invalid", strings.NewReader(original))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if _, err := doer.Do(req); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(rec.body) != original {
		t.Errorf("Expected body untouched, got %s", rec.body)
	}
}
