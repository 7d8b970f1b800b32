package sse

import (
	"bufio"
	"errors"
	"strings"
	"testing"
)

func TestPayloads(t *testing.T) {
	body := "event: ping\n\ndata: {\"a\":1}  \n: comment\ndata:{\"b\":2}\n\ndata: last"

	var got []string
	for payload, err := range Payloads(strings.NewReader(body)) {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		got = append(got, payload)
	}

	want := []string{`{"a":1}`, `{"b":2}`, "last"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Payload %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestPayloads_EarlyBreak(t *testing.T) {
	body := "data: 1\ndata: 2\ndata: 3\n"
	count := 0
	for range Payloads(strings.NewReader(body)) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("Expected to stop after 2 payloads, got %d", count)
	}
}

func TestPayloads_LongLines(t *testing.T) {
	big := strings.Repeat("x", 2<<20)
	var got []string
	for payload, err := range Payloads(strings.NewReader("data: " + big + "\ndata: after\n")) {
		if err != nil {
			t.Fatalf("Unexpected error for a 2 MiB line: %v", err)
		}
		got = append(got, payload)
	}
	if len(got) != 2 || len(got[0]) != len(big) || got[1] != "after" {
		t.Errorf("Unexpected payloads: %d items", len(got))
	}

	tooLong := "data: " + strings.Repeat("y", MaxLineSize) + "\n"
	var lastErr error
	for _, err := range Payloads(strings.NewReader(tooLong)) {
		lastErr = err
	}
	if !errors.Is(lastErr, bufio.ErrTooLong) {
		t.Errorf("Expected bufio.ErrTooLong, got %v", lastErr)
	}
}
