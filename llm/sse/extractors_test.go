package sse

import (
	"testing"

	"github.com/aschepis/backscratcher/galaxy/llm"
)

func TestDifyEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    llm.Delta
		wantErr bool
	}{
		{
			name:    "message",
			payload: `{"event":"message","answer":"Hi","conversation_id":"c1"}`,
			want:    llm.Delta{Answer: "Hi"},
		},
		{
			name:    "agent message",
			payload: `{"event":"agent_message","answer":"there"}`,
			want:    llm.Delta{Answer: "there"},
		},
		{
			name:    "agent thought",
			payload: `{"event":"agent_thought","thought":"searching","answer":"ignored"}`,
			want:    llm.Delta{Reasoning: "searching"},
		},
		{
			name:    "message end",
			payload: `{"event":"message_end","metadata":{}}`,
			want:    llm.Delta{},
		},
		{
			name:    "explicit reasoning",
			payload: `{"event":"message","reasoning":"r","answer":"a"}`,
			want:    llm.Delta{Reasoning: "r", Answer: "a"},
		},
		{
			name:    "garbage",
			payload: `ping`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DifyEvent([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DifyEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DifyEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChatCompletionDelta_PrefersReasoningContent(t *testing.T) {
	d, err := ChatCompletionDelta([]byte(`{"choices":[{"delta":{"reasoning_content":"a","think":"b"}}]}`))
	if err != nil {
		t.Fatalf("ChatCompletionDelta failed: %v", err)
	}
	if d.Reasoning != "a" {
		t.Errorf("Expected reasoning_content to win, got %q", d.Reasoning)
	}
}
