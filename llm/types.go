package llm

import (
	"strings"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single role/content pair of a chat conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Request represents a provider-neutral chat completion request.
// Fields that a provider does not understand are ignored by its wrapper.
type Request struct {
	Model          string
	Messages       []Message
	Stream         bool
	EnableThinking bool
	ThinkingBudget int
	MaxTokens      int
	Temperature    *float64
	TopP           *float64

	// Extra carries provider-specific body fields (tools, min_p, top_k,
	// response_format, ...). Keys here win over the typed fields above.
	Extra map[string]any
}

// Delta is the reasoning/answer fragment carried by one streamed record.
type Delta struct {
	Reasoning string
	Answer    string
}

// IsEmpty reports whether the delta carries no text.
func (d Delta) IsEmpty() bool {
	return d.Reasoning == "" && d.Answer == ""
}

// Result holds the accumulated reasoning trace and user-facing answer of one call.
type Result struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
}

// Append adds a delta to the result.
func (r *Result) Append(d Delta) {
	r.Reasoning += d.Reasoning
	r.Answer += d.Answer
}

// Accumulator grows a Result from successive deltas without repeated string copies.
// The zero value is ready to use.
type Accumulator struct {
	reasoning strings.Builder
	answer    strings.Builder
}

// Add appends a delta.
func (a *Accumulator) Add(d Delta) {
	a.reasoning.WriteString(d.Reasoning)
	a.answer.WriteString(d.Answer)
}

// Result returns the text accumulated so far.
func (a *Accumulator) Result() Result {
	return Result{
		Reasoning: a.reasoning.String(),
		Answer:    a.answer.String(),
	}
}

// NewTextMessage creates a new message with text content.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{Role: role, Content: text}
}

// LastUserMessage returns the content of the last user message, or "" if there is none.
func LastUserMessage(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
