package sse

import (
	"encoding/json"

	"github.com/aschepis/backscratcher/galaxy/llm"
)

type chatCompletionChunk struct {
	Choices []struct {
		Delta chatCompletionFields `json:"delta"`
	} `json:"choices"`
}

type chatCompletionFields struct {
	ReasoningContent string `json:"reasoning_content"`
	Think            string `json:"think"`
	Content          string `json:"content"`
}

// ChatCompletionDelta extracts choices[0].delta from an OpenAI-style chunk.
// Reasoning comes from reasoning_content, or think for providers that use that
// name. Chunks without choices (usage trailers) yield an empty delta.
func ChatCompletionDelta(payload []byte) (llm.Delta, error) {
	var chunk chatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return llm.Delta{}, err
	}
	if len(chunk.Choices) == 0 {
		return llm.Delta{}, nil
	}
	return chunk.Choices[0].Delta.delta(), nil
}

func (f chatCompletionFields) delta() llm.Delta {
	reasoning := f.ReasoningContent
	if reasoning == "" {
		reasoning = f.Think
	}
	return llm.Delta{Reasoning: reasoning, Answer: f.Content}
}

// Dify stream event names that carry text.
const (
	DifyEventMessage      = "message"
	DifyEventAgentMessage = "agent_message"
	DifyEventAgentThought = "agent_thought"
)

type difyEvent struct {
	Event     string `json:"event"`
	Answer    string `json:"answer"`
	Thought   string `json:"thought"`
	Reasoning string `json:"reasoning"`
}

// DifyEvent extracts text from a Dify chat stream event. Answer text comes from
// message and agent_message events; reasoning from the reasoning field, or the
// thought of agent_thought events. Other events yield an empty delta.
func DifyEvent(payload []byte) (llm.Delta, error) {
	var ev difyEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return llm.Delta{}, err
	}

	d := llm.Delta{Reasoning: ev.Reasoning}
	switch ev.Event {
	case DifyEventMessage, DifyEventAgentMessage, "":
		d.Answer = ev.Answer
	case DifyEventAgentThought:
		if d.Reasoning == "" {
			d.Reasoning = ev.Thought
		}
	}
	return d, nil
}
