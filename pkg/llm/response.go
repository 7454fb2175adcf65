// Package llm defines the response contract shared by model providers and
// the servers that surface their output.
package llm

import "strings"

const (
	reasoningOpen  = "<reasoning>"
	reasoningClose = "</reasoning>"
)

// Response is a model reply with its reasoning separated from the answer.
type Response struct {
	// Text is the answer body with any reasoning block removed.
	Text string `json:"text"`

	// Reasoning is the model's reasoning block, when present.
	Reasoning string `json:"reasoning,omitempty"`
}

// ErrorResponse is the structured error payload returned by HTTP surfaces.
type ErrorResponse struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

// ExtractReasoning splits a raw model reply per the reasoning grammar: the
// reply may begin with a single, well-formed, non-nested
// <reasoning>...</reasoning> block, and everything after it is the answer.
// Replies without a leading block come back unchanged with empty reasoning.
func ExtractReasoning(raw string) Response {
	trimmed := strings.TrimSpace(raw)

	if !strings.HasPrefix(trimmed, reasoningOpen) {
		return Response{Text: trimmed}
	}

	rest := trimmed[len(reasoningOpen):]
	end := strings.Index(rest, reasoningClose)
	if end < 0 {
		// Unterminated block: not well-formed, treat the whole reply as text.
		return Response{Text: trimmed}
	}

	return Response{
		Reasoning: strings.TrimSpace(rest[:end]),
		Text:      strings.TrimSpace(rest[end+len(reasoningClose):]),
	}
}
