package unifiedllm

import "strings"

// WireMessage is the provider-ready form of a Message produced by Sanitize.
// Content is null only for assistant messages that carry tool calls, and
// ToolCalls is omitted entirely rather than sent as an empty array.
type WireMessage struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, treating null as empty.
func (w WireMessage) Text() string {
	if w.Content == nil {
		return ""
	}
	return *w.Content
}

// Sanitize returns a provider-ready copy of the transcript. The input slice
// and its messages are not modified.
func Sanitize(transcript []Message) []WireMessage {
	out := make([]WireMessage, 0, len(transcript))
	for _, m := range transcript {
		out = append(out, sanitizeMessage(m))
	}
	return out
}

func sanitizeMessage(m Message) WireMessage {
	switch m.Role {
	case RoleAssistant:
		calls := wellFormedToolCalls(m.ToolCalls)
		if len(calls) == 0 {
			return WireMessage{Role: RoleAssistant, Content: stringPtr(m.Content), Name: m.Name}
		}
		w := WireMessage{Role: RoleAssistant, ToolCalls: calls, Name: m.Name}
		if trimmed := strings.TrimSpace(m.Content); trimmed != "" {
			w.Content = stringPtr(trimmed)
		}
		return w

	case RoleTool:
		return WireMessage{
			Role:       RoleTool,
			Content:    stringPtr(m.Content),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}

	default:
		return WireMessage{Role: m.Role, Content: stringPtr(m.Content), Name: m.Name}
	}
}

// wellFormedToolCalls keeps calls that have both an id and a function name.
// Empty arguments are normalized to an empty JSON object.
func wellFormedToolCalls(calls []ToolCall) []ToolCall {
	var out []ToolCall
	for _, tc := range calls {
		if tc.ID == "" || tc.Function.Name == "" {
			continue
		}
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out = append(out, NewToolCall(tc.ID, tc.Function.Name, args))
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
