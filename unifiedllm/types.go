package unifiedllm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the four canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// FunctionCall names a function and carries its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall represents a model-initiated tool invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// NewToolCall creates a function ToolCall.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{ID: id, Type: "function", Function: FunctionCall{Name: name, Arguments: arguments}}
}

// UnmarshalJSON accepts arguments encoded either as a JSON string or as a
// native JSON object, and tolerates a missing type.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tc.ID = raw.ID
	tc.Type = raw.Type
	if tc.Type == "" {
		tc.Type = "function"
	}
	tc.Function.Name = raw.Function.Name
	tc.Function.Arguments = coerceJSONText(raw.Function.Arguments)
	return nil
}

// Message is one turn in the conversation. ToolCalls is only set on assistant
// messages that request tools; ToolCallID and Name correlate tool results.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// UnmarshalJSON decodes a message whose content may be any JSON value.
// Null becomes the empty string, strings are kept, and anything else is
// stored as compact JSON text.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role       Role            `json:"role"`
		Content    json.RawMessage `json:"content"`
		ToolCalls  []ToolCall      `json:"tool_calls"`
		ToolCallID string          `json:"tool_call_id"`
		Name       string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{
		Role:       raw.Role,
		Content:    coerceJSONText(raw.Content),
		ToolCallID: raw.ToolCallID,
		Name:       raw.Name,
	}
	if len(raw.ToolCalls) > 0 {
		m.ToolCalls = raw.ToolCalls
	}
	return nil
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message. The tool-call field is left
// nil when calls is empty.
func AssistantMessage(text string, calls ...ToolCall) Message {
	m := Message{Role: RoleAssistant, Content: text}
	if len(calls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return m
}

// ToolResultMessage creates a tool-role Message answering the call with the
// given id.
func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Name: name}
}

// ToolDefinition describes one tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Reply is the canonical result of a provider call: a single assistant
// message candidate.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Message converts the reply into the assistant Message appended to the
// transcript.
func (r Reply) Message() Message {
	return AssistantMessage(r.Content, r.ToolCalls...)
}

// HasText reports whether the reply carries visible text.
func (r Reply) HasText() bool {
	return strings.TrimSpace(r.Content) != ""
}

// coerceJSONText turns an arbitrary JSON value into text: strings are
// unquoted, null is empty, everything else is compacted JSON.
func coerceJSONText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ParseArguments decodes raw tool arguments into a map. Malformed or
// non-object input yields an empty map rather than an error.
func ParseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		return args
	}
	return parsed
}
