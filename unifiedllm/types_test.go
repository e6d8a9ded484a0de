package unifiedllm

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	t.Run("SystemMessage", func(t *testing.T) {
		msg := SystemMessage("You are helpful.")
		if msg.Role != RoleSystem {
			t.Errorf("expected role %q, got %q", RoleSystem, msg.Role)
		}
		if msg.Content != "You are helpful." {
			t.Errorf("expected text %q, got %q", "You are helpful.", msg.Content)
		}
	})

	t.Run("AssistantMessage without calls", func(t *testing.T) {
		msg := AssistantMessage("Hi there")
		if msg.ToolCalls != nil {
			t.Errorf("expected nil tool calls, got %v", msg.ToolCalls)
		}
		if msg.HasToolCalls() {
			t.Error("expected HasToolCalls = false")
		}
	})

	t.Run("AssistantMessage with calls", func(t *testing.T) {
		msg := AssistantMessage("", NewToolCall("call_1", "web_search", `{"query":"go"}`))
		if !msg.HasToolCalls() {
			t.Fatal("expected HasToolCalls = true")
		}
		if msg.ToolCalls[0].Type != "function" {
			t.Errorf("expected type function, got %q", msg.ToolCalls[0].Type)
		}
	})

	t.Run("ToolResultMessage", func(t *testing.T) {
		msg := ToolResultMessage("call_123", "web_search", `{"items":[]}`)
		if msg.Role != RoleTool {
			t.Errorf("expected role %q, got %q", RoleTool, msg.Role)
		}
		if msg.ToolCallID != "call_123" {
			t.Errorf("expected tool_call_id %q, got %q", "call_123", msg.ToolCallID)
		}
		if msg.Name != "web_search" {
			t.Errorf("expected name %q, got %q", "web_search", msg.Name)
		}
	})
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if Role("developer").Valid() {
		t.Error("expected developer to be invalid")
	}
}

func TestMessageUnmarshalHeterogeneousContent(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"string", `{"role":"user","content":"hello"}`, "hello"},
		{"null", `{"role":"assistant","content":null}`, ""},
		{"missing", `{"role":"assistant"}`, ""},
		{"object", `{"role":"tool","content":{"a": 1}}`, `{"a":1}`},
		{"number", `{"role":"user","content":42}`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			if err := json.Unmarshal([]byte(tt.json), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m.Content != tt.want {
				t.Errorf("expected content %q, got %q", tt.want, m.Content)
			}
		})
	}
}

func TestToolCallUnmarshalObjectArguments(t *testing.T) {
	data := `{"id":"c1","function":{"name":"web_search","arguments":{"query":"x","count":2}}}`
	var tc ToolCall
	if err := json.Unmarshal([]byte(data), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tc.Type != "function" {
		t.Errorf("expected default type function, got %q", tc.Type)
	}
	if tc.Function.Arguments != `{"query":"x","count":2}` {
		t.Errorf("unexpected arguments %q", tc.Function.Arguments)
	}
}

func TestMessageUnmarshalDropsEmptyToolCalls(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":"hi","tool_calls":[]}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.ToolCalls != nil {
		t.Errorf("expected nil tool calls, got %v", m.ToolCalls)
	}
}

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"valid", `{"a":1,"b":"x"}`, 2},
		{"empty", "", 0},
		{"malformed", `{"a":`, 0},
		{"array", `[1,2]`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseArguments(tt.raw)
			if got == nil {
				t.Fatal("expected non-nil map")
			}
			if len(got) != tt.want {
				t.Errorf("expected %d keys, got %d", tt.want, len(got))
			}
		})
	}
}

func TestReplyMessage(t *testing.T) {
	r := Reply{Content: "  "}
	if r.HasText() {
		t.Error("expected whitespace reply to have no text")
	}
	msg := r.Message()
	if msg.Role != RoleAssistant || msg.ToolCalls != nil {
		t.Errorf("unexpected message %+v", msg)
	}
}
