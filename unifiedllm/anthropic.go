package unifiedllm

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

const (
	anthropicBaseURL          = "https://api.anthropic.com"
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 1024
)

const (
	anthropicIDPrefix  = "anthropic_"
	toolResultIDPrefix = "toolu_"
)

// anthropicBlock is a union of text, tool_use and tool_result blocks.
type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// AnthropicAdapter speaks the Anthropic Messages API.
type AnthropicAdapter struct {
	cfg   adapterConfig
	newID func(prefix string) string
}

// NewAnthropicAdapter creates an adapter for api.anthropic.com.
func NewAnthropicAdapter(opts ...AdapterOption) *AnthropicAdapter {
	return &AnthropicAdapter{
		cfg:   newAdapterConfig(anthropicBaseURL, opts),
		newID: func(prefix string) string { return prefix + uuid.NewString() },
	}
}

// Kind implements ProviderAdapter.
func (a *AnthropicAdapter) Kind() ProviderKind { return ProviderAnthropic }

// Close implements Closer.
func (a *AnthropicAdapter) Close() error { return a.cfg.close() }

// Invoke implements ProviderAdapter.
func (a *AnthropicAdapter) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	if err := validateCredential(ProviderAnthropic, req.Credential); err != nil {
		return nil, err
	}
	model, err := requireModel(ProviderAnthropic, req.Model)
	if err != nil {
		return nil, err
	}

	body := a.buildRequest(model, req)
	headers := map[string]string{
		"x-api-key":         req.Credential,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := a.cfg.postJSON(ctx, ProviderAnthropic, a.cfg.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return nil, err
	}
	return a.parseContent(resp.Content), nil
}

func (a *AnthropicAdapter) parseContent(blocks []anthropicBlock) *Reply {
	var text strings.Builder
	reply := &Reply{}
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			id := b.ID
			if id == "" {
				id = a.newID(anthropicIDPrefix)
			}
			args := "{}"
			if input := bytes.TrimSpace(b.Input); len(input) > 0 && input[0] == '{' && json.Valid(input) {
				args = coerceJSONText(input)
			}
			reply.ToolCalls = append(reply.ToolCalls, NewToolCall(id, b.Name, args))
		}
	}
	reply.Content = text.String()
	return reply
}

func (a *AnthropicAdapter) buildRequest(model string, req InvokeRequest) anthropicRequest {
	out := anthropicRequest{Model: model, MaxTokens: req.MaxTokens}
	if out.MaxTokens <= 0 {
		out.MaxTokens = anthropicDefaultMaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if t := m.Text(); t != "" {
				system = append(system, t)
			}

		case RoleAssistant:
			var blocks []anthropicBlock
			if t := m.Text(); strings.TrimSpace(t) != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: t})
			}
			for _, tc := range m.ToolCalls {
				input, _ := json.Marshal(ParseArguments(tc.Function.Arguments))
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
			out.Messages = appendAnthropicBlocks(out.Messages, "assistant", blocks)

		case RoleTool:
			id := m.ToolCallID
			if id == "" {
				id = a.newID(toolResultIDPrefix)
			}
			out.Messages = appendAnthropicBlocks(out.Messages, "user", []anthropicBlock{{
				Type:      "tool_result",
				ToolUseID: id,
				Content:   reserializeJSON(m.Text()),
			}})

		default:
			var blocks []anthropicBlock
			if t := m.Text(); strings.TrimSpace(t) != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: t})
			}
			out.Messages = appendAnthropicBlocks(out.Messages, "user", blocks)
		}
	}
	out.System = strings.Join(system, "\n\n")

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out.Tools = append(out.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return out
}

// appendAnthropicBlocks merges blocks into the previous message when the
// role repeats, since the API requires alternating roles.
func appendAnthropicBlocks(msgs []anthropicMessage, role string, blocks []anthropicBlock) []anthropicMessage {
	if len(blocks) == 0 {
		return msgs
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == role {
		msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
		return msgs
	}
	return append(msgs, anthropicMessage{Role: role, Content: blocks})
}

// reserializeJSON compacts content that parses as JSON and returns anything
// else unchanged.
func reserializeJSON(content string) string {
	var buf bytes.Buffer
	if json.Valid([]byte(content)) && json.Compact(&buf, []byte(content)) == nil {
		return buf.String()
	}
	return content
}
