package unifiedllm

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiIDPrefix marks tool call ids synthesized for Gemini function calls.
const geminiIDPrefix = "gemini_"

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiAdapter speaks the Gemini generateContent API with a query-string key.
type GeminiAdapter struct {
	cfg   adapterConfig
	newID func() string
}

// NewGeminiAdapter creates an adapter for generativelanguage.googleapis.com.
func NewGeminiAdapter(opts ...AdapterOption) *GeminiAdapter {
	return &GeminiAdapter{
		cfg:   newAdapterConfig(geminiBaseURL, opts),
		newID: func() string { return geminiIDPrefix + uuid.NewString() },
	}
}

// Kind implements ProviderAdapter.
func (a *GeminiAdapter) Kind() ProviderKind { return ProviderGemini }

// Close implements Closer.
func (a *GeminiAdapter) Close() error { return a.cfg.close() }

// Invoke implements ProviderAdapter.
func (a *GeminiAdapter) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	if err := validateCredential(ProviderGemini, req.Credential); err != nil {
		return nil, err
	}
	model, err := requireModel(ProviderGemini, req.Model)
	if err != nil {
		return nil, err
	}

	body := buildGeminiRequest(req)
	endpoint := a.cfg.baseURL + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(req.Credential)

	var resp geminiResponse
	if err := a.cfg.postJSON(ctx, ProviderGemini, endpoint, nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, emptyReplyError(ProviderGemini, "candidates")
	}
	return a.parseParts(resp.Candidates[0].Content.Parts), nil
}

func (a *GeminiAdapter) parseParts(parts []geminiPart) *Reply {
	var texts []string
	reply := &Reply{}
	for _, p := range parts {
		switch {
		case p.FunctionCall != nil:
			args := "{}"
			if len(p.FunctionCall.Args) > 0 {
				if b, err := json.Marshal(p.FunctionCall.Args); err == nil {
					args = string(b)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, NewToolCall(a.newID(), p.FunctionCall.Name, args))
		case p.Text != "":
			texts = append(texts, p.Text)
		}
	}
	reply.Content = strings.Join(texts, "\n")
	return reply
}

func buildGeminiRequest(req InvokeRequest) geminiRequest {
	var out geminiRequest
	var system []string
	callNames := make(map[string]string)

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if t := m.Text(); t != "" {
				system = append(system, t)
			}

		case RoleAssistant:
			var parts []geminiPart
			if t := m.Text(); t != "" {
				parts = append(parts, geminiPart{Text: t})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Function.Name
				parts = append(parts, geminiPart{FunctionCall: &geminiFunctionCall{
					Name: tc.Function.Name,
					Args: ParseArguments(tc.Function.Arguments),
				}})
			}
			if len(parts) > 0 {
				out.Contents = append(out.Contents, geminiContent{Role: "model", Parts: parts})
			}

		case RoleTool:
			name := m.Name
			if name == "" {
				name = callNames[m.ToolCallID]
			}
			part := geminiPart{FunctionResponse: &geminiFunctionResponse{
				Name:     name,
				Response: functionResponsePayload(m.Text()),
			}}
			// Results of one parallel call batch share a single content.
			if n := len(out.Contents); n > 0 && out.Contents[n-1].Role == "tool" {
				out.Contents[n-1].Parts = append(out.Contents[n-1].Parts, part)
			} else {
				out.Contents = append(out.Contents, geminiContent{Role: "tool", Parts: []geminiPart{part}})
			}

		default:
			out.Contents = append(out.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Text()}}})
		}
	}

	if len(system) > 0 {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t.Parameters),
			}
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	if req.MaxTokens > 0 {
		out.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: req.MaxTokens}
	}
	return out
}

// functionResponsePayload parses tool output as JSON. Unparseable text is
// wrapped as {text} and non-object values as {result}.
func functionResponsePayload(content string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return map[string]any{"text": content}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{"result": v}
}

// geminiSchemaKeys is the subset of JSON Schema the function declaration
// format accepts.
var geminiSchemaKeys = map[string]bool{
	"type": true, "format": true, "description": true, "nullable": true,
	"enum": true, "properties": true, "required": true, "items": true,
	"minimum": true, "maximum": true, "minItems": true, "maxItems": true,
}

func geminiSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if !geminiSchemaKeys[k] {
			continue
		}
		switch k {
		case "properties":
			if props, ok := v.(map[string]any); ok {
				cleaned := make(map[string]any, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						cleaned[name] = geminiSchema(pm)
					} else {
						cleaned[name] = p
					}
				}
				v = cleaned
			}
		case "items":
			if im, ok := v.(map[string]any); ok {
				v = geminiSchema(im)
			}
		}
		out[k] = v
	}
	return out
}
