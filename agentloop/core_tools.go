package agentloop

import (
	"context"
	"errors"

	"github.com/martinemde/toolrelay/remotemodel"
	"github.com/martinemde/toolrelay/sandbox"
	"github.com/martinemde/toolrelay/search"
	"github.com/martinemde/toolrelay/unifiedllm"
)

// Built-in tool names.
const (
	ToolWebSearch   = "web_search"
	ToolRemoteModel = "remote_model_proxy"
	ToolSandbox     = "sandboxed_code_exec"
)

// ToolDeps holds the back ends behind the built-in tools. Nil fields are
// replaced with defaults.
type ToolDeps struct {
	Search  *search.Client
	Remote  *remotemodel.Tool
	Sandbox *sandbox.Runner
}

// RegisterStandardTools registers web_search, remote_model_proxy and
// sandboxed_code_exec. settings is consulted on every call so key changes
// apply to the next tool run.
func RegisterStandardTools(reg *ToolRegistry, deps ToolDeps, settings func() Settings) {
	if deps.Search == nil {
		deps.Search = search.New()
	}
	if deps.Remote == nil {
		deps.Remote = remotemodel.New()
	}
	if deps.Sandbox == nil {
		deps.Sandbox = sandbox.New()
	}
	registerWebSearch(reg, deps.Search, settings)
	registerRemoteModel(reg, deps.Remote, settings)
	registerSandbox(reg, deps.Sandbox)
}

func registerWebSearch(reg *ToolRegistry, client *search.Client, settings func() Settings) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name:        ToolWebSearch,
			Description: "Search the web and return a short list of results with title, link and snippet.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query.",
					},
					"count": map[string]any{
						"type":        "integer",
						"description": "Number of results to return (1-10). Default: 3.",
						"minimum":     1,
						"maximum":     search.MaxCount,
						"default":     search.DefaultCount,
					},
				},
				"required": []string{"query"},
			},
		},
		Executor: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := GetStringArg(args, "query")
			count, ok := GetIntArg(args, "count")
			if !ok {
				count, ok = GetIntArg(args, "num")
			}
			if !ok {
				count = search.DefaultCount
			}
			s := settings()
			return client.Search(ctx, query, count, search.Keys{APIKey: s.SearchAPIKey, CX: s.SearchEngineID})
		},
	})
}

func registerRemoteModel(reg *ToolRegistry, tool *remotemodel.Tool, settings func() Settings) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name:        ToolRemoteModel,
			Description: "Ask another model, reached through the OpenRouter proxy, a single question and return its text answer.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "The prompt to send.",
					},
					"model": map[string]any{
						"type":        "string",
						"description": "OpenRouter model id. Default: " + remotemodel.DefaultModel + ".",
						"default":     remotemodel.DefaultModel,
					},
					"max_tokens": map[string]any{
						"type":        "integer",
						"description": "Maximum tokens in the answer. Default: 200.",
						"default":     remotemodel.DefaultMaxTokens,
					},
				},
				"required": []string{"prompt"},
			},
		},
		Executor: func(ctx context.Context, args map[string]any) (any, error) {
			prompt, _ := GetStringArg(args, "prompt")
			model, _ := GetStringArg(args, "model")
			maxTokens, _ := GetIntArg(args, "max_tokens")
			req := remotemodel.Request{Prompt: prompt, Model: model, MaxTokens: maxTokens}
			return tool.Call(ctx, settings().ProxyCredential(), req), nil
		},
	})
}

func registerSandbox(reg *ToolRegistry, runner *sandbox.Runner) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolSandbox,
			Description: "Run JavaScript in an isolated sandbox with no access to the host. " +
				"The code is the body of an async function: use await freely and return a value. " +
				"console.log output is captured and returned as logs.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "string",
						"description": "JavaScript source to execute.",
					},
				},
				"required": []string{"code"},
			},
		},
		Executor: func(ctx context.Context, args map[string]any) (any, error) {
			code, _ := GetStringArg(args, "code")
			if code == "" {
				return nil, errors.New("code is required")
			}
			return runner.Run(ctx, code), nil
		},
	})
}
