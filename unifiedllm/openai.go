package unifiedllm

import (
	"context"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

type chatTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []WireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Tools     []chatTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func chatTools(defs []ToolDefinition) []chatTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]chatTool, len(defs))
	for i, d := range defs {
		out[i] = chatTool{Type: "function", Function: d}
	}
	return out
}

// chatCompletion performs one OpenAI-format chat completion. The sanitized
// transcript is sent as is; the first choice is already canonical.
func chatCompletion(ctx context.Context, cfg adapterConfig, provider ProviderKind, req InvokeRequest) (*Reply, error) {
	model, err := requireModel(provider, req.Model)
	if err != nil {
		return nil, err
	}
	body := chatRequest{
		Model:     model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
		Tools:     chatTools(req.Tools),
	}
	headers := map[string]string{"Authorization": "Bearer " + req.Credential}

	var resp chatResponse
	if err := cfg.postJSON(ctx, provider, cfg.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, emptyReplyError(provider, "choices")
	}
	msg := resp.Choices[0].Message
	reply := &Reply{Content: msg.Content}
	if len(msg.ToolCalls) > 0 {
		reply.ToolCalls = msg.ToolCalls
	}
	return reply, nil
}

// OpenAIAdapter speaks the OpenAI chat completions API with bearer auth.
type OpenAIAdapter struct {
	cfg adapterConfig
}

// NewOpenAIAdapter creates an adapter for api.openai.com.
func NewOpenAIAdapter(opts ...AdapterOption) *OpenAIAdapter {
	return &OpenAIAdapter{cfg: newAdapterConfig(openAIBaseURL, opts)}
}

// Kind implements ProviderAdapter.
func (a *OpenAIAdapter) Kind() ProviderKind { return ProviderOpenAI }

// Close implements Closer.
func (a *OpenAIAdapter) Close() error { return a.cfg.close() }

// Invoke implements ProviderAdapter.
func (a *OpenAIAdapter) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	if err := validateCredential(ProviderOpenAI, req.Credential); err != nil {
		return nil, err
	}
	return chatCompletion(ctx, a.cfg, ProviderOpenAI, req)
}

// OpenRouterAdapter speaks the OpenAI wire format to the OpenRouter proxy.
// When no credential is configured it asks the resolver for one, and failing
// that redirects the user to log in and returns no reply.
type OpenRouterAdapter struct {
	cfg        adapterConfig
	resolver   CredentialResolver
	redirector LoginRedirector
}

// NewOpenRouterAdapter creates an adapter for openrouter.ai. resolver and
// redirector may be nil.
func NewOpenRouterAdapter(resolver CredentialResolver, redirector LoginRedirector, opts ...AdapterOption) *OpenRouterAdapter {
	return &OpenRouterAdapter{
		cfg:        newAdapterConfig(openRouterBaseURL, opts),
		resolver:   resolver,
		redirector: redirector,
	}
}

// Kind implements ProviderAdapter.
func (a *OpenRouterAdapter) Kind() ProviderKind { return ProviderOpenRouter }

// Close implements Closer.
func (a *OpenRouterAdapter) Close() error { return a.cfg.close() }

// Invoke implements ProviderAdapter.
func (a *OpenRouterAdapter) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	credential, err := ResolveProxyCredential(ctx, req.Credential, a.resolver)
	if err != nil {
		if a.redirector == nil {
			return nil, err
		}
		if rerr := a.redirector.RedirectToLogin(ctx, ProviderOpenRouter); rerr != nil {
			return nil, rerr
		}
		return nil, nil
	}
	if err := validateCredential(ProviderOpenRouter, credential); err != nil {
		return nil, err
	}
	req.Credential = credential
	return chatCompletion(ctx, a.cfg, ProviderOpenRouter, req)
}
