package remotemodel

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
)

// GollmBackend routes completions through gollm's openrouter provider.
type GollmBackend struct {
	provider string
}

// NewGollmBackend creates a gollm backend for the OpenRouter provider.
func NewGollmBackend() *GollmBackend {
	return &GollmBackend{provider: "openrouter"}
}

// Complete implements Backend. gollm binds the key and model at construction,
// so a client is built per call.
func (b *GollmBackend) Complete(ctx context.Context, req Request) (string, error) {
	llm, err := gollm.NewLLM(
		gollm.SetProvider(b.provider),
		gollm.SetModel(req.Model),
		gollm.SetAPIKey(req.Credential),
		gollm.SetMaxTokens(req.MaxTokens),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelWarn),
	)
	if err != nil {
		return "", fmt.Errorf("create gollm client for %s: %w", b.provider, err)
	}
	return llm.Generate(ctx, gollm.NewPrompt(req.Prompt))
}
