// Package remotemodel implements the remote_model_proxy tool: a one-shot
// completion against a model reachable through the OpenRouter proxy.
package remotemodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/martinemde/toolrelay/unifiedllm"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel     = "openai/gpt-4o-mini"
	DefaultMaxTokens = 200
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
)

// Request is one completion.
type Request struct {
	Credential string
	Model      string
	Prompt     string
	MaxTokens  int
}

// Backend performs the completion and returns the first choice's text.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIBackend talks to any OpenAI-compatible endpoint with go-openai.
type OpenAIBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIBackend creates a backend for baseURL. An empty baseURL means
// OpenRouter; a nil httpClient means http.DefaultClient.
func NewOpenAIBackend(baseURL string, httpClient *http.Client) *OpenAIBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIBackend{baseURL: baseURL, httpClient: httpClient}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	cfg := openai.DefaultConfig(req.Credential)
	cfg.BaseURL = b.baseURL
	cfg.HTTPClient = b.httpClient
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Tool resolves a credential and runs the backend.
type Tool struct {
	backend  Backend
	resolver unifiedllm.CredentialResolver
	logger   *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithBackend replaces the default go-openai backend.
func WithBackend(b Backend) Option {
	return func(t *Tool) { t.backend = b }
}

// WithCredentialResolver sets the fallback used when no credential is
// configured.
func WithCredentialResolver(r unifiedllm.CredentialResolver) Option {
	return func(t *Tool) { t.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) { t.logger = l }
}

// New creates a Tool.
func New(opts ...Option) *Tool {
	t := &Tool{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.backend == nil {
		t.backend = NewOpenAIBackend("", nil)
	}
	return t
}

// TextResult is a successful completion.
type TextResult struct {
	Text string `json:"text"`
}

// ErrorResult reports a failure without raising.
type ErrorResult struct {
	Error string `json:"error"`
}

// Call runs one completion. It always returns a TextResult or ErrorResult.
func (t *Tool) Call(ctx context.Context, credential string, req Request) any {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrorResult{Error: "prompt is required"}
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	key, err := unifiedllm.ResolveProxyCredential(ctx, credential, t.resolver)
	if err != nil {
		if errors.Is(err, unifiedllm.ErrNoCredential) {
			return ErrorResult{Error: "remote model proxy requires an OpenRouter credential"}
		}
		return ErrorResult{Error: err.Error()}
	}
	req.Credential = key

	text, err := t.backend.Complete(ctx, req)
	if err != nil {
		t.logger.Warn("remote model call failed", "model", req.Model, "error", err)
		return ErrorResult{Error: fmt.Sprintf("remote model call failed: %v", err)}
	}
	return TextResult{Text: text}
}
