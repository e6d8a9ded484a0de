package unifiedllm

import (
	"context"
	"fmt"
	"strings"
)

// ProviderKind identifies one of the supported provider back ends.
type ProviderKind string

const (
	ProviderOpenAI     ProviderKind = "openai"
	ProviderOpenRouter ProviderKind = "openrouter"
	ProviderGemini     ProviderKind = "gemini"
	ProviderAnthropic  ProviderKind = "anthropic"
)

// ProviderKinds lists every supported provider in a stable order.
var ProviderKinds = []ProviderKind{ProviderOpenAI, ProviderOpenRouter, ProviderGemini, ProviderAnthropic}

// ParseProviderKind converts a configuration string into a ProviderKind.
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProviderKinds {
		if k == known {
			return k, nil
		}
	}
	return "", NewConfigurationError("unknown provider %q", s)
}

// InvokeRequest is everything an adapter needs for one round trip.
type InvokeRequest struct {
	Provider   ProviderKind
	Credential string
	Model      string
	Messages   []WireMessage
	MaxTokens  int
	Tools      []ToolDefinition
}

// ProviderAdapter translates between the canonical message shape and one
// provider's wire format.
//
// Invoke returns (nil, nil) when the round trip was abandoned without an
// error, for example after redirecting the user to a login flow.
type ProviderAdapter interface {
	// Kind returns the provider this adapter speaks to.
	Kind() ProviderKind

	// Invoke sends the sanitized transcript and tool schema and returns the
	// model's reply in canonical form.
	Invoke(ctx context.Context, req InvokeRequest) (*Reply, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// validateCredential rejects empty or visibly malformed credentials before
// any request is built.
func validateCredential(provider ProviderKind, credential string) error {
	if credential == "" {
		return NewConfigurationError("%s: credential is required", provider)
	}
	if strings.ContainsAny(credential, " \t\r\n") {
		return NewConfigurationError("%s: credential contains whitespace", provider)
	}
	return nil
}

func requireModel(provider ProviderKind, model string) (string, error) {
	if model != "" {
		return model, nil
	}
	if info := GetLatestModel(provider); info != nil {
		return info.ID, nil
	}
	return "", fmt.Errorf("%s: %w", provider, NewConfigurationError("model is required"))
}
