package unifiedllm

import (
	"context"
	"errors"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter.
type mockAdapter struct {
	kind     ProviderKind
	reply    *Reply
	err      error
	requests []InvokeRequest
	closed   bool
}

func (m *mockAdapter) Kind() ProviderKind { return m.kind }

func (m *mockAdapter) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func (m *mockAdapter) Close() error {
	m.closed = true
	return nil
}

func newMockAdapter(kind ProviderKind, text string) *mockAdapter {
	return &mockAdapter{kind: kind, reply: &Reply{Content: text}}
}

func TestClientInvoke(t *testing.T) {
	mock := newMockAdapter(ProviderOpenAI, "Hello!")
	client := NewClient(WithProvider(mock))

	reply, err := client.Invoke(context.Background(), InvokeRequest{
		Credential: "sk-test",
		Messages:   Sanitize([]Message{UserMessage("Hi")}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", reply.Content)
	}
	got := mock.requests[0]
	if got.Provider != ProviderOpenAI {
		t.Errorf("expected provider filled in, got %q", got.Provider)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", got.Model)
	}
}

func TestClientProviderRouting(t *testing.T) {
	openai := newMockAdapter(ProviderOpenAI, "OpenAI response")
	anthropic := newMockAdapter(ProviderAnthropic, "Anthropic response")

	client := NewClient(
		WithProvider(openai),
		WithProvider(anthropic),
		WithDefaultProvider(ProviderOpenAI),
	)

	// Explicit provider.
	reply, err := client.Invoke(context.Background(), InvokeRequest{Provider: ProviderAnthropic, Model: "sonnet"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "Anthropic response" {
		t.Errorf("expected Anthropic response, got %q", reply.Content)
	}
	if anthropic.requests[0].Model != "claude-3-5-sonnet-latest" {
		t.Errorf("expected alias resolved, got %q", anthropic.requests[0].Model)
	}

	// Default provider.
	reply, err = client.Invoke(context.Background(), InvokeRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "OpenAI response" {
		t.Errorf("expected OpenAI response, got %q", reply.Content)
	}
}

func TestClientNoProvider(t *testing.T) {
	client := NewClient()
	_, err := client.Invoke(context.Background(), InvokeRequest{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for no provider")
	}
	if !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
}

func TestClientUnregisteredProvider(t *testing.T) {
	client := NewClient(WithProvider(newMockAdapter(ProviderOpenAI, "x")))
	_, err := client.Invoke(context.Background(), InvokeRequest{Provider: ProviderGemini})
	if !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestClientWrapsAdapterError(t *testing.T) {
	mock := &mockAdapter{kind: ProviderGemini, err: ErrorFromStatusCode(ProviderGemini, 400, "bad", nil)}
	client := NewClient(WithProvider(mock))
	_, err := client.Invoke(context.Background(), InvokeRequest{})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 400 {
		t.Errorf("expected wrapped ProviderError, got %v", err)
	}
}

func TestClientNoReplyPassesThrough(t *testing.T) {
	mock := &mockAdapter{kind: ProviderOpenRouter}
	client := NewClient(WithProvider(mock))
	reply, err := client.Invoke(context.Background(), InvokeRequest{})
	if err != nil || reply != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", reply, err)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	mock := newMockAdapter(ProviderOpenAI, "response")
	var order []int

	mw1 := func(ctx context.Context, req InvokeRequest, next Handler) (*Reply, error) {
		order = append(order, 1)
		reply, err := next(ctx, req)
		order = append(order, 4)
		return reply, err
	}
	mw2 := func(ctx context.Context, req InvokeRequest, next Handler) (*Reply, error) {
		order = append(order, 2)
		req.MaxTokens = 77
		reply, err := next(ctx, req)
		order = append(order, 3)
		return reply, err
	}

	client := NewClient(WithProvider(mock), WithMiddleware(mw1))
	client.Use(mw2)

	if _, err := client.Invoke(context.Background(), InvokeRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 3, 4}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
	if mock.requests[0].MaxTokens != 77 {
		t.Errorf("expected middleware to rewrite request, got %d", mock.requests[0].MaxTokens)
	}
}

func TestClientClose(t *testing.T) {
	mock := newMockAdapter(ProviderOpenAI, "x")
	client := NewClient(WithProvider(mock))
	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mock.closed {
		t.Error("expected adapter to be closed")
	}
}

func TestDefaultAdaptersAreClosers(t *testing.T) {
	adapters := []ProviderAdapter{
		NewOpenAIAdapter(),
		NewOpenRouterAdapter(nil, nil),
		NewGeminiAdapter(),
		NewAnthropicAdapter(),
	}
	for _, a := range adapters {
		closer, ok := a.(Closer)
		if !ok {
			t.Errorf("%s adapter does not implement Closer", a.Kind())
			continue
		}
		if err := closer.Close(); err != nil {
			t.Errorf("%s: unexpected close error: %v", a.Kind(), err)
		}
	}

	client := NewDefaultClient(nil, nil, nil)
	if err := client.Close(); err != nil {
		t.Errorf("unexpected error closing default client: %v", err)
	}
}

func TestNewDefaultClientRegistersAllProviders(t *testing.T) {
	client := NewDefaultClient(nil, nil, nil, WithDefaultProvider(ProviderGemini))
	for _, kind := range ProviderKinds {
		if _, err := client.resolveProvider(InvokeRequest{Provider: kind}); err != nil {
			t.Errorf("%s: %v", kind, err)
		}
	}
}

func TestParseProviderKind(t *testing.T) {
	kind, err := ParseProviderKind(" OpenRouter ")
	if err != nil || kind != ProviderOpenRouter {
		t.Errorf("expected openrouter, got %q, %v", kind, err)
	}
	if _, err := ParseProviderKind("cohere"); !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}
