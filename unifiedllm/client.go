package unifiedllm

import (
	"context"
	"fmt"
	"sync"
)

// Handler performs one provider round trip.
type Handler func(ctx context.Context, req InvokeRequest) (*Reply, error)

// Middleware wraps a provider call. It receives the request and a next function
// that calls the downstream handler, and returns the reply.
type Middleware func(ctx context.Context, req InvokeRequest, next Handler) (*Reply, error)

// Client holds registered provider adapters, routes requests by provider
// kind, and applies middleware.
type Client struct {
	providers       map[ProviderKind]ProviderAdapter
	defaultProvider ProviderKind
	middleware      []Middleware
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter under its own kind.
func WithProvider(adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[adapter.Kind()] = adapter
	}
}

// WithDefaultProvider sets the provider used when a request names none.
func WithDefaultProvider(kind ProviderKind) ClientOption {
	return func(c *Client) {
		c.defaultProvider = kind
	}
}

// WithMiddleware adds middleware to the client.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[ProviderKind]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	// If no default and exactly one provider, use it.
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for kind := range c.providers {
			c.defaultProvider = kind
		}
	}
	return c
}

// NewDefaultClient registers one adapter per supported provider, all sharing
// the given adapter options.
func NewDefaultClient(resolver CredentialResolver, redirector LoginRedirector, adapterOpts []AdapterOption, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithProvider(NewOpenAIAdapter(adapterOpts...)),
		WithProvider(NewOpenRouterAdapter(resolver, redirector, adapterOpts...)),
		WithProvider(NewGeminiAdapter(adapterOpts...)),
		WithProvider(NewAnthropicAdapter(adapterOpts...)),
	}
	return NewClient(append(base, opts...)...)
}

// Use appends middleware after construction.
func (c *Client) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw...)
}

// resolveProvider determines which provider adapter to use for a request.
func (c *Client) resolveProvider(req InvokeRequest) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kind := req.Provider
	if kind == "" {
		kind = c.defaultProvider
	}
	if kind == "" {
		// Try to infer from model catalog.
		if info := GetModelInfo(req.Model); info != nil {
			kind = info.Provider
		}
	}
	if kind == "" {
		return nil, NewConfigurationError("no provider specified and no default provider configured")
	}

	adapter, ok := c.providers[kind]
	if !ok {
		return nil, NewConfigurationError("provider %q is not registered", kind)
	}
	return adapter, nil
}

// Invoke sends a request through middleware to the resolved provider.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*Reply, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}

	if req.Provider == "" {
		req.Provider = adapter.Kind()
	}
	req.Model = ResolveModel(req.Provider, req.Model)

	handler := Handler(adapter.Invoke)

	c.mu.RLock()
	middleware := append([]Middleware(nil), c.middleware...)
	c.mu.RUnlock()

	// Apply middleware in reverse order so first registered runs first.
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := handler
		handler = func(ctx context.Context, r InvokeRequest) (*Reply, error) {
			return mw(ctx, r, next)
		}
	}

	reply, err := handler(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", req.Provider, err)
	}
	return reply, nil
}

// Close releases resources held by all registered providers.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
