package unifiedllm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single provider HTTP request.
const DefaultTimeout = 120 * time.Second

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 64 << 10

// adapterConfig holds the HTTP settings shared by every adapter.
type adapterConfig struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	headers    map[string]string
}

// AdapterOption configures a provider adapter.
type AdapterOption func(*adapterConfig)

// WithBaseURL overrides the provider's fixed endpoint root.
func WithBaseURL(url string) AdapterOption {
	return func(c *adapterConfig) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) AdapterOption {
	return func(c *adapterConfig) {
		c.timeout = d
	}
}

// WithHTTPClient supplies the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) AdapterOption {
	return func(c *adapterConfig) {
		c.httpClient = hc
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) AdapterOption {
	return func(c *adapterConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

func newAdapterConfig(defaultBaseURL string, opts []AdapterOption) adapterConfig {
	cfg := adapterConfig{baseURL: defaultBaseURL, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	return cfg
}

// close drops idle keep-alive connections held by the adapter's client.
func (c adapterConfig) close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// postJSON sends body as JSON and decodes a 2xx reply into out. Any other
// status becomes a ProviderError carrying the raw body.
func (c adapterConfig) postJSON(ctx context.Context, provider ProviderKind, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &SDKError{Message: "encode request", Cause: err}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &ProviderError{SDKError: SDKError{Message: "build request", Cause: err}, Provider: provider}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return &ProviderError{SDKError: SDKError{Message: "request timed out", Cause: err}, Provider: provider, Retryable: true}
			}
			return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
		}
		return &ProviderError{SDKError: SDKError{Message: "request failed", Cause: err}, Provider: provider, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ErrorFromStatusCode(provider, resp.StatusCode, string(raw), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{SDKError: SDKError{Message: "read response", Cause: err}, Provider: provider}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{
			SDKError: SDKError{Message: "decode response", Cause: err},
			Provider: provider,
			Body:     truncateBody(raw),
		}
	}
	return nil
}

func parseRetryAfter(v string) *float64 {
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs < 0 {
		return nil
	}
	return &secs
}

func truncateBody(raw []byte) string {
	if len(raw) > maxErrorBody {
		return string(raw[:maxErrorBody])
	}
	return string(raw)
}

// emptyReplyError reports a 2xx response that carried no usable candidate.
func emptyReplyError(provider ProviderKind, what string) error {
	return &ProviderError{
		SDKError: SDKError{Message: fmt.Sprintf("response has no %s", what)},
		Provider: provider,
	}
}
