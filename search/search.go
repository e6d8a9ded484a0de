// Package search implements the web_search tool: Google Custom Search when a
// key pair is configured, otherwise a best-effort merge of the DuckDuckGo
// Instant Answer API and the Wikipedia page summary API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultCount = 3
	MaxCount     = 10
)

// Provider tags reported in Result.Provider.
const (
	ProviderGoogle     = "google"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderWikipedia  = "wikipedia"
	ProviderFallback   = "duckduckgo+wikipedia"
)

const noResultsWarning = "no results from fallback search sources"

// Endpoints holds the base URLs of the search back ends.
type Endpoints struct {
	Google     string
	DuckDuckGo string
	Wikipedia  string
}

// DefaultEndpoints returns the public endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Google:     "https://www.googleapis.com/customsearch/v1",
		DuckDuckGo: "https://api.duckduckgo.com/",
		Wikipedia:  "https://en.wikipedia.org/api/rest_v1/page/summary/",
	}
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Result is a successful search.
type Result struct {
	Provider string `json:"provider"`
	Query    string `json:"query"`
	Items    []Item `json:"items"`
	Warning  string `json:"warning,omitempty"`
}

// ErrorResult is returned in place of Result when the keyed engine fails.
type ErrorResult struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Keys is the Google Custom Search key pair.
type Keys struct {
	APIKey string
	CX     string
}

// Configured reports whether both halves of the key pair are present.
func (k Keys) Configured() bool {
	return k.APIKey != "" && k.CX != ""
}

// ClampCount applies the default and the upper bound to a requested count.
func ClampCount(n int) int {
	switch {
	case n <= 0:
		return DefaultCount
	case n > MaxCount:
		return MaxCount
	}
	return n
}

// Client performs web searches.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	endpoints  Endpoints
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter sets the outbound request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEndpoints overrides the back end URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// New creates a search Client. By default it allows five outbound requests
// per second and times requests out after 15 seconds.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     slog.Default(),
		endpoints:  DefaultEndpoints(),
		userAgent:  "toolrelay/1.0 (web_search tool)",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a query and returns either a Result or, when the keyed engine
// fails, an ErrorResult. Fallback failures never surface as errors.
func (c *Client) Search(ctx context.Context, query string, count int, keys Keys) (any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	count = ClampCount(count)

	if keys.Configured() {
		return c.google(ctx, query, count, keys), nil
	}
	return c.fallback(ctx, query, count), nil
}

func (c *Client) google(ctx context.Context, query string, count int, keys Keys) any {
	params := url.Values{}
	params.Set("key", keys.APIKey)
	params.Set("cx", keys.CX)
	params.Set("q", query)
	params.Set("num", fmt.Sprint(count))

	status, body, err := c.get(ctx, c.endpoints.Google+"?"+params.Encode())
	if err != nil {
		c.logger.Warn("google search request failed", "error", err)
		return ErrorResult{Error: err.Error(), Status: status, Body: string(body)}
	}
	if status < 200 || status > 299 {
		c.logger.Warn("google search returned error status", "status", status)
		return ErrorResult{Error: fmt.Sprintf("google search failed with status %d", status), Status: status, Body: string(body)}
	}

	var resp struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ErrorResult{Error: "decode google response: " + err.Error(), Status: status, Body: string(body)}
	}
	items := resp.Items
	if len(items) > count {
		items = items[:count]
	}
	if items == nil {
		items = []Item{}
	}
	return Result{Provider: ProviderGoogle, Query: query, Items: items}
}

// fallback queries both keyless sources concurrently and merges them.
func (c *Client) fallback(ctx context.Context, query string, count int) Result {
	var ddg, wiki []Item

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := c.duckDuckGo(gctx, query, count)
		if err != nil {
			c.logger.Debug("duckduckgo lookup failed", "error", err)
			return nil
		}
		ddg = items
		return nil
	})
	g.Go(func() error {
		items, err := c.wikipedia(gctx, query)
		if err != nil {
			c.logger.Debug("wikipedia lookup failed", "error", err)
			return nil
		}
		wiki = items
		return nil
	})
	_ = g.Wait()

	switch {
	case len(ddg) > 0 && len(wiki) > 0:
		n := count - 1
		if n > len(ddg) {
			n = len(ddg)
		}
		items := make([]Item, 0, n+1)
		items = append(items, ddg[:n]...)
		items = append(items, wiki[0])
		return Result{Provider: ProviderFallback, Query: query, Items: items}
	case len(ddg) > 0:
		return Result{Provider: ProviderDuckDuckGo, Query: query, Items: ddg}
	case len(wiki) > 0:
		return Result{Provider: ProviderWikipedia, Query: query, Items: wiki}
	}
	return Result{Provider: ProviderFallback, Query: query, Items: []Item{}, Warning: noResultsWarning}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (c *Client) duckDuckGo(ctx context.Context, query string, count int) ([]Item, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := c.getJSON(ctx, c.endpoints.DuckDuckGo+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	var items []Item
	if resp.AbstractText != "" {
		title := resp.Heading
		if title == "" {
			title = query
		}
		items = append(items, Item{Title: title, Link: resp.AbstractURL, Snippet: resp.AbstractText})
	}
	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(items) >= count {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.FirstURL == "" || t.Text == "" {
				continue
			}
			title := t.Text
			if i := strings.Index(title, " - "); i > 0 {
				title = title[:i]
			}
			items = append(items, Item{Title: title, Link: t.FirstURL, Snippet: t.Text})
		}
	}
	walk(resp.RelatedTopics)
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (c *Client) wikipedia(ctx context.Context, query string) ([]Item, error) {
	title := url.PathEscape(strings.ReplaceAll(query, " ", "_"))

	var resp wikiSummary
	if err := c.getJSON(ctx, c.endpoints.Wikipedia+title, &resp); err != nil {
		return nil, err
	}
	if resp.Extract == "" {
		return nil, nil
	}
	link := resp.ContentURLs.Desktop.Page
	if link == "" {
		link = "https://en.wikipedia.org/wiki/" + title
	}
	return []Item{{Title: resp.Title, Link: link, Snippet: resp.Extract}}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	status, body, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("status %d", status)
	}
	return json.Unmarshal(body, out)
}

// get issues a rate-limited GET and returns the status and body.
func (c *Client) get(ctx context.Context, rawURL string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, which can carry the API key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = fmt.Errorf("%s request failed: %w", ue.Op, ue.Err)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
