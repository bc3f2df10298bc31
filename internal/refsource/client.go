// Package refsource looks up reference documents in a remote document
// service so their numbers can back a draft.
package refsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config drives client behaviour.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration
	Rows       int
	RetryDelay time.Duration
}

// Document is one search hit.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
}

// SearchResult is the outcome of one query.
type SearchResult struct {
	Query     string
	Documents []Document
	Checked   bool
}

// Texts returns the non-empty document bodies.
func (r SearchResult) Texts() []string {
	out := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d.Content)
		}
	}
	return out
}

// Client performs searches with a TTL cache and a single retry on 429.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	rows       int
	cacheTTL   time.Duration
	retryDelay time.Duration
	cache      sync.Map // map[string]cacheEntry
}

type cacheEntry struct {
	at     time.Time
	result SearchResult
}

var (
	// ErrMissingCredentials is returned when the client cannot authenticate.
	ErrMissingCredentials = errors.New("refsource client missing api key")
	// ErrMissingBaseURL is returned when no service endpoint is configured.
	ErrMissingBaseURL = errors.New("refsource client missing base url")
)

// NewClient constructs a client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	rows := cfg.Rows
	if rows <= 0 {
		rows = 10
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		rows:       rows,
		cacheTTL:   ttl,
		retryDelay: retryDelay,
	}, nil
}

// Search fetches documents matching query, serving repeats from the cache.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	if c == nil {
		return SearchResult{}, errors.New("refsource client is nil")
	}
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return SearchResult{}, nil
	}

	if entry, ok := c.cache.Load(key); ok {
		cached := entry.(cacheEntry)
		if time.Since(cached.at) < c.cacheTTL {
			return cached.result, nil
		}
		c.cache.Delete(key)
	}

	result, err := c.performRequest(ctx, key)
	if err != nil {
		return SearchResult{}, err
	}
	c.cache.Store(key, cacheEntry{at: time.Now(), result: result})
	return result, nil
}

func (c *Client) performRequest(ctx context.Context, query string) (SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("rows", fmt.Sprintf("%d", c.rows))

	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint = endpoint + "&" + params.Encode()
	} else {
		endpoint = endpoint + "?" + params.Encode()
	}

	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return SearchResult{}, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return SearchResult{}, ctx.Err()
		case <-time.After(c.retryDelay):
		}
		resp, err = c.do(ctx, endpoint)
		if err != nil {
			return SearchResult{}, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("refsource api status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SearchResult{}, fmt.Errorf("decode refsource response: %w", err)
	}

	seen := make(map[string]struct{}, len(payload.Results))
	var docs []Document
	for _, item := range payload.Results {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			content = strings.TrimSpace(item.Snippet)
		}
		if content == "" {
			continue
		}
		id := strings.TrimSpace(item.ID)
		if id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		docs = append(docs, Document{
			ID:          id,
			Title:       strings.TrimSpace(item.Title),
			Source:      strings.TrimSpace(item.URL),
			Content:     content,
			PublishedAt: item.PublishedAt,
		})
	}
	return SearchResult{Query: query, Documents: docs, Checked: true}, nil
}

func (c *Client) do(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	return c.httpClient.Do(req)
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Snippet     string    `json:"snippet"`
	PublishedAt time.Time `json:"published_at"`
}
