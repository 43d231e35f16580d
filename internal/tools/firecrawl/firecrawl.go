// Package firecrawl is a REST client for the Firecrawl v2 API: web search
// with scraped markdown, site mapping, and schema-guided extraction. Trend
// discovery and catalog ingestion both sit on top of it.
package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
)

// SearchItem is one search hit. Web hits carry Description and usually
// Markdown; news hits carry Snippet.
type SearchItem struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Description string         `json:"description"`
	Snippet     string         `json:"snippet"`
	Markdown    string         `json:"markdown"`
	Metadata    map[string]any `json:"metadata"`
}

// Text returns the best available body text for the hit.
func (it SearchItem) Text() string {
	if it.Description != "" {
		return it.Description
	}
	return it.Snippet
}

// SearchResult groups hits by source feed.
type SearchResult struct {
	Web  []SearchItem `json:"web"`
	News []SearchItem `json:"news"`
}

// Client talks to the Firecrawl API. The configured key is the default;
// request-scoped keys override it per call.
type Client struct {
	cfg    config.TrendsConfig
	http   *http.Client
	logger *log.Logger
}

func New(cfg config.TrendsConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: log.New(log.Writer(), "[FIRECRAWL] ", log.LstdFlags),
	}
}

// Search runs one query and returns scraped hits.
func (c *Client) Search(ctx context.Context, apiKey, query string, limit int) (SearchResult, error) {
	if limit <= 0 {
		limit = c.cfg.SearchLimit
	}
	if limit <= 0 {
		limit = 5
	}
	payload := map[string]any{
		"query":         query,
		"limit":         limit,
		"scrapeOptions": map[string]any{"formats": []string{"markdown"}},
	}
	var out struct {
		Success bool         `json:"success"`
		Data    SearchResult `json:"data"`
	}
	c.logger.Printf("query: %s", query)
	if err := c.post(ctx, apiKey, "/v2/search", payload, &out); err != nil {
		return SearchResult{}, err
	}
	return out.Data, nil
}

// MapLink is one discovered page of a mapped site.
type MapLink struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MapSite lists the pages of a site, sitemap included.
func (c *Client) MapSite(ctx context.Context, apiKey, siteURL string, limit int) ([]MapLink, error) {
	if limit <= 0 {
		limit = 5000
	}
	payload := map[string]any{
		"url":     siteURL,
		"sitemap": "include",
		"limit":   limit,
	}
	var out struct {
		Success bool      `json:"success"`
		Links   []MapLink `json:"links"`
	}
	if err := c.post(ctx, apiKey, "/v2/map", payload, &out); err != nil {
		return nil, err
	}
	c.logger.Printf("mapped %s: %d links", siteURL, len(out.Links))
	return out.Links, nil
}

// Extract runs schema-guided extraction over a URL batch. The v2 endpoint is
// asynchronous: a job id comes back first and the result is polled. Some
// deployments answer synchronously with data inline; both shapes are handled.
func (c *Client) Extract(ctx context.Context, apiKey string, urls []string, prompt string, schema map[string]any) ([]map[string]any, error) {
	payload := map[string]any{
		"urls":   urls,
		"prompt": prompt,
		"schema": schema,
	}
	var out struct {
		Success bool            `json:"success"`
		ID      string          `json:"id"`
		Status  string          `json:"status"`
		Data    json.RawMessage `json:"data"`
	}
	if err := c.post(ctx, apiKey, "/v2/extract", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Data) > 0 && string(out.Data) != "null" {
		return decodeExtractData(out.Data)
	}
	if out.ID == "" {
		return nil, errors.New("firecrawl: extract returned neither data nor job id")
	}
	return c.waitForExtract(ctx, apiKey, out.ID)
}

func (c *Client) waitForExtract(ctx context.Context, apiKey, jobID string) ([]map[string]any, error) {
	deadline := time.Now().Add(3 * time.Minute)
	for {
		var out struct {
			Success bool            `json:"success"`
			Status  string          `json:"status"`
			Data    json.RawMessage `json:"data"`
			Error   string          `json:"error"`
		}
		if err := c.get(ctx, apiKey, "/v2/extract/"+jobID, &out); err != nil {
			return nil, err
		}
		switch out.Status {
		case "completed":
			return decodeExtractData(out.Data)
		case "failed", "cancelled":
			if out.Error == "" {
				out.Error = out.Status
			}
			return nil, fmt.Errorf("firecrawl: extract job %s: %s", jobID, out.Error)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("firecrawl: extract job %s timed out", jobID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func decodeExtractData(raw json.RawMessage) ([]map[string]any, error) {
	var many []map[string]any
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("firecrawl: decode extract data: %w", err)
	}
	return []map[string]any{one}, nil
}

func (c *Client) post(ctx context.Context, apiKey, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, apiKey, out)
}

func (c *Client) get(ctx context.Context, apiKey, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, apiKey, out)
}

func (c *Client) do(req *http.Request, apiKey string, out any) error {
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return &agent.AuthError{Provider: "firecrawl", Reason: "API key not configured"}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode firecrawl response: %w", err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(b))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason := "API key rejected"
		if detail != "" {
			reason = detail
		}
		return &agent.AuthError{Provider: "firecrawl", Reason: reason}
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &agent.RateLimitError{Provider: "firecrawl", RetryAfter: retryAfter}
	default:
		return fmt.Errorf("firecrawl: unexpected status %d: %s", resp.StatusCode, detail)
	}
}
