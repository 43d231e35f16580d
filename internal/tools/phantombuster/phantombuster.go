// Package phantombuster drives the PhantomBuster agents that scrape LinkedIn
// activity and publish queued posts. The scrape flow is launch, poll the
// container log for the result.json export URL, then download the posts.
package phantombuster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/helpers"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

const (
	launchPath      = "/api/v2/agents/launch"
	fetchOutputPath = "/api/v2/containers/fetch-output"
)

var (
	resultURLPrimary  = regexp.MustCompile(`(?i)JSON saved at\s+(https?://\S+?)\s+result\.json`)
	resultURLFallback = regexp.MustCompile(`(?i)(https?://\S*?result\.json)`)
)

// Credentials are the request-scoped values one scrape or publish needs.
// Never stored on the client.
type Credentials struct {
	APIKey        string
	SessionCookie string
	UserAgent     string
}

// ScrapeResult is the export URL plus the decoded posts.
type ScrapeResult struct {
	JSONURL string        `json:"json_url"`
	Posts   []models.Post `json:"posts"`
}

// Client calls the PhantomBuster v2 API. A nil cache disables scrape caching.
type Client struct {
	cfg      config.LinkedInConfig
	maxPosts int
	http     *http.Client
	cache    *redis.Client
	logger   *log.Logger
}

// New builds a client. maxPosts caps how many activities one scrape collects;
// zero falls back to 20.
func New(cfg config.LinkedInConfig, maxPosts int, cache *redis.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.phantombuster.com"
	}
	if maxPosts <= 0 {
		maxPosts = 20
	}
	return &Client{
		cfg:      cfg,
		maxPosts: maxPosts,
		http:     &http.Client{Timeout: 60 * time.Second},
		cache:    cache,
		logger:   log.New(log.Writer(), "[PHANTOM] ", log.LstdFlags),
	}
}

// ScrapePosts runs the full scrape flow for one profile. progress receives
// human-readable status lines as the container works. A fresh cache entry for
// the profile short-circuits the launch entirely.
func (c *Client) ScrapePosts(ctx context.Context, creds Credentials, profileURL string, progress func(string)) (ScrapeResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if cached, ok := c.cachedScrape(ctx, profileURL); ok {
		c.logger.Printf("cache hit for %s (%d posts)", profileURL, len(cached.Posts))
		progress(fmt.Sprintf("Using cached scrape (%d posts)", len(cached.Posts)))
		return cached, nil
	}

	progress("Launching PhantomBuster scrape...")
	containerID, err := c.Launch(ctx, creds, profileURL)
	if err != nil {
		return ScrapeResult{}, err
	}

	progress("Scrape launched! Waiting for results...")
	jsonURL, err := c.WaitForResult(ctx, creds.APIKey, containerID, progress)
	if err != nil {
		return ScrapeResult{}, err
	}

	progress("Scrape completed! Downloading posts...")
	posts, err := c.DownloadPosts(ctx, jsonURL)
	if err != nil {
		return ScrapeResult{}, err
	}
	progress(fmt.Sprintf("Downloaded %d posts successfully!", len(posts)))

	result := ScrapeResult{JSONURL: jsonURL, Posts: posts}
	c.storeScrape(ctx, profileURL, result)
	return result, nil
}

// Launch starts the activities-scraper agent against one profile and returns
// the container id.
func (c *Client) Launch(ctx context.Context, creds Credentials, profileURL string) (string, error) {
	payload := map[string]any{
		"id": c.cfg.ScraperAgentID,
		"argument": map[string]any{
			"numberOfLinesPerLaunch": 1,
			"numberMaxOfPosts":       c.maxPosts,
			"csvName":                "result",
			"activitiesToScrape":     []string{"Post"},
			"spreadsheetUrl":         profileURL,
			"sessionCookie":          creds.SessionCookie,
			"userAgent":              creds.UserAgent,
		},
	}
	var out struct {
		ContainerID json.Number `json:"containerId"`
		ID          json.Number `json:"id"`
	}
	if err := c.postJSON(ctx, creds.APIKey, launchPath, payload, &out); err != nil {
		return "", err
	}
	containerID := out.ContainerID.String()
	if containerID == "" {
		containerID = out.ID.String()
	}
	if containerID == "" {
		return "", errors.New("no container id returned by PhantomBuster")
	}
	return containerID, nil
}

// WaitForResult polls the container output until the result.json export URL
// appears or the configured wait budget runs out.
func (c *Client) WaitForResult(ctx context.Context, apiKey, containerID string, progress func(string)) (string, error) {
	if progress == nil {
		progress = func(string) {}
	}
	pollEvery := c.cfg.PollInterval
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	maxWait := c.cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 180 * time.Second
	}

	started := time.Now()
	lastProgress := started
	polls := 0
	for {
		text, err := c.fetchOutput(ctx, apiKey, containerID)
		if err != nil {
			return "", err
		}
		if m := resultURLPrimary.FindStringSubmatch(text); m != nil {
			return strings.TrimRight(m[1], "/") + "/result.json", nil
		}
		if m := resultURLFallback.FindStringSubmatch(text); m != nil {
			return m[1], nil
		}

		polls++
		elapsed := time.Since(started)
		if elapsed >= maxWait {
			return "", &agent.ToolExecutionError{
				Tool: "scrape_profile_tool",
				Err:  errors.New("could not locate result.json url in PhantomBuster output"),
			}
		}
		if time.Since(lastProgress) >= 15*time.Second || polls%3 == 0 {
			progress(pollProgressLine(elapsed))
			lastProgress = time.Now()
		}
		c.logger.Printf("container %s: result url not found yet, sleeping %s", containerID, pollEvery)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollEvery):
		}
	}
}

func pollProgressLine(elapsed time.Duration) string {
	secs := int(elapsed.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("Scraping in progress... (%ds elapsed)", secs)
	case secs < 120:
		return fmt.Sprintf("Still scraping... This usually takes 2-3 minutes (%ds elapsed)", secs)
	default:
		return fmt.Sprintf("Scraping taking longer than usual... Please wait (%ds elapsed)", secs)
	}
}

// DownloadPosts fetches and decodes the result.json export.
func (c *Client) DownloadPosts(ctx context.Context, jsonURL string) ([]models.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download posts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download posts: unexpected status %d", resp.StatusCode)
	}
	var posts []models.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode posts export: %w", err)
	}
	c.logger.Printf("downloaded %d posts", len(posts))
	return posts, nil
}

// Autopost launches the auto-poster agent against a content sheet. The launch
// is fire-and-forget; PhantomBuster publishes asynchronously.
func (c *Client) Autopost(ctx context.Context, creds Credentials, sheetURL string) (string, error) {
	payload := map[string]any{
		"id": c.cfg.PosterAgentID,
		"argument": map[string]any{
			"numberTweetsPerLaunch":  10,
			"visibility":             "anyone",
			"sessionCookie":          creds.SessionCookie,
			"userAgent":              creds.UserAgent,
			"spreadsheetUrl":         sheetURL,
			"numberOfPostsPerLaunch": 1,
		},
	}
	var out struct {
		ContainerID json.Number `json:"containerId"`
		ID          json.Number `json:"id"`
	}
	if err := c.postJSON(ctx, creds.APIKey, launchPath, payload, &out); err != nil {
		return "", err
	}
	containerID := out.ContainerID.String()
	if containerID == "" {
		containerID = out.ID.String()
	}
	c.logger.Printf("autopost launched, container %s", containerID)
	return containerID, nil
}

func (c *Client) postJSON(ctx context.Context, apiKey, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-phantombuster-key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("phantombuster request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode phantombuster response: %w", err)
	}
	return nil
}

func (c *Client) fetchOutput(ctx context.Context, apiKey, containerID string) (string, error) {
	url := c.cfg.BaseURL + fetchOutputPath + "?id=" + containerID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-phantombuster-key", apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch container output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.statusError(resp)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read container output: %w", err)
	}
	return string(b), nil
}

func (c *Client) statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(b))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		reason := "API key or LinkedIn session cookie rejected"
		if detail != "" {
			reason = detail
		}
		return &agent.AuthError{Provider: "phantombuster", Reason: reason}
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &agent.RateLimitError{Provider: "phantombuster", RetryAfter: retryAfter}
	default:
		return fmt.Errorf("phantombuster: unexpected status %d: %s", resp.StatusCode, detail)
	}
}

// cacheKey fingerprints the canonical profile URL, so trk/utm variants of one
// profile share an entry and raw URLs stay out of redis keys.
func (c *Client) cacheKey(profileURL string) string {
	if fp, err := helpers.URLFingerprint(profileURL); err == nil {
		return "scrape:" + fp
	}
	return "scrape:" + profileURL
}

func (c *Client) cachedScrape(ctx context.Context, profileURL string) (ScrapeResult, bool) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return ScrapeResult{}, false
	}
	raw, err := c.cache.Get(ctx, c.cacheKey(profileURL)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("scrape cache read failed: %v", err)
		}
		return ScrapeResult{}, false
	}
	var cached ScrapeResult
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return ScrapeResult{}, false
	}
	return cached, true
}

func (c *Client) storeScrape(ctx context.Context, profileURL string, result ScrapeResult) {
	if c.cache == nil || c.cfg.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(profileURL), raw, c.cfg.CacheTTL).Err(); err != nil {
		c.logger.Printf("scrape cache write failed: %v", err)
	}
}
