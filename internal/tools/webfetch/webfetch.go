// Package webfetch renders a page in headless Chrome and distills the
// readable article text. Trend normalization uses it when search hits come
// back without scraped content.
package webfetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxChars = 20000
)

// Article is the readable extraction of one page. Status 599 marks a render
// failure; callers treat that as a soft miss, not an error.
type Article struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	SiteName string `json:"site_name"`
	Text     string `json:"text"`
	TopImage string `json:"top_image"`
	Status   int    `json:"status"`
	RenderMS int    `json:"render_ms"`
}

// Fetcher renders and extracts articles. Zero values fall back to defaults.
type Fetcher struct {
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

func NewFetcher(timeout time.Duration, maxChars int) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Fetcher{Timeout: timeout, MaxChars: maxChars, UserAgent: "ContentAgent/1.0"}
}

// Fetch renders rawURL and returns the extracted article. Render and
// extraction failures come back as a degraded Article, never an error, so a
// dead link cannot sink a whole trend batch.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Article, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Article{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, err := f.renderHTML(ctx, rawURL)
	if err != nil {
		return Article{URL: rawURL, Status: 599, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}

	article, err := readability.FromReader(strings.NewReader(html), parseURL(rawURL))
	if err != nil {
		return Article{URL: rawURL, Status: 200, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := article.TextContent
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return Article{
		URL:      rawURL,
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: article.SiteName,
		Text:     strings.TrimSpace(text),
		TopImage: article.Image,
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func (f *Fetcher) renderHTML(ctx context.Context, rawURL string) (string, error) {
	ua := f.UserAgent
	if ua == "" {
		ua = "ContentAgent/1.0"
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(ua),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
