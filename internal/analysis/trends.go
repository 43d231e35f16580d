package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/webfetch"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

const (
	maxWebItems  = 10
	maxNewsItems = 10
)

const trendDigestPrompt = "You are an expert trend analyst. " +
	"Extract exactly five clear phrase level trends. " +
	"Return only a JSON array of five strings."

// TrendFetcher turns a web search into five phrase-level trends: every hit is
// summarized into one sentence, the combined digest is distilled into five
// phrases, and each phrase becomes a Trend pointing at the first web hit.
type TrendFetcher struct {
	fc       *firecrawl.Client
	articles *webfetch.Fetcher
	cfg      config.TrendsConfig
	logger   *log.Logger
}

// NewTrendFetcher builds the pipeline. articles may be nil; it only serves
// hits that came back without any scraped text.
func NewTrendFetcher(fc *firecrawl.Client, articles *webfetch.Fetcher, cfg config.TrendsConfig) *TrendFetcher {
	return &TrendFetcher{
		fc:       fc,
		articles: articles,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[TRENDS] ", log.LstdFlags),
	}
}

// Fetch searches for trends about topic, or about the first six keywords when
// no topic is given, and distills the hits into at most five trends.
func (t *TrendFetcher) Fetch(ctx context.Context, prov provider.Provider, apiKey string, keywords []string, topic string) ([]models.Trend, error) {
	query := buildTrendQuery(keywords, topic)
	result, err := t.fc.Search(ctx, apiKey, query, maxWebItems+maxNewsItems)
	if err != nil {
		return nil, err
	}

	var summaries []string
	web := result.Web
	if len(web) > maxWebItems {
		web = web[:maxWebItems]
	}
	for _, item := range web {
		summaries = append(summaries, t.summarize(ctx, prov, item))
	}
	news := result.News
	if len(news) > maxNewsItems {
		news = news[:maxNewsItems]
	}
	for _, item := range news {
		summaries = append(summaries, t.summarize(ctx, prov, item))
	}

	combined := strings.Join(summaries, "\n")
	if len(combined) > 15000 {
		combined = combined[:15000]
	}
	t.logger.Printf("combined summary length: %d", len(combined))

	phrases, err := t.distill(ctx, prov, combined)
	if err != nil {
		return nil, err
	}

	firstURL := ""
	if len(result.Web) > 0 {
		firstURL = result.Web[0].URL
	}
	trends := make([]models.Trend, 0, len(phrases))
	for _, phrase := range phrases {
		trends = append(trends, models.Trend{Title: phrase, URL: firstURL, Source: "firecrawl"})
	}
	return trends, nil
}

// RefineTopic sharpens a manually typed topic into the leading trend phrase
// about it. Failures are soft; the manual topic survives untouched.
func (t *TrendFetcher) RefineTopic(ctx context.Context, prov provider.Provider, apiKey string, keywords []string, manualTopic string) (string, []models.Trend) {
	trends, err := t.Fetch(ctx, prov, apiKey, keywords, manualTopic)
	if err != nil {
		t.logger.Printf("topic trends error: %v", err)
		return manualTopic, nil
	}
	if len(trends) > 0 && strings.TrimSpace(trends[0].Title) != "" {
		return trends[0].Title, trends
	}
	return manualTopic, trends
}

// summarize compresses one hit into a single sentence. Hits with no text at
// all get a headless article fetch first, when a fetcher is wired.
func (t *TrendFetcher) summarize(ctx context.Context, prov provider.Provider, item firecrawl.SearchItem) string {
	text := item.Text()
	if text == "" && item.Markdown != "" {
		text = item.Markdown
		if len(text) > 2000 {
			text = text[:2000]
		}
	}
	if text == "" && t.articles != nil && t.cfg.FetchArticle && item.URL != "" {
		if article, err := t.articles.Fetch(ctx, item.URL); err == nil && article.Text != "" {
			text = article.Text
			if t.cfg.ArticleChars > 0 && len(text) > t.cfg.ArticleChars {
				text = text[:t.cfg.ArticleChars]
			}
		}
	}
	block := fmt.Sprintf("%s. %s. Source: %s", item.Title, text, item.URL)
	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "synthesis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "Summarize the item in one clear sentence."},
			{Role: models.RoleUser, Content: block},
		},
		Temperature: 0.2,
	})
	if err != nil {
		t.logger.Printf("summary error: %v", err)
		return ""
	}
	return strings.TrimSpace(res.Message.Content)
}

func (t *TrendFetcher) distill(ctx context.Context, prov provider.Provider, combined string) ([]string, error) {
	if combined == "" {
		combined = "No data"
	}
	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "synthesis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: trendDigestPrompt},
			{Role: models.RoleUser, Content: combined},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("distill trends: %w", err)
	}

	raw := stripFences(res.Message.Content)
	var phrases []string
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		for _, x := range arr {
			if s := strings.TrimSpace(fmt.Sprint(x)); s != "" {
				phrases = append(phrases, s)
			}
		}
	} else {
		for _, line := range strings.Split(raw, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				phrases = append(phrases, s)
			}
		}
	}
	if len(phrases) > 5 {
		phrases = phrases[:5]
	}
	return phrases, nil
}

// buildTrendQuery prefers an explicit topic; otherwise the first six keywords
// drive the search, with a generic fallback when nothing usable remains.
func buildTrendQuery(keywords []string, topic string) string {
	if strings.TrimSpace(topic) != "" {
		return "latest trends about " + strings.TrimSpace(topic)
	}
	kw := SanitizeKeywords(keywords)
	if len(kw) > 6 {
		kw = kw[:6]
	}
	if len(kw) == 0 {
		kw = []string{"technology", "business", "innovation"}
	}
	return "latest trends about " + strings.Join(kw, ", ")
}

// SanitizeKeywords trims model artifacts (backticks, stray brackets) from a
// keyword list.
func SanitizeKeywords(keywords []string) []string {
	var cleaned []string
	for _, k := range keywords {
		ck := strings.Trim(strings.TrimSpace(k), "`")
		if ck == "" || ck == "[" || ck == "]" {
			continue
		}
		cleaned = append(cleaned, ck)
	}
	return cleaned
}
