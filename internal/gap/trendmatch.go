package gap

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/internal/helpers"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// trendMatchPrompt makes article extraction deterministic enough to compare
// against company profiles. The output keys feed normalizeTrendRecord.
const trendMatchPrompt = `You are TrendMatch, an analytical model that extracts structured, comparable information from web trend articles.

Your goal is to produce a compact, normalized JSON representation of each trend suitable for cosine-similarity matching with company profiles (which include company mission, audience, and products with descriptions).

### What to do
Analyze the article text to extract:
- The **main industry or domain** this trend belongs to
- The **core concept** or practice being discussed
- The **target audience** or users/businesses affected
- The **types of relevant products or services**
- The **practical business value or benefit**
- A list of **semantic keywords or multi-word phrases**

### Rules for consistency
1. Always output the same JSON keys, even if data is not found.
2. If a field is not clearly mentioned, set its value to "unknown" or an empty array ([]).
3. Do not include explanations, commentary, or extra text.
4. Keep phrasing factual, short, and domain-specific.
5. Output only one valid JSON object.

### Output format
{
  "title": "<short descriptive title>",
  "domain": "<main industry or field, or 'unknown'>",
  "core_concept": "<main idea or 'unknown'>",
  "target_audience": "<who this applies to, or 'unknown'>",
  "relevant_products_or_services": [
    "<list of relevant items or leave [] if none>"
  ],
  "business_value": "<functional benefit or 'unknown'>",
  "keywords": [
    "<list of key multi-word phrases or leave [] if none>"
  ]
}`

// trendArticle is the cleaned search hit passed to the model as JSON.
type trendArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// FetchTrends searches Firecrawl per keyword and runs each hit through the
// TrendMatch extraction. A non-empty topic replaces the keyword list. Output
// records keep the per-keyword wrapper shape so flattenTrendRecords can
// consume them directly.
func (e *Engine) FetchTrends(ctx context.Context, prov provider.Provider, apiKey string, keywords []string, topic string) ([]map[string]any, error) {
	if strings.TrimSpace(topic) != "" {
		keywords = []string{strings.TrimSpace(topic)}
	}
	var out []map[string]any
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := e.fc.Search(ctx, apiKey, "latest trends about "+kw, e.cfg.MaxTrendsPerKeyword)
		if err != nil {
			e.logger.Printf("search failed for %q: %v", kw, err)
			continue
		}
		var results []any
		for _, item := range result.Web {
			article := e.buildArticle(ctx, item.Title, item.URL, item.Description, item.Markdown, item.Metadata)
			record, err := e.matchTrend(ctx, prov, article)
			if err != nil {
				e.logger.Printf("trend extraction failed for %q: %v", item.URL, err)
				continue
			}
			results = append(results, record)
		}
		if len(results) == 0 {
			continue
		}
		out = append(out, map[string]any{"keyword": kw, "results": results})
	}
	return out, nil
}

// buildArticle fills in full text with a headless fetch when the search hit is
// URL-only and article fetching is enabled.
func (e *Engine) buildArticle(ctx context.Context, title, url, description, markdown string, metadata map[string]any) trendArticle {
	article := trendArticle{
		Title:       title,
		URL:         url,
		Description: description,
		Markdown:    markdown,
		SiteName:    asString(metadata["og:site_name"]),
	}
	if article.Markdown == "" && article.Description == "" && e.trends.FetchArticle && e.articles != nil && url != "" {
		if fetched, err := e.articles.Fetch(ctx, url); err == nil && fetched.Text != "" {
			article.Markdown = fetched.Text
		}
	}
	if e.trends.ArticleChars > 0 && len(article.Markdown) > e.trends.ArticleChars {
		article.Markdown = article.Markdown[:e.trends.ArticleChars]
	}
	return article
}

func (e *Engine) matchTrend(ctx context.Context, prov provider.Provider, article trendArticle) (map[string]any, error) {
	payload, err := json.Marshal(article)
	if err != nil {
		return nil, err
	}
	res, err := prov.Completion(ctx, models.ChatRequest{
		Model: "analysis",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: trendMatchPrompt},
			{Role: models.RoleUser, Content: string(payload)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, err
	}
	content, err := helpers.ExtractJSON(res.Message.Content)
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(content), &record); err != nil {
		return nil, err
	}
	return record, nil
}
