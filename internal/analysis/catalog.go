package analysis

import (
	"context"
	"log"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/internal/helpers"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

const (
	catalogBatchSize    = 10
	defaultCatalogPages = 30
)

// catalogExcludes drops per-product pages, translated mirrors and raw
// sitemaps from the mapped URL list; they add volume without new facts.
var catalogExcludes = []string{"/products/", "/ar/", "sitemap.xml"}

const catalogPrompt = "Extract company info, products with their categories, and all relevant keywords."

// CatalogExtractor builds a Business profile from a company website: map the
// site, filter noise URLs, run schema-guided extraction over page batches and
// merge the partial profiles into one.
type CatalogExtractor struct {
	fc     *firecrawl.Client
	logger *log.Logger
}

func NewCatalogExtractor(fc *firecrawl.Client) *CatalogExtractor {
	return &CatalogExtractor{
		fc:     fc,
		logger: log.New(log.Writer(), "[CATALOG] ", log.LstdFlags),
	}
}

// Extract ingests up to maxPages pages of siteURL and returns the merged
// business plus the number of pages fed into extraction. A batch failure
// after the first keeps the partial profile.
func (e *CatalogExtractor) Extract(ctx context.Context, apiKey, siteURL string, maxPages int) (models.Business, int, error) {
	if maxPages <= 0 {
		maxPages = defaultCatalogPages
	}

	links, err := e.fc.MapSite(ctx, apiKey, siteURL, 0)
	if err != nil {
		return models.Business{}, 0, err
	}

	// Site maps repeat pages under http/https and tracking-param variants;
	// dedupe on the canonical form before spending the page budget.
	var pages []string
	dedup := map[string]struct{}{}
	for _, link := range links {
		if excludedPage(link.URL) {
			continue
		}
		key := link.URL
		if canonical, err := helpers.CanonicalURL(link.URL); err == nil {
			key = canonical
		}
		if _, dup := dedup[key]; dup {
			continue
		}
		dedup[key] = struct{}{}
		pages = append(pages, link.URL)
		if len(pages) == maxPages {
			break
		}
	}
	if len(pages) == 0 {
		pages = []string{siteURL}
	}
	e.logger.Printf("extracting %d pages from %s", len(pages), siteURL)

	schema := catalogSchema()
	var items []map[string]any
	for i := 0; i < len(pages); i += catalogBatchSize {
		end := i + catalogBatchSize
		if end > len(pages) {
			end = len(pages)
		}
		batch, err := e.fc.Extract(ctx, apiKey, pages[i:end], catalogPrompt, schema)
		if err != nil {
			if len(items) == 0 {
				return models.Business{}, 0, err
			}
			e.logger.Printf("batch %d error, keeping partial profile: %v", i/catalogBatchSize+1, err)
			break
		}
		items = append(items, batch...)
	}

	return mergeBusiness(items), len(pages), nil
}

func excludedPage(url string) bool {
	for _, frag := range catalogExcludes {
		if strings.Contains(url, frag) {
			return true
		}
	}
	return false
}

// mergeBusiness folds per-batch extractions into one profile: single-value
// fields keep the first non-empty answer, list fields union case-insensitively
// and products deduplicate by category plus name.
func mergeBusiness(items []map[string]any) models.Business {
	var biz models.Business
	seen := map[string]struct{}{}
	for _, item := range items {
		fillString(&biz.Domain, item["domain"])
		fillString(&biz.Name, item["company_name"])
		fillString(&biz.Industry, item["industry"])
		fillString(&biz.Mission, item["company_mission"])
		fillString(&biz.Location, item["location"])
		fillString(&biz.TargetAudience, item["target_audience"])
		biz.TargetMarket = mergeUnique(biz.TargetMarket, item["target_market"])
		biz.PrimaryKeywords = mergeUnique(biz.PrimaryKeywords, item["primary_keywords"])
		biz.SecondaryKeywords = mergeUnique(biz.SecondaryKeywords, item["secondary_keywords"])
		biz.TrendingTopics = mergeUnique(biz.TrendingTopics, item["trending_topics"])
		biz.IndustryTerms = mergeUnique(biz.IndustryTerms, item["industry_terms"])
		biz.ValuePropositions = mergeUnique(biz.ValuePropositions, item["value_propositions"])
		biz.ContentThemes = mergeUnique(biz.ContentThemes, item["content_themes"])

		products, _ := item["products"].([]any)
		for _, raw := range products {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			p := parseProduct(m)
			if p.Name == "" {
				continue
			}
			key := strings.ToLower(p.Category + "|" + p.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			biz.Products = append(biz.Products, p)
		}
	}
	return biz
}

func parseProduct(m map[string]any) models.Product {
	var p models.Product
	fillString(&p.Name, m["name"])
	fillString(&p.Category, m["category"])
	fillString(&p.Description, m["description"])
	fillString(&p.Pricing, m["pricing"])
	p.Features = mergeUnique(nil, m["features"])
	p.Keywords = mergeUnique(nil, m["keywords"])
	if p.Category == "" {
		// Gap reports group by category; products without one still need a bucket.
		p.Category = "Uncategorized"
	}
	return p
}

func fillString(dst *string, v any) {
	if *dst != "" {
		return
	}
	if s, ok := v.(string); ok {
		*dst = strings.TrimSpace(s)
	}
}

func mergeUnique(dst []string, v any) []string {
	items, ok := v.([]any)
	if !ok {
		return dst
	}
	have := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		have[strings.ToLower(s)] = struct{}{}
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := have[strings.ToLower(s)]; dup {
			continue
		}
		have[strings.ToLower(s)] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func catalogSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"domain":             str,
			"company_name":       str,
			"industry":           str,
			"company_mission":    str,
			"location":           str,
			"target_market":      strArray,
			"primary_keywords":   strArray,
			"secondary_keywords": strArray,
			"trending_topics":    strArray,
			"industry_terms":     strArray,
			"products": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        str,
						"category":    str,
						"description": str,
						"features":    strArray,
						"pricing":     str,
						"keywords":    strArray,
					},
				},
			},
			"target_audience":    str,
			"value_propositions": strArray,
			"content_themes":     strArray,
		},
		"required": []string{"domain", "company_name", "products", "primary_keywords", "location", "target_market"},
	}
}
