package gap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/zainabsaad99/EECE798S-Project/models"
)

// flatProduct is one catalog row with its parsed price.
type flatProduct struct {
	Business     string
	Name         string
	Description  string
	Keywords     []string
	PricingRaw   string
	PriceNumeric *float64
}

// CatalogStats counts products and businesses.
type CatalogStats struct {
	TotalProducts       int            `json:"total_products"`
	TotalBusinesses     int            `json:"total_businesses"`
	ProductsPerBusiness map[string]int `json:"products_per_business"`
}

// PricingAnalysis summarizes the price distribution.
type PricingAnalysis struct {
	HasPricing   bool           `json:"has_pricing"`
	AvgPrice     float64        `json:"avg_price,omitempty"`
	MinPrice     float64        `json:"min_price,omitempty"`
	MaxPrice     float64        `json:"max_price,omitempty"`
	Q1           float64        `json:"q1,omitempty"`
	Q3           float64        `json:"q3,omitempty"`
	PriceBuckets map[string]int `json:"price_buckets,omitempty"`
}

// DescriptionQuality measures how complete the catalog copy is.
type DescriptionQuality struct {
	TotalProducts        int     `json:"total_products"`
	EmptyDescriptions    int     `json:"empty_descriptions"`
	EmptyDescriptionsPct float64 `json:"empty_descriptions_pct"`
	AvgDescriptionLength float64 `json:"avg_description_length"`
	AvgTitleLength       float64 `json:"avg_title_length"`
	ShortTitles          int     `json:"short_titles"`
	LongTitles           int     `json:"long_titles"`
}

// KeywordCoverage lists the most frequent keywords per field.
type KeywordCoverage struct {
	TopProductKeywords   []KeywordCount `json:"top_product_keywords"`
	TopPrimaryKeywords   []KeywordCount `json:"top_primary_keywords"`
	TopSecondaryKeywords []KeywordCount `json:"top_secondary_keywords"`
	TrendingTopics       []KeywordCount `json:"trending_topics"`
}

// TrendAlignment scores one trend's lexical overlap with the catalog.
type TrendAlignment struct {
	Trend         string   `json:"trend"`
	CoverageScore float64  `json:"coverage_score"`
	MatchedTokens []string `json:"matched_tokens"`
	Status        string   `json:"status"`
}

// CatalogReport is the deterministic half of the analysis, computed without
// any model calls.
type CatalogReport struct {
	CatalogStats       CatalogStats       `json:"catalog_stats"`
	PricingAnalysis    PricingAnalysis    `json:"pricing_analysis"`
	DescriptionQuality DescriptionQuality `json:"description_quality"`
	KeywordCoverage    KeywordCoverage    `json:"keyword_coverage"`
	TrendAlignment     []TrendAlignment   `json:"trend_alignment"`
	OpportunitySummary []string           `json:"opportunity_summary"`
}

func flattenProducts(businesses []models.Business) []flatProduct {
	var items []flatProduct
	for _, biz := range businesses {
		name := businessName(biz)
		for _, p := range biz.Products {
			items = append(items, flatProduct{
				Business:     name,
				Name:         strings.TrimSpace(p.Name),
				Description:  strings.TrimSpace(p.Description),
				Keywords:     p.Keywords,
				PricingRaw:   p.Pricing,
				PriceNumeric: parsePrice(p.Pricing),
			})
		}
	}
	return items
}

// parsePrice pulls the leading numeric value out of a free-form price string.
// Currency markers are stripped first; "L.L" must go before "LL" or the dot
// survives.
func parsePrice(price string) *float64 {
	s := strings.TrimSpace(price)
	if s == "" {
		return nil
	}
	for _, token := range []string{"From", "from", "+"} {
		s = strings.ReplaceAll(s, token, "")
	}
	for _, symbol := range []string{"$", "€", "£", "L.L", "LL", "LBP"} {
		s = strings.ReplaceAll(s, symbol, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	first := strings.Fields(s)[0]
	v, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (e *Engine) buildCatalogReport(businesses []models.Business, flat []flatProduct, trends []TrendRecord) (*CatalogReport, error) {
	alignment, err := e.alignTrends(flat, trends)
	if err != nil {
		return nil, err
	}
	report := &CatalogReport{
		CatalogStats:       catalogStats(businesses, flat),
		PricingAnalysis:    pricingAnalysis(flat),
		DescriptionQuality: descriptionQuality(flat),
		KeywordCoverage:    keywordCoverage(businesses, flat),
		TrendAlignment:     alignment,
	}
	report.OpportunitySummary = opportunitySummary(report.DescriptionQuality, report.PricingAnalysis, report.TrendAlignment)
	return report, nil
}

func catalogStats(businesses []models.Business, flat []flatProduct) CatalogStats {
	perBusiness := map[string]int{}
	for _, item := range flat {
		perBusiness[item.Business]++
	}
	names := map[string]struct{}{}
	for _, biz := range businesses {
		names[businessName(biz)] = struct{}{}
	}
	return CatalogStats{
		TotalProducts:       len(flat),
		TotalBusinesses:     len(names),
		ProductsPerBusiness: perBusiness,
	}
}

func pricingAnalysis(flat []flatProduct) PricingAnalysis {
	var prices []float64
	for _, p := range flat {
		if p.PriceNumeric != nil {
			prices = append(prices, *p.PriceNumeric)
		}
	}
	if len(prices) == 0 {
		return PricingAnalysis{HasPricing: false}
	}
	sort.Float64s(prices)

	var sum float64
	for _, v := range prices {
		sum += v
	}
	quantile := func(q float64) float64 {
		idx := int(q * float64(len(prices)-1))
		return prices[idx]
	}
	q1, q3 := quantile(0.25), quantile(0.75)
	buckets := map[string]int{"low": 0, "mid": 0, "high": 0}
	for _, v := range prices {
		switch {
		case v <= q1:
			buckets["low"]++
		case v >= q3:
			buckets["high"]++
		default:
			buckets["mid"]++
		}
	}
	return PricingAnalysis{
		HasPricing:   true,
		AvgPrice:     round(sum/float64(len(prices)), 2),
		MinPrice:     round(prices[0], 2),
		MaxPrice:     round(prices[len(prices)-1], 2),
		Q1:           round(q1, 2),
		Q3:           round(q3, 2),
		PriceBuckets: buckets,
	}
}

func descriptionQuality(flat []flatProduct) DescriptionQuality {
	var descLengths, nameLengths []int
	empty := 0
	for _, p := range flat {
		if p.Description == "" {
			empty++
		} else {
			descLengths = append(descLengths, len(p.Description))
		}
		if p.Name != "" {
			nameLengths = append(nameLengths, len(p.Name))
		}
	}
	short, long := 0, 0
	for _, l := range nameLengths {
		if l < 20 {
			short++
		}
		if l > 60 {
			long++
		}
	}
	total := len(flat)
	pct := 0.0
	if total > 0 {
		pct = round(float64(empty)/float64(total)*100, 2)
	}
	return DescriptionQuality{
		TotalProducts:        total,
		EmptyDescriptions:    empty,
		EmptyDescriptionsPct: pct,
		AvgDescriptionLength: meanInts(descLengths),
		AvgTitleLength:       meanInts(nameLengths),
		ShortTitles:          short,
		LongTitles:           long,
	}
}

func keywordCoverage(businesses []models.Business, flat []flatProduct) KeywordCoverage {
	products := map[string]int{}
	primary := map[string]int{}
	secondary := map[string]int{}
	topics := map[string]int{}

	bump := func(counter map[string]int, tokens []string) {
		for _, t := range tokens {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				counter[t]++
			}
		}
	}
	for _, biz := range businesses {
		bump(primary, biz.PrimaryKeywords)
		bump(secondary, biz.SecondaryKeywords)
		bump(topics, biz.TrendingTopics)
	}
	for _, p := range flat {
		bump(products, p.Keywords)
	}
	return KeywordCoverage{
		TopProductKeywords:   topCounts(products, 20),
		TopPrimaryKeywords:   topCounts(primary, 20),
		TopSecondaryKeywords: topCounts(secondary, 20),
		TrendingTopics:       topCounts(topics, 20),
	}
}

// alignTrends indexes product names and keywords in an in-memory search
// index, then scores each trend by the share of its tokens that hit at least
// one product document.
func (e *Engine) alignTrends(flat []flatProduct, trends []TrendRecord) ([]TrendAlignment, error) {
	if len(trends) == 0 {
		return nil, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("alignment index: %w", err)
	}
	defer idx.Close()

	for i, p := range flat {
		doc := map[string]any{
			"name":     p.Name,
			"keywords": strings.Join(p.Keywords, " "),
		}
		if err := idx.Index(fmt.Sprintf("p%d", i), doc); err != nil {
			return nil, fmt.Errorf("alignment index: %w", err)
		}
	}

	matched := func(token string) bool {
		query := bleve.NewMatchQuery(token)
		req := bleve.NewSearchRequestOptions(query, 1, 0, false)
		res, err := idx.Search(req)
		return err == nil && res.Total > 0
	}

	var out []TrendAlignment
	for _, trend := range trends {
		if trend.Trend == "" {
			continue
		}
		tokens := tokenize(trend.Trend + " " + strings.Join(trend.Keywords, " "))
		if len(tokens) == 0 {
			continue
		}
		var hits []string
		for _, token := range tokens {
			if len(flat) > 0 && matched(token) {
				hits = append(hits, token)
			}
		}
		score := float64(len(hits)) / float64(len(tokens))
		status := CategoryGap
		switch {
		case score >= e.cfg.TokenCoveredThreshold:
			status = CategoryCovered
		case score >= e.cfg.TokenWeakThreshold:
			status = "weak_coverage"
		}
		out = append(out, TrendAlignment{
			Trend:         trend.Trend,
			CoverageScore: round(score, 2),
			MatchedTokens: hits,
			Status:        status,
		})
	}
	return out, nil
}

func opportunitySummary(desc DescriptionQuality, pricing PricingAnalysis, alignment []TrendAlignment) []string {
	var opps []string
	if desc.EmptyDescriptionsPct > 40 {
		opps = append(opps, "A large portion of products lack descriptions. Filling these improves SEO and conversion.")
	}
	if pricing.HasPricing && pricing.MaxPrice-pricing.MinPrice > 100 {
		opps = append(opps, "Pricing spans wide bands; consider clearer segmentation across tiers.")
	}
	var gaps []string
	for _, item := range alignment {
		if item.Status == CategoryGap {
			gaps = append(gaps, item.Trend)
		}
	}
	if len(gaps) > 0 {
		if len(gaps) > 5 {
			gaps = gaps[:5]
		}
		opps = append(opps, "Detected market trends with low coverage: "+strings.Join(gaps, ", ")+". Explore offers in these areas.")
	}
	return opps
}

func tokenize(text string) []string {
	var tokens []string
	for _, raw := range strings.Fields(text) {
		token := strings.ToLower(strings.Trim(raw, " ,.;:!?\"'()"))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return round(float64(sum)/float64(len(values)), 2)
}

