// Package gap compares a business product catalog against market trends.
// Trends and products are embedded and matched by cosine similarity, a
// token-level alignment index estimates lexical coverage, and an LLM turns
// the similarity map into narrative insights and product proposals.
package gap

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/webfetch"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// ErrInsufficientData is returned when either side of the comparison is empty
// after flattening and embedding.
var ErrInsufficientData = errors.New("insufficient data: provide at least one product and one trend entry")

// Category labels for similarity buckets.
const (
	CategoryCovered = "covered"
	CategoryWeak    = "weak"
	CategoryGap     = "gap"
)

// SimilarityEntry is one trend matched against its best catalog product.
type SimilarityEntry struct {
	Trend            string   `json:"trend"`
	TrendSummary     string   `json:"trend_summary"`
	BestMatchProduct string   `json:"best_match_product"`
	Business         string   `json:"business"`
	Similarity       float64  `json:"similarity"`
	Category         string   `json:"category"`
	Keywords         []string `json:"keywords"`
	ProductSummary   string   `json:"product_summary"`
}

// CoverageBuckets groups similarity entries by category.
type CoverageBuckets struct {
	Covered []SimilarityEntry `json:"covered"`
	Weak    []SimilarityEntry `json:"weak"`
	Gap     []SimilarityEntry `json:"gap"`
}

// CoverageStat is the per-bucket share of trends.
type CoverageStat struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// KeywordCount pairs a keyword with its occurrence count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Opportunity is one gap-bucket trend with an actionable note.
type Opportunity struct {
	Trend            string  `json:"trend"`
	BestMatchProduct string  `json:"best_match_product"`
	Business         string  `json:"business"`
	Similarity       float64 `json:"similarity"`
	Note             string  `json:"note"`
}

// Report is the full gap-analysis output.
type Report struct {
	SimilarityMap    []SimilarityEntry       `json:"similarity_map"`
	Coverage         CoverageBuckets         `json:"coverage"`
	Insights         map[string]any          `json:"insights"`
	CoverageSummary  map[string]CoverageStat `json:"coverage_summary"`
	TopGapThemes     []KeywordCount          `json:"top_gap_themes"`
	ProductProposals []ProductProposal       `json:"product_proposals"`
	OpportunityMap   []Opportunity           `json:"opportunity_map"`
	ActionPlan       []string                `json:"action_plan"`
	TrendConfidence  []TrendAlignment        `json:"trend_confidence"`
	CatalogReport    CatalogReport           `json:"catalog_report"`
}

// Request carries one analysis invocation. Trends accepts raw records in any
// of the shapes the trend services produce; when empty and AutoKeywords is
// set, trends are fetched live through Firecrawl.
type Request struct {
	Businesses    []models.Business
	Trends        []map[string]any
	Context       string
	AutoKeywords  []string
	TrendTopic    string
	FirecrawlKey  string
	WithProposals bool
}

// Engine runs gap analyses. It is safe for concurrent use.
type Engine struct {
	cfg      config.GapConfig
	trends   config.TrendsConfig
	fc       *firecrawl.Client
	articles *webfetch.Fetcher
	logger   *log.Logger
}

func NewEngine(cfg config.GapConfig, trendsCfg config.TrendsConfig, fc *firecrawl.Client, articles *webfetch.Fetcher) *Engine {
	return &Engine{
		cfg:      cfg.Normalize(),
		trends:   trendsCfg,
		fc:       fc,
		articles: articles,
		logger:   log.New(log.Writer(), "[GAP] ", log.LstdFlags),
	}
}

// Run executes the full analysis: catalog report, embedding similarity,
// token alignment, insights and optional proposals.
func (e *Engine) Run(ctx context.Context, prov provider.Provider, req Request) (*Report, error) {
	rawTrends := req.Trends
	if len(rawTrends) == 0 && len(req.AutoKeywords) > 0 {
		fetched, err := e.FetchTrends(ctx, prov, req.FirecrawlKey, req.AutoKeywords, req.TrendTopic)
		if err != nil {
			return nil, err
		}
		rawTrends = fetched
	}

	flat := flattenProducts(req.Businesses)
	trendRecords := flattenTrendRecords(rawTrends)

	catalog, err := e.buildCatalogReport(req.Businesses, flat, trendRecords)
	if err != nil {
		return nil, err
	}

	productVecs, err := e.embedProducts(ctx, prov, req.Businesses)
	if err != nil {
		return nil, err
	}
	trendVecs, err := e.embedTrends(ctx, prov, trendRecords)
	if err != nil {
		return nil, err
	}
	if len(productVecs) == 0 || len(trendVecs) == 0 {
		return nil, ErrInsufficientData
	}

	var (
		similarityMap []SimilarityEntry
		buckets       CoverageBuckets
	)
	for _, trend := range trendVecs {
		best := -1
		bestScore := 0.0
		for i, product := range productVecs {
			score := cosine(trend.vector, product.vector)
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			continue
		}
		product := productVecs[best]
		e.logger.Printf("trend %q best match %q score %.4f", trend.name, product.product, bestScore)
		entry := SimilarityEntry{
			Trend:            trend.name,
			TrendSummary:     firstNonEmpty(trend.insight, trend.evidence),
			BestMatchProduct: product.product,
			Business:         product.business,
			Similarity:       round(bestScore, 4),
			Category:         e.categorize(bestScore),
			Keywords:         trend.keywords,
			ProductSummary:   product.description,
		}
		similarityMap = append(similarityMap, entry)
		switch entry.Category {
		case CategoryCovered:
			buckets.Covered = append(buckets.Covered, entry)
		case CategoryWeak:
			buckets.Weak = append(buckets.Weak, entry)
		default:
			buckets.Gap = append(buckets.Gap, entry)
		}
	}

	insights := e.reasonOverGaps(ctx, prov, similarityMap, req.Context)

	total := len(buckets.Covered) + len(buckets.Weak) + len(buckets.Gap)
	if total == 0 {
		total = 1
	}
	summary := map[string]CoverageStat{
		CategoryCovered: {Count: len(buckets.Covered), Percent: round(float64(len(buckets.Covered))/float64(total)*100, 1)},
		CategoryWeak:    {Count: len(buckets.Weak), Percent: round(float64(len(buckets.Weak))/float64(total)*100, 1)},
		CategoryGap:     {Count: len(buckets.Gap), Percent: round(float64(len(buckets.Gap))/float64(total)*100, 1)},
	}

	var proposals []ProductProposal
	if req.WithProposals {
		proposals = e.proposeExtensions(ctx, prov, buckets.Weak, buckets.Gap, req.Context)
	}

	report := &Report{
		SimilarityMap:    similarityMap,
		Coverage:         buckets,
		Insights:         insights,
		CoverageSummary:  summary,
		TopGapThemes:     topGapThemes(buckets.Gap, 10),
		ProductProposals: proposals,
		OpportunityMap:   opportunityMap(buckets.Gap, 8),
		ActionPlan:       catalog.OpportunitySummary,
		TrendConfidence:  trendConfidence(catalog.TrendAlignment, 8),
		CatalogReport:    *catalog,
	}
	return report, nil
}

func (e *Engine) categorize(score float64) string {
	switch {
	case score >= e.cfg.CoveredThreshold:
		return CategoryCovered
	case score >= e.cfg.WeakThreshold:
		return CategoryWeak
	default:
		return CategoryGap
	}
}

// productVector and trendVector hold one embedded row each.

type productVector struct {
	business    string
	product     string
	description string
	vector      []float32
}

type trendVector struct {
	name     string
	insight  string
	evidence string
	keywords []string
	vector   []float32
}

func (e *Engine) embedProducts(ctx context.Context, prov provider.Provider, businesses []models.Business) ([]productVector, error) {
	var rows []productVector
	var texts []string
	for _, biz := range businesses {
		name := businessName(biz)
		for _, p := range biz.Products {
			if p.Audience == "" {
				p.Audience = biz.TargetAudience
			}
			text := p.EmbeddingText()
			if text == "" {
				continue
			}
			rows = append(rows, productVector{business: name, product: firstNonEmpty(p.Name, "Unnamed"), description: p.Description})
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := prov.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(rows) {
		return nil, errors.New("embedding count does not match product count")
	}
	for i := range rows {
		rows[i].vector = vecs[i]
	}
	return rows, nil
}

func (e *Engine) embedTrends(ctx context.Context, prov provider.Provider, records []TrendRecord) ([]trendVector, error) {
	var rows []trendVector
	var texts []string
	for _, rec := range records {
		text := joinNonEmpty(" | ", rec.Trend, rec.Description, strings.Join(rec.Keywords, ", "))
		if rec.Trend == "" || text == "" {
			continue
		}
		rows = append(rows, trendVector{
			name:     rec.Trend,
			insight:  rec.Description,
			evidence: strings.Join(rec.Keywords, ", "),
			keywords: rec.Keywords,
		})
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := prov.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(rows) {
		return nil, errors.New("embedding count does not match trend count")
	}
	for i := range rows {
		rows[i].vector = vecs[i]
	}
	return rows, nil
}

func topGapThemes(gap []SimilarityEntry, limit int) []KeywordCount {
	counts := map[string]int{}
	for _, entry := range gap {
		for _, kw := range entry.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				counts[kw]++
			}
		}
	}
	return topCounts(counts, limit)
}

func opportunityMap(gap []SimilarityEntry, limit int) []Opportunity {
	if len(gap) > limit {
		gap = gap[:limit]
	}
	out := make([]Opportunity, 0, len(gap))
	for _, entry := range gap {
		keywords := strings.Join(entry.Keywords, ", ")
		if keywords == "" {
			keywords = "new proof points"
		}
		out = append(out, Opportunity{
			Trend:            entry.Trend,
			BestMatchProduct: entry.BestMatchProduct,
			Business:         entry.Business,
			Similarity:       entry.Similarity,
			Note: "Extend " + entry.BestMatchProduct + " (" + entry.Business + ") to address " +
				entry.Trend + " by emphasizing " + keywords + ".",
		})
	}
	return out
}

func trendConfidence(alignment []TrendAlignment, limit int) []TrendAlignment {
	sorted := make([]TrendAlignment, len(alignment))
	copy(sorted, alignment)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CoverageScore > sorted[j].CoverageScore })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// topCounts sorts counters by count, then keyword for stable output.
func topCounts(counts map[string]int, limit int) []KeywordCount {
	out := make([]KeywordCount, 0, len(counts))
	for kw, n := range counts {
		out = append(out, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func businessName(biz models.Business) string {
	if strings.TrimSpace(biz.Name) != "" {
		return biz.Name
	}
	return "Unknown Business"
}
