package models

import (
	"errors"
	"strings"
	"time"
)

// ErrRunNotFound is returned when an agent run is not found
var ErrRunNotFound = errors.New("run not found")

// Post is a single LinkedIn activity row as delivered by the scraper export.
// Field names follow the export columns so the result.json decodes directly.
type Post struct {
	PostURL       string `json:"postUrl"`
	ImgURL        string `json:"imgUrl"`
	Type          string `json:"type"`
	PostContent   string `json:"postContent"`
	LikeCount     int    `json:"likeCount"`
	CommentCount  int    `json:"commentCount"`
	RepostCount   int    `json:"repostCount"`
	PostDate      string `json:"postDate"`
	Action        string `json:"action"`
	Author        string `json:"author"`
	AuthorURL     string `json:"authorUrl"`
	ProfileURL    string `json:"profileUrl"`
	Timestamp     string `json:"timestamp"`
	PostTimestamp string `json:"postTimestamp"`
}

// Trend is one phrase-level trend distilled from search results.
type Trend struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// AgentResult is the structured output of one agent run.
type AgentResult struct {
	RunID      string    `json:"run_id"`
	Success    bool      `json:"success"`
	SourceURL  string    `json:"json_url"`
	Keywords   []string  `json:"keywords"`
	StyleNotes string    `json:"style_notes"`
	Trends     []Trend   `json:"trends"`
	Posts      []Post    `json:"posts,omitempty"`
	RawMessage string    `json:"raw_message,omitempty"`
	Steps      int       `json:"steps"`
	TokensIn   int64     `json:"tokens_in"`
	TokensOut  int64     `json:"tokens_out"`
	CostUSD    float64   `json:"cost_usd"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunStatus mirrors the loop's lifecycle for status endpoints.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is a persisted agent run row.
type Run struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	ProfileURL string       `json:"profile_url"`
	Status     RunStatus    `json:"status"`
	Result     *AgentResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Draft is a generated post pending review or publication.
type Draft struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	SheetURL  string    `json:"sheet_url,omitempty"`
	SheetRow  int       `json:"sheet_row,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AutopostSchedule drives the publish scheduler. CronSpec accepts @hourly,
// @daily or a standard five-field expression.
type AutopostSchedule struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	SheetURL      string     `json:"sheet_url"`
	CronSpec      string     `json:"cron_spec"`
	Enabled       bool       `json:"enabled"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Product is one catalog entry used by gap analysis.
type Product struct {
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Strapline   string   `json:"strapline,omitempty"`
	Audience    string   `json:"audience,omitempty"`
	Features    []string `json:"features,omitempty"`
	Pricing     string   `json:"pricing,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Business groups the products of one company plus the profile fields the
// website extraction produces.
type Business struct {
	Name              string    `json:"name"`
	Domain            string    `json:"domain,omitempty"`
	Industry          string    `json:"industry,omitempty"`
	Mission           string    `json:"mission,omitempty"`
	Location          string    `json:"location,omitempty"`
	TargetAudience    string    `json:"target_audience,omitempty"`
	TargetMarket      []string  `json:"target_market,omitempty"`
	PrimaryKeywords   []string  `json:"primary_keywords,omitempty"`
	SecondaryKeywords []string  `json:"secondary_keywords,omitempty"`
	TrendingTopics    []string  `json:"trending_topics,omitempty"`
	IndustryTerms     []string  `json:"industry_terms,omitempty"`
	ValuePropositions []string  `json:"value_propositions,omitempty"`
	ContentThemes     []string  `json:"content_themes,omitempty"`
	Products          []Product `json:"products"`
}

// EmbeddingText joins the fields that feed the product vector.
func (p Product) EmbeddingText() string {
	parts := []string{p.Name, p.Description, p.Strapline, p.Audience}
	var kept []string
	for _, s := range parts {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, strings.TrimSpace(s))
		}
	}
	return strings.Join(kept, " | ")
}
