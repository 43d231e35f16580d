package server

import (
	"github.com/zainabsaad99/EECE798S-Project/internal/gap"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// RunStartRequest starts one agent run. API keys and the session cookie are
// request-scoped: they ride into the run context and are never persisted.
type RunStartRequest struct {
	ProfileURL      string `json:"profile_url"`
	StyleProfileURL string `json:"style_profile_url,omitempty"`
	Topic           string `json:"topic,omitempty"`
	SheetURL        string `json:"sheet_url,omitempty"`
	OpenAIKey       string `json:"openai_api_key"`
	PhantomKey      string `json:"phantombuster_api_key"`
	FirecrawlKey    string `json:"firecrawl_api_key,omitempty"`
	SessionCookie   string `json:"session_cookie"`
	UserAgent       string `json:"user_agent,omitempty"`
	Stream          bool   `json:"stream,omitempty"`
}

// GeneratePostRequest produces one LinkedIn-ready draft. When RefineTopic is
// set the manual topic is sharpened against live trends first.
type GeneratePostRequest struct {
	Topic        string   `json:"topic"`
	StyleNotes   string   `json:"style_notes,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	RefineTopic  bool     `json:"refine_topic,omitempty"`
	OpenAIKey    string   `json:"openai_api_key"`
	FirecrawlKey string   `json:"firecrawl_api_key,omitempty"`
}

// GeneratePostResponse carries the draft plus the trends that shaped it.
type GeneratePostResponse struct {
	Topic  string         `json:"topic"`
	Post   string         `json:"post"`
	Trends []models.Trend `json:"trends,omitempty"`
}

// SavePostRequest appends a post to the review sheet and records a draft row.
type SavePostRequest struct {
	Topic    string `json:"topic,omitempty"`
	Content  string `json:"content"`
	SheetURL string `json:"sheet_url"`
}

// AutopostRequest triggers the sheet-driven LinkedIn publish agent.
type AutopostRequest struct {
	SheetURL      string `json:"sheet_url"`
	PhantomKey    string `json:"phantombuster_api_key"`
	SessionCookie string `json:"session_cookie"`
	UserAgent     string `json:"user_agent,omitempty"`
}

// AutopostResponse reports the PhantomBuster container that took the job.
type AutopostResponse struct {
	ContainerID string `json:"container_id"`
}

// ScheduleCreateRequest registers a recurring autopost schedule.
type ScheduleCreateRequest struct {
	SheetURL string `json:"sheet_url"`
	CronSpec string `json:"cron_spec,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// ScheduleUpdateRequest toggles a schedule.
type ScheduleUpdateRequest struct {
	Enabled bool `json:"enabled"`
}

// GapAnalyzeRequest runs the catalog-versus-trends gap analysis. Trends may
// be posted raw; when omitted, Keywords (or Topic) drive a live fetch.
type GapAnalyzeRequest struct {
	Businesses    []models.Business `json:"businesses"`
	Trends        []map[string]any  `json:"trends,omitempty"`
	Context       string            `json:"context,omitempty"`
	Keywords      []string          `json:"keywords,omitempty"`
	Topic         string            `json:"topic,omitempty"`
	WithProposals bool              `json:"with_proposals,omitempty"`
	OpenAIKey     string            `json:"openai_api_key"`
	FirecrawlKey  string            `json:"firecrawl_api_key,omitempty"`
}

// GapAnalyzeResponse is the full analysis report.
type GapAnalyzeResponse = gap.Report

// CatalogExtractRequest crawls a company site into a structured catalog.
type CatalogExtractRequest struct {
	WebsiteURL   string `json:"website_url"`
	FirecrawlKey string `json:"firecrawl_api_key,omitempty"`
	OpenAIKey    string `json:"openai_api_key,omitempty"`
	MaxPages     int    `json:"max_pages,omitempty"`
}

// CatalogExtractResponse returns the merged business profile plus the
// business phrase list used downstream as trend keywords.
type CatalogExtractResponse struct {
	Business models.Business `json:"business"`
	Phrases  []string        `json:"phrases,omitempty"`
	Pages    int             `json:"pages"`
}
