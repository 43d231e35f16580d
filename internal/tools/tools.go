// Package tools assembles the agent's tool catalog: it binds the external
// clients (PhantomBuster, Firecrawl, Sheets) and the analysis pipelines to
// the schemas the model sees. Argument bags are decoded into one typed struct
// per tool before anything runs.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/analysis"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/phantombuster"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/sheets"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

// Deps are the constructed clients the tool implementations close over.
type Deps struct {
	Scraper  *phantombuster.Client
	Trends   *analysis.TrendFetcher
	Analyzer *analysis.Analyzer
	Sheets   *sheets.Client
}

// ScrapeProfileArgs, and the structs after it, are the closed set of tool
// argument shapes. Credentials never appear here; they ride on the run state.
type ScrapeProfileArgs struct {
	ProfileURL string `json:"profile_url"`
}

type ExtractKeywordsArgs struct {
	JSONURL string `json:"json_url"`
}

type InferStyleArgs struct {
	JSONURL string `json:"json_url"`
}

type FetchTrendsArgs struct {
	Keywords []string `json:"keywords"`
	Topic    string   `json:"topic"`
}

type GeneratePostArgs struct {
	Topic      string   `json:"topic"`
	StyleNotes string   `json:"style_notes"`
	Keywords   []string `json:"keywords"`
}

type SaveToSheetArgs struct {
	SheetURL string `json:"sheet_url"`
	Content  string `json:"content"`
}

type AutopostArgs struct {
	SheetURL string `json:"sheet_url"`
}

// BuildRegistry registers every tool. The caller seals the registry once
// wiring is complete.
func BuildRegistry(deps Deps) (*agent.Registry, error) {
	r := agent.NewRegistry()
	for _, reg := range []struct {
		spec agent.ToolSpec
		fn   agent.ToolFunc
	}{
		{scrapeProfileSpec(), deps.scrapeProfile},
		{extractKeywordsSpec(), deps.extractKeywords},
		{inferStyleSpec(), deps.inferStyle},
		{fetchTrendsSpec(), deps.fetchTrends},
		{generatePostSpec(), deps.generatePost},
		{saveToSheetSpec(), deps.saveToSheet},
		{autopostSpec(), deps.autopost},
	} {
		if err := r.Register(reg.spec, reg.fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func scrapeProfileSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "scrape_profile_tool",
		Description: "Scrape a LinkedIn profile's posts via PhantomBuster and return the posts array with its export json_url.",
		Params: map[string]agent.ParamSpec{
			"profile_url": {Type: "string", Required: true, Description: "LinkedIn profile URL to scrape"},
		},
	}
}

func (d Deps) scrapeProfile(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a ScrapeProfileArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	creds := phantombuster.Credentials{
		APIKey:        rs.Context.PhantomKey,
		SessionCookie: rs.Context.SessionCookie,
		UserAgent:     rs.Context.UserAgent,
	}
	result, err := d.Scraper.ScrapePosts(ctx, creds, a.ProfileURL, rs.ReportProgress)
	if err != nil {
		return nil, err
	}
	rs.CapturePosts(result.JSONURL, result.Posts)
	return map[string]any{"json_url": result.JSONURL, "posts": result.Posts}, nil
}

func extractKeywordsSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "extract_keywords_tool",
		Description: "Extract recurring interest phrases from the scraped posts referenced by json_url.",
		Params: map[string]agent.ParamSpec{
			"json_url": {Type: "string", Required: true, Description: "result.json export URL from scrape_profile_tool"},
		},
	}
}

func (d Deps) extractKeywords(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a ExtractKeywordsArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	posts, err := d.resolvePosts(ctx, rs, a.JSONURL)
	if err != nil {
		return nil, err
	}
	rs.ReportProgress("Analyzing posts to extract your interests...")
	keywords, err := d.Analyzer.ExtractInterests(ctx, rs.Provider(), posts)
	if err != nil {
		return nil, err
	}
	rs.ReportProgress(fmt.Sprintf("Found %d interest areas!", len(keywords)))
	return map[string]any{"keywords": keywords}, nil
}

func inferStyleSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "infer_style_tool",
		Description: "Infer the writing style of the scraped posts referenced by json_url.",
		Params: map[string]agent.ParamSpec{
			"json_url": {Type: "string", Required: true, Description: "result.json export URL from scrape_profile_tool"},
		},
	}
}

func (d Deps) inferStyle(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a InferStyleArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	posts, err := d.resolvePosts(ctx, rs, a.JSONURL)
	if err != nil {
		return nil, err
	}
	rs.ReportProgress("Analyzing your writing style...")
	style, err := d.Analyzer.InferStyle(ctx, rs.Provider(), posts)
	if err != nil {
		return nil, err
	}
	rs.ReportProgress("Writing style analysis complete!")
	return map[string]any{"style_notes": style}, nil
}

func fetchTrendsSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name: "fetch_trends_tool",
		Description: "Fetch up to five phrase level trends using Firecrawl search and OpenAI. " +
			"If topic is provided, trends are focused on that topic. " +
			"Otherwise trends are focused on the provided keywords.",
		Params: map[string]agent.ParamSpec{
			"keywords": {Type: "array", Items: "string", Required: true, Description: "interest phrases to search trends for"},
			"topic":    {Type: "string", Description: "optional topic that overrides the keywords"},
		},
	}
}

func (d Deps) fetchTrends(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a FetchTrendsArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	rs.ReportProgress("Searching for trending topics in your areas of interest...")
	trends, err := d.Trends.Fetch(ctx, rs.Provider(), rs.Context.FirecrawlKey, a.Keywords, a.Topic)
	if err != nil {
		return nil, err
	}
	rs.ReportProgress(fmt.Sprintf("Found %d trending topics!", len(trends)))
	return map[string]any{"trends": trends}, nil
}

func generatePostSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "generate_post_tool",
		Description: "Write a polished LinkedIn post about the given topic, following the style notes.",
		Params: map[string]agent.ParamSpec{
			"topic":       {Type: "string", Required: true, Description: "topic the post must stay on"},
			"style_notes": {Type: "string", Description: "writing style guidance from infer_style_tool"},
			"keywords":    {Type: "array", Items: "string", Description: "interest phrases; ignored during generation"},
		},
	}
}

func (d Deps) generatePost(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a GeneratePostArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	post, err := d.Analyzer.GeneratePost(ctx, rs.Provider(), a.Topic, a.StyleNotes)
	if err != nil {
		return nil, err
	}
	return map[string]any{"post": post}, nil
}

func saveToSheetSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "save_to_sheet_tool",
		Description: "Append post content as a new row on the configured Google Sheet.",
		Params: map[string]agent.ParamSpec{
			"sheet_url": {Type: "string", Description: "Google Sheet URL; defaults to the run's sheet"},
			"content":   {Type: "string", Required: true, Description: "post content to save"},
		},
	}
}

func (d Deps) saveToSheet(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a SaveToSheetArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	sheetURL := a.SheetURL
	if sheetURL == "" {
		sheetURL = rs.Context.SheetURL
	}
	row, err := d.Sheets.Append(ctx, sheetURL, []string{a.Content})
	if err != nil {
		return nil, err
	}
	return map[string]any{"sheet_url": sheetURL, "row": row}, nil
}

func autopostSpec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "autopost_tool",
		Description: "Launch the PhantomBuster auto-poster against the content sheet so queued posts get published.",
		Params: map[string]agent.ParamSpec{
			"sheet_url": {Type: "string", Description: "Google Sheet URL; defaults to the run's sheet"},
		},
	}
}

func (d Deps) autopost(ctx context.Context, rs *agent.RunState, args map[string]any) (any, error) {
	var a AutopostArgs
	if err := agent.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	sheetURL := a.SheetURL
	if sheetURL == "" {
		sheetURL = rs.Context.SheetURL
	}
	if sheetURL == "" {
		return nil, errors.New("sheet url is required for autopost")
	}
	creds := phantombuster.Credentials{
		APIKey:        rs.Context.PhantomKey,
		SessionCookie: rs.Context.SessionCookie,
		UserAgent:     rs.Context.UserAgent,
	}
	containerID, err := d.Scraper.Autopost(ctx, creds, sheetURL)
	if err != nil {
		return nil, err
	}
	return map[string]any{"container_id": containerID}, nil
}

// resolvePosts reuses the run's captured scrape when the URL matches;
// otherwise the export is downloaded fresh.
func (d Deps) resolvePosts(ctx context.Context, rs *agent.RunState, jsonURL string) ([]models.Post, error) {
	if jsonURL == "" || jsonURL == rs.SourceURL() {
		if posts := rs.Posts(); len(posts) > 0 {
			return posts, nil
		}
	}
	if jsonURL == "" {
		return nil, errors.New("json_url is required; run scrape_profile_tool first")
	}
	return d.Scraper.DownloadPosts(ctx, jsonURL)
}
