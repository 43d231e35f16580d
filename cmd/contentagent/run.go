package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/analysis"
	"github.com/zainabsaad99/EECE798S-Project/internal/stream"
	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/phantombuster"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/sheets"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/webfetch"
)

func runCMD() *cobra.Command {
	var (
		cfgPath    string
		profileURL string
		styleURL   string
		topic      string
		sheetURL   string
		streamOut  bool
		timeout    time.Duration
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the content agent once for a profile",
		Long: "Run scrapes the profile, extracts interests and writing style, fetches\n" +
			"trends and writes a post draft. Credentials come from OPENAI_API_KEY,\n" +
			"PHANTOMBUSTER_API_KEY, FIRECRAWL_API_KEY, LINKEDIN_SESSION_COOKIE and\n" +
			"LINKEDIN_USER_AGENT.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileURL == "" {
				return errors.New("--profile is required")
			}
			rc := agent.RunContext{
				RunID:           uuid.NewString(),
				UserID:          "cli",
				OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
				PhantomKey:      os.Getenv("PHANTOMBUSTER_API_KEY"),
				FirecrawlKey:    os.Getenv("FIRECRAWL_API_KEY"),
				SessionCookie:   os.Getenv("LINKEDIN_SESSION_COOKIE"),
				UserAgent:       os.Getenv("LINKEDIN_USER_AGENT"),
				ProfileURL:      profileURL,
				StyleProfileURL: styleURL,
				Topic:           topic,
				SheetURL:        sheetURL,
			}
			if rc.OpenAIKey == "" || rc.PhantomKey == "" || rc.SessionCookie == "" {
				return errors.New("OPENAI_API_KEY, PHANTOMBUSTER_API_KEY and LINKEDIN_SESSION_COOKIE must be set")
			}

			cfg := config.LoadConfig(cfgPath)
			runner, tel, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			defer tel.Shutdown()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if streamOut {
				if _, err := runner.RunStream(ctx, rc, stream.NewConsoleRelay()); err != nil {
					return errors.New(agent.UserFacingError(err))
				}
				return nil
			}
			result, err := runner.Run(ctx, rc)
			if err != nil {
				return errors.New(agent.UserFacingError(err))
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	run.Flags().StringVar(&profileURL, "profile", "", "LinkedIn profile URL to scrape")
	run.Flags().StringVar(&styleURL, "style-profile", "", "profile whose writing style to imitate (defaults to --profile)")
	run.Flags().StringVar(&topic, "topic", "", "optional topic override for the post")
	run.Flags().StringVar(&sheetURL, "sheet", "", "Google Sheet URL for drafts")
	run.Flags().BoolVar(&streamOut, "stream", false, "print progress and post text as they arrive")
	run.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall run timeout")
	run.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return run
}

// buildRunner constructs the tool clients and the runner without any server
// wiring. The scrape cache is off; CLI runs are one-shot.
func buildRunner(cfg *config.Config) (*agent.Runner, *telemetry.Telemetry, error) {
	tel := telemetry.NewTelemetry(cfg.Telemetry)
	scraper := phantombuster.New(cfg.LinkedIn, cfg.Agent.MaxPostsPerScrape, nil)
	fc := firecrawl.New(cfg.Trends)
	var articles *webfetch.Fetcher
	if cfg.Trends.FetchArticle {
		articles = webfetch.NewFetcher(cfg.Trends.Timeout, cfg.Trends.ArticleChars)
	}
	registry, err := tools.BuildRegistry(tools.Deps{
		Scraper:  scraper,
		Trends:   analysis.NewTrendFetcher(fc, articles, cfg.Trends),
		Analyzer: analysis.NewAnalyzer(cfg.Agent),
		Sheets:   sheets.New(cfg.Sheets),
	})
	if err != nil {
		return nil, nil, err
	}
	return agent.NewRunner(cfg, registry, tel), tel, nil
}
