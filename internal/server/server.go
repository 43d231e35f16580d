package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/analysis"
	"github.com/zainabsaad99/EECE798S-Project/internal/gap"
	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/internal/telemetry"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/firecrawl"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/phantombuster"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/sheets"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/webfetch"
)

// Run wires every component against the loaded config and serves the HTTP
// API until the listener stops.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	registerDocs(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Best effort; a separate migrate run owns schema changes in production.
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		log.Printf("migrations skipped: %v", err)
	}

	ctx := context.Background()
	tracing, err := runtime.SetupTracing(ctx, cfg.Telemetry, "contentagent")
	if err != nil {
		return err
	}
	defer func() { _ = tracing.Shutdown(ctx) }()

	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	rdb, err := store.NewRedis(ctx, cfg.Storage.Redis)
	if err != nil {
		return err
	}
	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	tel := telemetry.NewTelemetry(cfg.Telemetry)
	scraper := phantombuster.New(cfg.LinkedIn, cfg.Agent.MaxPostsPerScrape, rdb)
	fc := firecrawl.New(cfg.Trends)
	var articles *webfetch.Fetcher
	if cfg.Trends.FetchArticle {
		articles = webfetch.NewFetcher(cfg.Trends.Timeout, cfg.Trends.ArticleChars)
	}
	sheetsClient := sheets.New(cfg.Sheets)
	analyzer := analysis.NewAnalyzer(cfg.Agent)
	trendFetcher := analysis.NewTrendFetcher(fc, articles, cfg.Trends)

	registry, err := tools.BuildRegistry(tools.Deps{
		Scraper:  scraper,
		Trends:   trendFetcher,
		Analyzer: analyzer,
		Sheets:   sheetsClient,
	})
	if err != nil {
		return err
	}
	runner := agent.NewRunner(cfg, registry, tel)

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(runtime.EchoAuthMiddleware(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, MeResponse{UserID: c.Get("user_id").(string)})
	})

	runs := &RunsHandler{
		Store:  st,
		Cache:  store.NewRunCache(rdb, 0),
		Runner: runner,
		Logger: log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
	runs.Register(api.Group("/agent/runs"), secret)

	posts := &PostsHandler{
		Store:    st,
		Analyzer: analyzer,
		Trends:   trendFetcher,
		Sheets:   sheetsClient,
		Scraper:  scraper,
		LLM:      cfg.LLM,
		Logger:   log.New(log.Writer(), "[POSTS] ", log.LstdFlags),
	}
	posts.Register(api.Group("/posts"), secret)

	gh := &GapHandler{
		Engine:   gap.NewEngine(cfg.Gap, cfg.Trends, fc, articles),
		Catalog:  analysis.NewCatalogExtractor(fc),
		Analyzer: analyzer,
		LLM:      cfg.LLM,
		Logger:   log.New(log.Writer(), "[GAP] ", log.LstdFlags),
	}
	gh.Register(api.Group("/gap"), api.Group("/catalog"), secret)

	(&ToolsHandler{Registry: registry}).Register(api.Group("/tools"), secret)

	NewOpsHandler(tel).Register(api.Group("/ops"), secret)

	if cfg.Scheduler.Enabled {
		NewScheduler(st, rdb, scraper, cfg.Scheduler).Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":10001"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
