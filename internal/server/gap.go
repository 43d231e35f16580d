package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/analysis"
	"github.com/zainabsaad99/EECE798S-Project/internal/gap"
	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// GapHandler serves the catalog-versus-trends gap analysis and the website
// extraction that produces its catalog input.
type GapHandler struct {
	Engine   *gap.Engine
	Catalog  *analysis.CatalogExtractor
	Analyzer *analysis.Analyzer
	LLM      config.LLMConfig
	Logger   *log.Logger
}

func (h *GapHandler) Register(gapG, catalogG *echo.Group, secret []byte) {
	gapG.Use(runtime.EchoAuthMiddleware(secret))
	gapG.POST("/analyze", h.analyze)
	catalogG.Use(runtime.EchoAuthMiddleware(secret))
	catalogG.POST("/extract", h.extract)
}

// analyze compares a product catalog against market trends. Trends may come
// inline with the request; otherwise keywords or a topic drive a live fetch.
//
//	@Summary	Run gap analysis
//	@Tags		gap
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		GapAnalyzeRequest	true	"Analysis payload"
//	@Success	200		{object}	GapAnalyzeResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/gap/analyze [post]
func (h *GapHandler) analyze(c echo.Context) error {
	var req GapAnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OpenAIKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "openai_api_key required")
	}
	if len(req.Businesses) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "businesses required")
	}

	prov, err := provider.NewProvider(h.LLM, req.OpenAIKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.Engine.Run(c.Request().Context(), prov, gap.Request{
		Businesses:    req.Businesses,
		Trends:        req.Trends,
		Context:       req.Context,
		AutoKeywords:  analysis.SanitizeKeywords(req.Keywords),
		TrendTopic:    req.Topic,
		FirecrawlKey:  req.FirecrawlKey,
		WithProposals: req.WithProposals,
	})
	if err != nil {
		return gapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// extract crawls a company website into a structured business profile. With
// an OpenAI key the profile additionally yields searchable trend phrases.
//
//	@Summary	Extract website catalog
//	@Tags		gap
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		CatalogExtractRequest	true	"Extraction payload"
//	@Success	200		{object}	CatalogExtractResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/catalog/extract [post]
func (h *GapHandler) extract(c echo.Context) error {
	var req CatalogExtractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.WebsiteURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "website_url required")
	}
	ctx := c.Request().Context()

	biz, pages, err := h.Catalog.Extract(ctx, req.FirecrawlKey, req.WebsiteURL, req.MaxPages)
	if err != nil {
		return gapError(err)
	}

	resp := CatalogExtractResponse{Business: biz, Pages: pages}
	if req.OpenAIKey != "" {
		if prov, err := provider.NewProvider(h.LLM, req.OpenAIKey); err == nil {
			phrases, err := h.Analyzer.ExtractBusinessPhrases(ctx, prov, biz)
			if err != nil {
				h.Logger.Printf("business phrases: %v", err)
			} else {
				resp.Phrases = phrases
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// gapError translates pipeline failures: bad input stays 400, rejected keys
// become 401, anything upstream is a 502 with a user-facing message.
func gapError(err error) error {
	var authErr *agent.AuthError
	switch {
	case errors.Is(err, gap.ErrInsufficientData):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &authErr):
		return echo.NewHTTPError(http.StatusUnauthorized, agent.UserFacingError(err))
	default:
		return echo.NewHTTPError(http.StatusBadGateway, agent.UserFacingError(err))
	}
}
