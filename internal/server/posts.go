package server

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/internal/analysis"
	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/phantombuster"
	"github.com/zainabsaad99/EECE798S-Project/internal/tools/sheets"
	"github.com/zainabsaad99/EECE798S-Project/models"
	"github.com/zainabsaad99/EECE798S-Project/provider"
)

// PostsHandler covers the standalone post workflow: generate a draft outside
// a full agent run, push it to the sheet, trigger or schedule the publish.
type PostsHandler struct {
	Store    *store.Store
	Analyzer *analysis.Analyzer
	Trends   *analysis.TrendFetcher
	Sheets   *sheets.Client
	Scraper  *phantombuster.Client
	LLM      config.LLMConfig
	Logger   *log.Logger
}

func (h *PostsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/generate", h.generate)
	g.POST("/save", h.save)
	g.POST("/autopost", h.autopost)
	g.GET("", h.listDrafts)
	g.POST("/schedules", h.createSchedule)
	g.GET("/schedules", h.listSchedules)
	g.PUT("/schedules/:id", h.updateSchedule)
	g.DELETE("/schedules/:id", h.deleteSchedule)
}

// generate produces one LinkedIn-ready draft from a topic. With refine_topic
// and a Firecrawl key the topic is first sharpened against live trend
// coverage; trend fetch failures fall back to the manual topic.
//
//	@Summary	Generate post draft
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		GeneratePostRequest	true	"Generation payload"
//	@Success	200		{object}	GeneratePostResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/posts/generate [post]
func (h *PostsHandler) generate(c echo.Context) error {
	var req GeneratePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Topic) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic required")
	}
	if req.OpenAIKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "openai_api_key required")
	}
	ctx := c.Request().Context()

	prov, err := provider.NewProvider(h.LLM, req.OpenAIKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	topic := strings.TrimSpace(req.Topic)
	var trends []models.Trend
	if req.RefineTopic && req.FirecrawlKey != "" {
		topic, trends = h.Trends.RefineTopic(ctx, prov, req.FirecrawlKey, req.Keywords, topic)
	}

	post, err := h.Analyzer.GeneratePost(ctx, prov, topic, req.StyleNotes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, GeneratePostResponse{Topic: topic, Post: post, Trends: trends})
}

// save appends the post to the user's sheet (when a sheet URL is given) and
// records a draft row either way, so drafts survive sheet outages.
//
//	@Summary	Save post draft
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		SavePostRequest	true	"Draft payload"
//	@Success	201		{object}	models.Draft
//	@Failure	400		{object}	HTTPError
//	@Router		/api/posts/save [post]
func (h *PostsHandler) save(c echo.Context) error {
	var req SavePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content required")
	}
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)

	row := 0
	if req.SheetURL != "" {
		n, err := h.Sheets.Append(ctx, req.SheetURL, []string{req.Content})
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		row = n
	}

	draft, err := h.Store.SaveDraft(ctx, models.Draft{
		UserID:   userID,
		Topic:    req.Topic,
		Content:  req.Content,
		SheetURL: req.SheetURL,
		SheetRow: row,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, draft)
}

// autopost launches the PhantomBuster publish phantom against the sheet.
// Credentials come from the request and are used for this call only.
//
//	@Summary	Trigger autopost
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		AutopostRequest	true	"Autopost payload"
//	@Success	200		{object}	AutopostResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/posts/autopost [post]
func (h *PostsHandler) autopost(c echo.Context) error {
	var req AutopostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.SheetURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sheet_url required")
	}
	if req.PhantomKey == "" || req.SessionCookie == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phantombuster_api_key and session_cookie are required")
	}
	creds := phantombuster.Credentials{
		APIKey:        req.PhantomKey,
		SessionCookie: req.SessionCookie,
		UserAgent:     req.UserAgent,
	}
	containerID, err := h.Scraper.Autopost(c.Request().Context(), creds, req.SheetURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, AutopostResponse{ContainerID: containerID})
}

// listDrafts returns the caller's saved drafts, newest first.
//
//	@Summary	List drafts
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{array}	models.Draft
//	@Router		/api/posts [get]
func (h *PostsHandler) listDrafts(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit := 0
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit = n
		}
	}
	drafts, err := h.Store.ListDrafts(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	return c.JSON(http.StatusOK, drafts)
}

// createSchedule registers a recurring autopost. The row holds only the
// sheet URL and cron spec; publish credentials are resolved at fire time.
//
//	@Summary	Create autopost schedule
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ScheduleCreateRequest	true	"Schedule payload"
//	@Success	201		{object}	models.AutopostSchedule
//	@Failure	400		{object}	HTTPError
//	@Router		/api/posts/schedules [post]
func (h *PostsHandler) createSchedule(c echo.Context) error {
	var req ScheduleCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.SheetURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sheet_url required")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	sc, err := h.Store.CreateSchedule(c.Request().Context(), models.AutopostSchedule{
		UserID:   c.Get("user_id").(string),
		SheetURL: req.SheetURL,
		CronSpec: req.CronSpec,
		Enabled:  enabled,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sc)
}

// listSchedules returns the caller's autopost schedules.
//
//	@Summary	List autopost schedules
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{array}	models.AutopostSchedule
//	@Router		/api/posts/schedules [get]
func (h *PostsHandler) listSchedules(c echo.Context) error {
	schedules, err := h.Store.ListSchedules(c.Request().Context(), c.Get("user_id").(string))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if schedules == nil {
		schedules = []models.AutopostSchedule{}
	}
	return c.JSON(http.StatusOK, schedules)
}

// updateSchedule toggles a schedule on or off.
//
//	@Summary	Enable or disable schedule
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Param		id		path	string					true	"Schedule ID"
//	@Param		payload	body	ScheduleUpdateRequest	true	"Toggle payload"
//	@Success	204
//	@Failure	404	{object}	HTTPError
//	@Router		/api/posts/schedules/{id} [put]
func (h *PostsHandler) updateSchedule(c echo.Context) error {
	var req ScheduleUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err := h.Store.SetScheduleEnabled(c.Request().Context(), c.Param("id"), c.Get("user_id").(string), req.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// deleteSchedule removes a schedule.
//
//	@Summary	Delete schedule
//	@Tags		posts
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		id	path	string	true	"Schedule ID"
//	@Success	204
//	@Failure	404	{object}	HTTPError
//	@Router		/api/posts/schedules/{id} [delete]
func (h *PostsHandler) deleteSchedule(c echo.Context) error {
	err := h.Store.DeleteSchedule(c.Request().Context(), c.Param("id"), c.Get("user_id").(string))
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
