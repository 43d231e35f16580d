package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zainabsaad99/EECE798S-Project/internal/agent"
	"github.com/zainabsaad99/EECE798S-Project/internal/runtime"
	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/internal/stream"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

var runsTracer = otel.Tracer("contentagent/server/runs")

// runTimeout bounds one agent run end to end. The run context is detached
// from the HTTP request so a dropped client cannot abort a scrape mid-poll.
const runTimeout = 15 * time.Minute

type RunsHandler struct {
	Store  *store.Store
	Cache  *store.RunCache
	Runner *agent.Runner
	Logger *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.start)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// start launches one agent run. With stream=true the response is an SSE
// stream of progress and chunk events ending in done or error; otherwise the
// call blocks and returns the terminal run row.
//
//	@Summary	Start agent run
//	@Tags		runs
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		RunStartRequest	true	"Run payload"
//	@Success	200		{object}	models.Run
//	@Failure	400		{object}	HTTPError
//	@Router		/api/agent/runs [post]
func (h *RunsHandler) start(c echo.Context) error {
	var req RunStartRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ProfileURL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile_url required")
	}
	if req.OpenAIKey == "" || req.PhantomKey == "" || req.SessionCookie == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "openai_api_key, phantombuster_api_key and session_cookie are required")
	}
	userID := c.Get("user_id").(string)

	rc := agent.RunContext{
		RunID:           uuid.NewString(),
		UserID:          userID,
		OpenAIKey:       req.OpenAIKey,
		PhantomKey:      req.PhantomKey,
		FirecrawlKey:    req.FirecrawlKey,
		SessionCookie:   req.SessionCookie,
		UserAgent:       req.UserAgent,
		ProfileURL:      req.ProfileURL,
		StyleProfileURL: req.StyleProfileURL,
		Topic:           req.Topic,
		SheetURL:        req.SheetURL,
	}

	ctx, span := runsTracer.Start(c.Request().Context(), "RunsHandler.start")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", rc.RunID), attribute.Bool("stream", req.Stream))

	if err := h.Store.CreateRun(ctx, rc.RunID, userID, req.ProfileURL); err != nil {
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.mirror(models.Run{ID: rc.RunID, UserID: userID, ProfileURL: req.ProfileURL, Status: models.RunStatusRunning, CreatedAt: time.Now()})

	runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if req.Stream {
		resp := c.Response()
		resp.Header().Set(echo.HeaderContentType, "text/event-stream")
		resp.Header().Set(echo.HeaderCacheControl, "no-cache")
		resp.Header().Set("Connection", "keep-alive")
		resp.WriteHeader(http.StatusOK)
		relay, ok := stream.NewSSERelay(ctx, resp)
		if !ok {
			span.SetStatus(codes.Error, "streaming unsupported")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
		}
		result, err := h.Runner.RunStream(runCtx, rc, relay)
		if err != nil {
			span.RecordError(err)
		}
		run := h.finish(rc, result, err)
		span.AddEvent("run finished", trace.WithAttributes(attribute.String("status", string(run.Status))))
		return nil
	}

	result, err := h.Runner.Run(runCtx, rc)
	if err != nil {
		span.RecordError(err)
	}
	run := h.finish(rc, result, err)
	span.AddEvent("run finished", trace.WithAttributes(attribute.String("status", string(run.Status))))
	return c.JSON(http.StatusOK, run)
}

// finish persists the terminal state and returns the stored run row. The run
// context may already be done, so persistence gets its own deadline.
func (h *RunsHandler) finish(rc agent.RunContext, result models.AgentResult, runErr error) models.Run {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := models.RunStatusSucceeded
	errMsg := ""
	resultPtr := &result
	if runErr != nil {
		status = models.RunStatusFailed
		errMsg = agent.UserFacingError(runErr)
		resultPtr = nil
	}
	if err := h.Store.FinishRun(ctx, rc.RunID, status, resultPtr, errMsg); err != nil {
		h.Logger.Printf("run %s: persist terminal state: %v", rc.RunID, err)
	}
	run, err := h.Store.GetRun(ctx, rc.RunID, rc.UserID)
	if err != nil {
		run = models.Run{ID: rc.RunID, UserID: rc.UserID, ProfileURL: rc.ProfileURL, Status: status, Result: resultPtr, Error: errMsg}
	}
	h.mirror(run)
	return run
}

func (h *RunsHandler) mirror(run models.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Cache.Put(ctx, run); err != nil {
		h.Logger.Printf("run %s: cache mirror: %v", run.ID, err)
	}
}

// get returns one run with its result document. The Redis mirror answers
// polls for fresh runs; Postgres is the fallback and source of truth.
//
//	@Summary	Run status and result
//	@Tags		runs
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		id	path	string	true	"Run ID"
//	@Produce	json
//	@Success	200	{object}	models.Run
//	@Failure	404	{object}	HTTPError
//	@Router		/api/agent/runs/{id} [get]
func (h *RunsHandler) get(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	if run, ok := h.Cache.Get(ctx, id); ok && run.UserID == userID {
		return c.JSON(http.StatusOK, run)
	}
	run, err := h.Store.GetRun(ctx, id, userID)
	if errors.Is(err, models.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// list returns the caller's runs, newest first.
//
//	@Summary	List runs
//	@Tags		runs
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{array}	models.Run
//	@Router		/api/agent/runs [get]
func (h *RunsHandler) list(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	limit := 0
	if val := strings.TrimSpace(c.QueryParam("limit")); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.Store.ListRuns(ctx, userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []models.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}
