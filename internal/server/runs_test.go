package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

func newRunsHandler(t *testing.T) (*RunsHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := &RunsHandler{
		Store:  &store.Store{DB: db},
		Cache:  store.NewRunCache(nil, 0),
		Logger: log.New(io.Discard, "", 0),
	}
	return h, mock, func() { db.Close() }
}

func TestStartRunRequiresProfileURL(t *testing.T) {
	e := echo.New()
	h, _, done := newRunsHandler(t)
	defer done()

	req := httptest.NewRequest(http.MethodPost, "/api/agent/runs", strings.NewReader(`{"openai_api_key":"sk-x","phantombuster_api_key":"pb-x","session_cookie":"li_at"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := h.start(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
	if httpErr.Message != "profile_url required" {
		t.Fatalf("message = %v", httpErr.Message)
	}
}

func TestStartRunRequiresCredentials(t *testing.T) {
	e := echo.New()
	h, _, done := newRunsHandler(t)
	defer done()

	req := httptest.NewRequest(http.MethodPost, "/api/agent/runs", strings.NewReader(`{"profile_url":"https://www.linkedin.com/in/someone/","openai_api_key":"sk-x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	err := h.start(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", err)
	}
	if msg, _ := httpErr.Message.(string); !strings.Contains(msg, "session_cookie") {
		t.Fatalf("message = %v", httpErr.Message)
	}
}

func TestGetRunFromStore(t *testing.T) {
	e := echo.New()
	h, mock, done := newRunsHandler(t)
	defer done()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	finished := created.Add(2 * time.Minute)
	resultJSON := []byte(`{"run_id":"run-1","success":true,"json_url":"","keywords":["golang"],"style_notes":"","trends":[],"steps":4,"tokens_in":10,"tokens_out":20,"cost_usd":0.01,"started_at":"2024-05-01T10:00:00Z","finished_at":"2024-05-01T10:02:00Z"}`)
	rows := sqlmock.NewRows([]string{"id", "user_id", "profile_url", "status", "result", "error", "created_at", "finished_at"}).
		AddRow("run-1", "user-1", "https://www.linkedin.com/in/someone/", "succeeded", resultJSON, nil, created, finished)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM agent_runs WHERE id=$1 AND user_id=$2`)).
		WithArgs("run-1", "user-1").
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/agent/runs/run-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("run-1")

	if err := h.get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var run models.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID != "run-1" || run.Status != models.RunStatusSucceeded {
		t.Fatalf("run = %+v", run)
	}
	if run.Result == nil || len(run.Result.Keywords) != 1 {
		t.Fatalf("result = %+v", run.Result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	e := echo.New()
	h, mock, done := newRunsHandler(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM agent_runs WHERE id=$1 AND user_id=$2`)).
		WithArgs("missing", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "profile_url", "status", "result", "error", "created_at", "finished_at"}))

	req := httptest.NewRequest(http.MethodGet, "/api/agent/runs/missing", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	err := h.get(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %#v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRunsEmptyBody(t *testing.T) {
	e := echo.New()
	h, mock, done := newRunsHandler(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM agent_runs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`)).
		WithArgs("user-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "profile_url", "status", "error", "created_at", "finished_at"}))

	req := httptest.NewRequest(http.MethodGet, "/api/agent/runs", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %q", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRunsHonorsLimit(t *testing.T) {
	e := echo.New()
	h, mock, done := newRunsHandler(t)
	defer done()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "profile_url", "status", "error", "created_at", "finished_at"}).
		AddRow("run-1", "user-1", "https://www.linkedin.com/in/someone/", "succeeded", nil, created, created.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM agent_runs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`)).
		WithArgs("user-1", 5).
		WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/api/agent/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "user-1")

	if err := h.list(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	var runs []models.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("runs = %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
