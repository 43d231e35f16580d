package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zainabsaad99/EECE798S-Project/internal/store"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

func TestStorePersistenceRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	migration, err := filepath.Abs(filepath.Join("..", "..", "migrations", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("migration path: %v", err)
	}

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("agents"),
		tcPostgres.WithUsername("agents"),
		tcPostgres.WithPassword("agents"),
		tcPostgres.WithInitScripts(migration),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	pgHost, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	pgPort, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://agents:agents@%s:%s/agents?sslmode=disable", pgHost, pgPort.Port())
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer func() { _ = st.Close() }()

	// Users
	if err := st.CreateUser(ctx, "integration@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	userID, hash, err := st.GetUserByEmail(ctx, "integration@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if userID == "" || hash != "hash" {
		t.Fatalf("user row = %q/%q", userID, hash)
	}
	err = st.CreateUser(ctx, "integration@example.com", "hash2")
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		t.Fatalf("duplicate email error = %v", err)
	}

	// Runs
	runID := uuid.New().String()
	if err := st.CreateRun(ctx, runID, userID, "https://www.linkedin.com/in/someone/"); err != nil {
		t.Fatalf("create run: %v", err)
	}
	run, err := st.GetRun(ctx, runID, userID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != models.RunStatusRunning || run.FinishedAt != nil {
		t.Fatalf("fresh run = %+v", run)
	}

	result := &models.AgentResult{
		RunID:     runID,
		Success:   true,
		SourceURL: "https://cache.phantombuster.com/abc/result.json",
		Keywords:  []string{"golang", "distributed systems"},
		Trends:    []models.Trend{{Title: "Agentic pipelines", URL: "https://example.com/t"}},
		Steps:     4,
		TokensIn:  1200,
		TokensOut: 300,
		CostUSD:   0.0042,
	}
	if err := st.FinishRun(ctx, runID, models.RunStatusSucceeded, result, ""); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	run, err = st.GetRun(ctx, runID, userID)
	if err != nil {
		t.Fatalf("get finished run: %v", err)
	}
	if run.Status != models.RunStatusSucceeded || run.Error != "" || run.FinishedAt == nil {
		t.Fatalf("finished run = %+v", run)
	}
	if run.Result == nil || run.Result.SourceURL != result.SourceURL || len(run.Result.Keywords) != 2 {
		t.Fatalf("run result = %+v", run.Result)
	}

	failedID := uuid.New().String()
	if err := st.CreateRun(ctx, failedID, userID, "https://www.linkedin.com/in/other/"); err != nil {
		t.Fatalf("create second run: %v", err)
	}
	if err := st.FinishRun(ctx, failedID, models.RunStatusFailed, nil, "phantombuster rejected credentials"); err != nil {
		t.Fatalf("fail run: %v", err)
	}
	failed, err := st.GetRun(ctx, failedID, userID)
	if err != nil {
		t.Fatalf("get failed run: %v", err)
	}
	if failed.Status != models.RunStatusFailed || failed.Result != nil || failed.Error == "" {
		t.Fatalf("failed run = %+v", failed)
	}

	if _, err := st.GetRun(ctx, runID, uuid.New().String()); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("foreign user lookup = %v", err)
	}

	runs, err := st.ListRuns(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("listed %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.Result != nil {
			t.Fatalf("list should not carry result documents: %+v", r)
		}
	}

	// Drafts
	draft, err := st.SaveDraft(ctx, models.Draft{UserID: userID, Topic: "ai agents", Content: "Draft body"})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if draft.ID == "" || draft.CreatedAt.IsZero() {
		t.Fatalf("draft row = %+v", draft)
	}
	drafts, err := st.ListDrafts(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Topic != "ai agents" {
		t.Fatalf("drafts = %+v", drafts)
	}

	// Schedules
	sc, err := st.CreateSchedule(ctx, models.AutopostSchedule{
		UserID:   userID,
		SheetURL: "https://docs.google.com/spreadsheets/d/sheet1",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if sc.ID == "" || sc.CronSpec != "@daily" {
		t.Fatalf("schedule row = %+v", sc)
	}
	enabled, err := st.ListEnabledSchedules(ctx)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != sc.ID {
		t.Fatalf("enabled schedules = %+v", enabled)
	}
	if err := st.TouchSchedule(ctx, sc.ID, time.Now()); err != nil {
		t.Fatalf("touch schedule: %v", err)
	}
	if err := st.SetScheduleEnabled(ctx, sc.ID, userID, false); err != nil {
		t.Fatalf("disable schedule: %v", err)
	}
	enabled, err = st.ListEnabledSchedules(ctx)
	if err != nil {
		t.Fatalf("list enabled after disable: %v", err)
	}
	if len(enabled) != 0 {
		t.Fatalf("enabled schedules after disable = %+v", enabled)
	}
	mine, err := st.ListSchedules(ctx, userID)
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(mine) != 1 || mine[0].LastTriggered == nil || mine[0].Enabled {
		t.Fatalf("schedules = %+v", mine)
	}
	if err := st.SetScheduleEnabled(ctx, uuid.New().String(), userID, true); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("enable missing schedule = %v", err)
	}
	if err := st.DeleteSchedule(ctx, sc.ID, userID); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}
	if err := st.DeleteSchedule(ctx, sc.ID, userID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("delete missing schedule = %v", err)
	}
}

func TestRunCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	defer func() { _ = rdb.Close() }()

	cache := store.NewRunCache(rdb, time.Minute)
	run := models.Run{
		ID:         uuid.New().String(),
		UserID:     uuid.New().String(),
		ProfileURL: "https://www.linkedin.com/in/someone/",
		Status:     models.RunStatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	if err := cache.Put(ctx, run); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := cache.Get(ctx, run.ID)
	if !ok {
		t.Fatal("cached run not found")
	}
	if got.ID != run.ID || got.Status != models.RunStatusRunning || got.ProfileURL != run.ProfileURL {
		t.Fatalf("cached run = %+v", got)
	}
	if _, ok := cache.Get(ctx, uuid.New().String()); ok {
		t.Fatal("unexpected hit for unknown run")
	}
}
