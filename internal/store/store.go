// Package store persists users, agent runs, post drafts and autopost
// schedules in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/zainabsaad99/EECE798S-Project/config"
	"github.com/zainabsaad99/EECE798S-Project/models"
)

type Store struct {
	DB *sql.DB
}

// New connects using the configured Postgres settings.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Run operations

func (s *Store) CreateRun(ctx context.Context, id, userID, profileURL string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO agent_runs (id, user_id, profile_url, status)
VALUES ($1,$2,$3,$4)
`, id, userID, profileURL, models.RunStatusRunning)
	return err
}

// FinishRun records the terminal state. The result document is stored as
// JSONB so status endpoints can serve it without re-running anything.
func (s *Store) FinishRun(ctx context.Context, runID string, status models.RunStatus, result *models.AgentResult, errMsg string) error {
	var resultJSON []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal run result: %w", err)
		}
		resultJSON = b
	}
	_, err := s.DB.ExecContext(ctx, `
UPDATE agent_runs SET status=$2, result=$3, error=NULLIF($4,''), finished_at=NOW()
WHERE id=$1
`, runID, status, resultJSON, errMsg)
	return err
}

func (s *Store) GetRun(ctx context.Context, id, userID string) (models.Run, error) {
	var (
		run        models.Run
		resultJSON []byte
		errMsg     sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, profile_url, status, result, error, created_at, finished_at
FROM agent_runs WHERE id=$1 AND user_id=$2
`, id, userID).Scan(&run.ID, &run.UserID, &run.ProfileURL, &run.Status, &resultJSON, &errMsg, &run.CreatedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return models.Run{}, models.ErrRunNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	if len(resultJSON) > 0 {
		var result models.AgentResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return models.Run{}, fmt.Errorf("unmarshal run result: %w", err)
		}
		run.Result = &result
	}
	run.Error = errMsg.String
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, profile_url, status, error, created_at, finished_at
FROM agent_runs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Run
	for rows.Next() {
		var (
			run    models.Run
			errMsg sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.UserID, &run.ProfileURL, &run.Status, &errMsg, &run.CreatedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// Draft operations

func (s *Store) SaveDraft(ctx context.Context, d models.Draft) (models.Draft, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO post_drafts (user_id, topic, content, sheet_url, sheet_row)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at
`, d.UserID, d.Topic, d.Content, d.SheetURL, d.SheetRow).Scan(&d.ID, &d.CreatedAt)
	return d, err
}

func (s *Store) ListDrafts(ctx context.Context, userID string, limit int) ([]models.Draft, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, topic, content, sheet_url, sheet_row, created_at
FROM post_drafts WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Draft
	for rows.Next() {
		var d models.Draft
		if err := rows.Scan(&d.ID, &d.UserID, &d.Topic, &d.Content, &d.SheetURL, &d.SheetRow, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Schedule operations

func (s *Store) CreateSchedule(ctx context.Context, sc models.AutopostSchedule) (models.AutopostSchedule, error) {
	if sc.CronSpec == "" {
		sc.CronSpec = "@daily"
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO autopost_schedules (user_id, sheet_url, cron_spec, enabled)
VALUES ($1,$2,$3,$4)
RETURNING id, created_at
`, sc.UserID, sc.SheetURL, sc.CronSpec, sc.Enabled).Scan(&sc.ID, &sc.CreatedAt)
	return sc, err
}

func (s *Store) ListSchedules(ctx context.Context, userID string) ([]models.AutopostSchedule, error) {
	return s.listSchedules(ctx, `
SELECT id, user_id, sheet_url, cron_spec, enabled, last_triggered, created_at
FROM autopost_schedules WHERE user_id=$1 ORDER BY created_at DESC
`, userID)
}

// ListEnabledSchedules feeds the scheduler tick.
func (s *Store) ListEnabledSchedules(ctx context.Context) ([]models.AutopostSchedule, error) {
	return s.listSchedules(ctx, `
SELECT id, user_id, sheet_url, cron_spec, enabled, last_triggered, created_at
FROM autopost_schedules WHERE enabled ORDER BY created_at
`)
}

func (s *Store) listSchedules(ctx context.Context, query string, args ...any) ([]models.AutopostSchedule, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AutopostSchedule
	for rows.Next() {
		var sc models.AutopostSchedule
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.SheetURL, &sc.CronSpec, &sc.Enabled, &sc.LastTriggered, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) SetScheduleEnabled(ctx context.Context, id, userID string, enabled bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE autopost_schedules SET enabled=$3 WHERE id=$1 AND user_id=$2`, id, userID, enabled)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteSchedule(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM autopost_schedules WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// TouchSchedule stamps the last firing time.
func (s *Store) TouchSchedule(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE autopost_schedules SET last_triggered=$2 WHERE id=$1`, id, at)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
