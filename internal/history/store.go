// Package history keeps a SQLite record of agent runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by GetRun for unknown run ids.
var ErrNotFound = errors.New("run not found")

// Run is one execution of a task.
type Run struct {
	ID         string         `json:"run_id"`
	TaskID     string         `json:"task_id"`
	TaskName   string         `json:"task_name"`
	App        string         `json:"app"`
	Goal       string         `json:"goal"`
	Query      string         `json:"query,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Success    bool           `json:"success"`
	Steps      int            `json:"steps"`
	Error      string         `json:"error,omitempty"`
	DatasetDir string         `json:"dataset_dir,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	StepLog    []StepEntry    `json:"step_log,omitempty"`
}

// StepEntry is the condensed record of one step.
type StepEntry struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
	URL         string `json:"url,omitempty"`
}

// Store persists runs in SQLite.
type Store struct {
	db         *sql.DB
	keepRecent int
	now        func() time.Time
}

// Open creates or opens the database at path. keepRecent > 0 trims older
// runs on every save.
func Open(path string, keepRecent int) (*Store, error) {
	path = filepath.Clean(path)
	if path == "" || path == "." {
		return nil, fmt.Errorf("invalid sqlite db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, keepRecent: keepRecent, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	task_name TEXT NOT NULL,
	app TEXT NOT NULL,
	goal TEXT NOT NULL,
	query TEXT NOT NULL,
	parameters_json TEXT NOT NULL,
	success INTEGER NOT NULL,
	steps INTEGER NOT NULL,
	error_text TEXT NOT NULL,
	dataset_dir TEXT NOT NULL,
	started_at_unix_ms INTEGER NOT NULL,
	finished_at_unix_ms INTEGER NOT NULL,
	updated_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_updated_at ON runs(updated_at_unix_ms DESC);
CREATE TABLE IF NOT EXISTS run_steps (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step INTEGER NOT NULL,
	action TEXT NOT NULL,
	observation TEXT NOT NULL,
	url TEXT NOT NULL,
	PRIMARY KEY (run_id, step)
);`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

func toUnixMS(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UTC().UnixMilli()
}

func fromUnixMS(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SaveRun inserts or replaces a run together with its step log.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
INSERT INTO runs (
	id, task_id, task_name, app, goal, query, parameters_json, success, steps,
	error_text, dataset_dir, started_at_unix_ms, finished_at_unix_ms, updated_at_unix_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	task_id=excluded.task_id,
	task_name=excluded.task_name,
	app=excluded.app,
	goal=excluded.goal,
	query=excluded.query,
	parameters_json=excluded.parameters_json,
	success=excluded.success,
	steps=excluded.steps,
	error_text=excluded.error_text,
	dataset_dir=excluded.dataset_dir,
	started_at_unix_ms=excluded.started_at_unix_ms,
	finished_at_unix_ms=excluded.finished_at_unix_ms,
	updated_at_unix_ms=excluded.updated_at_unix_ms;`
	if _, err := tx.ExecContext(ctx, upsert,
		run.ID, run.TaskID, run.TaskName, run.App, run.Goal, run.Query, string(params),
		run.Success, run.Steps, run.Error, run.DatasetDir,
		toUnixMS(run.StartedAt), toUnixMS(run.FinishedAt), s.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear run steps: %w", err)
	}
	for _, st := range run.StepLog {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, step, action, observation, url) VALUES (?, ?, ?, ?, ?)`,
			run.ID, st.Step, st.Action, st.Observation, st.URL,
		); err != nil {
			return fmt.Errorf("insert run step %d: %w", st.Step, err)
		}
	}

	if s.keepRecent > 0 {
		const trim = `
DELETE FROM runs
WHERE id NOT IN (
	SELECT id FROM runs
	ORDER BY updated_at_unix_ms DESC, rowid DESC
	LIMIT ?
);`
		if _, err := tx.ExecContext(ctx, trim, s.keepRecent); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `id, task_id, task_name, app, goal, query, parameters_json, success, steps,
	error_text, dataset_dir, started_at_unix_ms, finished_at_unix_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                     Run
		params                string
		startedMS, finishedMS int64
	)
	if err := row.Scan(
		&r.ID, &r.TaskID, &r.TaskName, &r.App, &r.Goal, &r.Query, &params, &r.Success, &r.Steps,
		&r.Error, &r.DatasetDir, &startedMS, &finishedMS,
	); err != nil {
		return Run{}, err
	}
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &r.Parameters); err != nil {
			return Run{}, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	r.StartedAt = fromUnixMS(startedMS)
	r.FinishedAt = fromUnixMS(finishedMS)
	return r, nil
}

// GetRun returns one run with its step log.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step, action, observation, url FROM run_steps WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st StepEntry
		if err := rows.Scan(&st.Step, &st.Action, &st.Observation, &st.URL); err != nil {
			return Run{}, fmt.Errorf("scan run step: %w", err)
		}
		run.StepLog = append(run.StepLog, st)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run steps: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without step logs.
// limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY updated_at_unix_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
