package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deepnoodle-ai/stateflow"
	_ "modernc.org/sqlite"
)

// SQLiteRunStore persists runs in a SQLite database, for high-volume
// retention where one-file-per-run stores become unwieldy. The full run
// record is stored as JSON alongside indexed summary columns.
type SQLiteRunStore struct {
	db *sql.DB
}

// NewSQLiteRunStore opens (creating if needed) a SQLite-backed run store
// at the given path. Use ":memory:" for an ephemeral store.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := &SQLiteRunStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run store: %w", err)
	}
	return store, nil
}

func (s *SQLiteRunStore) initialize() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		workflow_name TEXT NOT NULL,
		status        TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL,
		record        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow_name);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteRunStore) Save(ctx context.Context, run *Run) error {
	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_name, status, created_at, updated_at, record)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at,
			record = excluded.record`,
		run.ID, run.WorkflowName, string(run.Status),
		run.CreatedAt, run.UpdatedAt, string(record))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *SQLiteRunStore) Load(ctx context.Context, runID string) (*Run, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM runs WHERE id = ?", runID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, stateflow.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	var run Run
	if err := json.Unmarshal([]byte(record), &run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &run, nil
}

func (s *SQLiteRunStore) List(ctx context.Context, filter RunFilter) ([]*RunSummary, error) {
	query := "SELECT record FROM runs"
	var conditions []string
	var args []any
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.WorkflowName != nil {
		conditions = append(conditions, "workflow_name = ?")
		args = append(args, *filter.WorkflowName)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit == 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := []*RunSummary{}
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		var run Run
		if err := json.Unmarshal([]byte(record), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		summaries = append(summaries, run.Summary())
	}
	return summaries, rows.Err()
}

func (s *SQLiteRunStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Cleanup removes terminal runs last updated before the given time
func (s *SQLiteRunStore) Cleanup(ctx context.Context, olderThan time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE status IN (?, ?, ?) AND updated_at < ?",
		string(stateflow.RunStatusCompleted), string(stateflow.RunStatusFailed),
		string(stateflow.RunStatusCancelled), olderThan)
	if err != nil {
		return fmt.Errorf("failed to clean up runs: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
