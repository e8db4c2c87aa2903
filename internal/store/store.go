// Package store persists the scheduled-task registry and decision-trace
// audit log in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/avyuktsoni0731/continuum/internal/policy"
	"github.com/avyuktsoni0731/continuum/internal/trigger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite connection and path.
type Store struct {
	sql  *sql.DB
	path string
}

// DefaultPath returns the default database path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "continuum", "continuum.db")
}

// Open opens or creates the database, applies pragmas, and runs migrations.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultPath()
	}

	resolved := expandPath(dbPath)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := applyPragmas(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := Migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{sql: sqlDB, path: resolved}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// SQL returns the raw *sql.DB for advanced usage.
func (s *Store) SQL() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sql
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// SaveTask inserts or replaces a scheduled task.
func (s *Store) SaveTask(task trigger.ScheduledTask) error {
	metadata, err := json.Marshal(task.Metadata)
	if err != nil {
		return fmt.Errorf("encoding task metadata: %w", err)
	}

	_, err = s.sql.Exec(`
		INSERT INTO scheduled_tasks (id, task_type, task_key, scheduled_at, owner_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_type    = excluded.task_type,
			task_key     = excluded.task_key,
			scheduled_at = excluded.scheduled_at,
			owner_id     = excluded.owner_id,
			metadata     = excluded.metadata`,
		task.ID, string(task.TaskType), task.TaskKey,
		task.ScheduledAt.UTC().Format(time.RFC3339), task.OwnerID,
		string(metadata), task.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a scheduled task by id.
func (s *Store) DeleteTask(id string) error {
	res, err := s.sql.Exec(`DELETE FROM scheduled_tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListTasks returns all scheduled tasks ordered by scheduled time.
func (s *Store) ListTasks() ([]trigger.ScheduledTask, error) {
	rows, err := s.sql.Query(`
		SELECT id, task_type, task_key, scheduled_at, owner_id, metadata, created_at
		FROM scheduled_tasks ORDER BY scheduled_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []trigger.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTask returns one scheduled task by id.
func (s *Store) GetTask(id string) (trigger.ScheduledTask, error) {
	row := s.sql.QueryRow(`
		SELECT id, task_type, task_key, scheduled_at, owner_id, metadata, created_at
		FROM scheduled_tasks WHERE id = ?`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trigger.ScheduledTask{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (trigger.ScheduledTask, error) {
	var (
		task                           trigger.ScheduledTask
		taskType, scheduled, createdAt string
		metadata                       sql.NullString
	)
	if err := row.Scan(&task.ID, &taskType, &task.TaskKey, &scheduled, &task.OwnerID, &metadata, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task, err
		}
		return task, fmt.Errorf("scanning task: %w", err)
	}

	task.TaskType = policy.TaskType(taskType)

	at, err := time.Parse(time.RFC3339, scheduled)
	if err != nil {
		return task, fmt.Errorf("parsing scheduled_at: %w", err)
	}
	task.ScheduledAt = at

	if created, err := time.Parse(time.RFC3339, createdAt); err == nil {
		task.CreatedAt = created
	}

	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			return task, fmt.Errorf("decoding task metadata: %w", err)
		}
	}
	return task, nil
}

// SaveTrace appends a decision trace to the audit log.
func (s *Store) SaveTrace(taskKey string, trace policy.DecisionTrace) error {
	encoded, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}

	_, err = s.sql.Exec(`
		INSERT INTO decision_traces (id, task_key, action, criticality, feasibility, user_available, reasoning, selected_teammate, trace, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), taskKey, string(trace.Action),
		trace.CriticalityScore, trace.FeasibilityScore,
		trace.UserAvailable, trace.Reasoning, trace.SelectedTeammate,
		string(encoded), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving trace for %s: %w", taskKey, err)
	}
	return nil
}

// TraceRecord is one persisted decision trace.
type TraceRecord struct {
	ID        string               `json:"id"`
	TaskKey   string               `json:"task_key"`
	Trace     policy.DecisionTrace `json:"trace"`
	CreatedAt time.Time            `json:"created_at"`
}

// ListTraces returns the most recent traces for a task key, newest first.
func (s *Store) ListTraces(taskKey string, limit int) ([]TraceRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.sql.Query(`
		SELECT id, task_key, trace, created_at
		FROM decision_traces WHERE task_key = ?
		ORDER BY created_at DESC LIMIT ?`, taskKey, limit)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	defer rows.Close()

	var records []TraceRecord
	for rows.Next() {
		var (
			rec       TraceRecord
			encoded   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.TaskKey, &encoded, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &rec.Trace); err != nil {
			return nil, fmt.Errorf("decoding trace: %w", err)
		}
		if created, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = created
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}

	return path
}
