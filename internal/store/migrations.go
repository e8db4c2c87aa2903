package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/avyuktsoni0731/continuum/internal/logging"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: scheduled_tasks, decision_traces",
		SQL:         migration001SQL,
	},
}

const migration001SQL = `
CREATE TABLE scheduled_tasks (
    id           TEXT PRIMARY KEY,
    task_type    TEXT NOT NULL,
    task_key     TEXT NOT NULL,
    scheduled_at DATETIME NOT NULL,
    owner_id     TEXT NOT NULL DEFAULT '',
    metadata     TEXT,
    created_at   DATETIME NOT NULL
);

CREATE TABLE decision_traces (
    id                TEXT PRIMARY KEY,
    task_key          TEXT NOT NULL,
    action            TEXT NOT NULL,
    criticality       REAL NOT NULL,
    feasibility       REAL NOT NULL,
    user_available    INTEGER NOT NULL,
    reasoning         TEXT NOT NULL,
    selected_teammate TEXT,
    trace             TEXT NOT NULL,
    created_at        DATETIME NOT NULL
);

CREATE INDEX idx_scheduled_tasks_time ON scheduled_tasks(scheduled_at ASC);
CREATE INDEX idx_traces_key_time ON decision_traces(task_key, created_at DESC);
`

// Migrate runs all pending migrations inside transactions.
func Migrate(db *sql.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	log := logging.Component("store")

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		log.Infof("applied migration %d: %s", migration.Version, migration.Description)
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func CurrentVersion(db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}

	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
