package store

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Migration is one schema step
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sqlx.Tx) error
}

// migrations is append-only; versions increase by one
var migrations = []Migration{
	{
		Version:     1,
		Description: "runs table",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    num_claims INTEGER NOT NULL DEFAULT 0,
    num_checkworthy INTEGER NOT NULL DEFAULT 0,
    num_verified INTEGER NOT NULL DEFAULT 0,
    num_supported INTEGER NOT NULL DEFAULT 0,
    num_refuted INTEGER NOT NULL DEFAULT 0,
    num_controversial INTEGER NOT NULL DEFAULT 0,
    factuality REAL NOT NULL DEFAULT 0,
    result_json TEXT NOT NULL
);`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index runs by creation time",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`)
			return err
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

func getSchemaVersion(conn *sqlx.DB) (int, error) {
	var version int
	if err := conn.Get(&version, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate applies pending migrations, tracking progress in PRAGMA user_version
func migrate(conn *sqlx.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}
	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		slog.Debug("applying migration", "version", m.Version, "description", m.Description)

		tx, err := conn.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// modernc/sqlite cannot set user_version inside the transaction;
		// the DDL is idempotent so a crash here only re-runs it
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
