// Package store provides the on-device persistent store backing the sync
// engine. It holds four independent collections: workouts, drafts, the
// exercise reference cache, and the sync queue. Each collection is
// individually atomic; no cross-collection transactions are offered, and
// the reconciliation protocol is built to tolerate that.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/kimhsiao/fitsync/internal/errors"
)

// Store wraps the sql.DB with fitsync-specific configuration.
type Store struct {
	db *sql.DB
}

// Open opens the local SQLite database inside dataDir.
// The database is opened with:
// - WAL mode for concurrent reads/writes
// - Foreign key constraints enabled
// - A single writer connection (SQLite doesn't support multiple writers)
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "failed to create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "fitsync.db")

	// Pure Go driver, no CGO
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreUnavailable, "failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to enable WAL mode", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to enable foreign keys", err)
	}

	return &Store{db: db}, nil
}

// InitSchema creates the four collection tables and their secondary indexes.
// Safe to call on every startup.
func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workouts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		exercises TEXT NOT NULL DEFAULT '[]',
		sync_status TEXT NOT NULL DEFAULT 'local',
		sync_error TEXT NOT NULL DEFAULT '',
		failed_op TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workouts_owner ON workouts(owner_id);
	CREATE INDEX IF NOT EXISTS idx_workouts_status ON workouts(sync_status);

	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		workout_id TEXT NOT NULL DEFAULT '',
		snapshot TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(owner_id);

	CREATE TABLE IF NOT EXISTS exercise_cache (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		muscle_group TEXT NOT NULL DEFAULT '',
		equipment TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exercise_cache_muscle ON exercise_cache(muscle_group);

	CREATE TABLE IF NOT EXISTS sync_queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		workout_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		last_retry_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_workout ON sync_queue(workout_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to create schema", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
