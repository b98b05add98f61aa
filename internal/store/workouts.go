// Package store provides CRUD operations for the workout collection.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kimhsiao/fitsync/internal/models"
)

const workoutColumns = "id, owner_id, name, notes, exercises, sync_status, sync_error, failed_op, created_at, updated_at"

// PutWorkout inserts or replaces a workout by id.
func (s *Store) PutWorkout(w *models.Workout) error {
	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().Unix()
	}
	if w.UpdatedAt == 0 {
		w.UpdatedAt = w.CreatedAt
	}

	query := `
	INSERT INTO workouts (` + workoutColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		name = excluded.name,
		notes = excluded.notes,
		exercises = excluded.exercises,
		sync_status = excluded.sync_status,
		sync_error = excluded.sync_error,
		failed_op = excluded.failed_op,
		updated_at = excluded.updated_at
	`
	exercises := w.Exercises
	if exercises == nil {
		exercises = []byte("[]")
	}
	_, err := s.db.Exec(query, w.ID, w.OwnerID, w.Name, w.Notes, string(exercises),
		w.SyncStatus, w.SyncError, w.FailedOp, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put workout %s: %w", w.ID, err)
	}
	return nil
}

// GetWorkout retrieves a workout by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetWorkout(id models.UUID) (*models.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE id = ?`
	return s.scanWorkout(s.db.QueryRow(query, id))
}

// ListWorkouts returns all workouts ordered by creation time.
func (s *Store) ListWorkouts() ([]*models.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts ORDER BY created_at`
	return s.queryWorkouts(query)
}

// ListWorkoutsByOwner returns the owner's workouts ordered by creation time.
func (s *Store) ListWorkoutsByOwner(ownerID models.UUID) ([]*models.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE owner_id = ? ORDER BY created_at`
	return s.queryWorkouts(query, ownerID)
}

// ListWorkoutsByStatus returns workouts with the given sync status.
func (s *Store) ListWorkoutsByStatus(status models.SyncStatus) ([]*models.Workout, error) {
	query := `SELECT ` + workoutColumns + ` FROM workouts WHERE sync_status = ? ORDER BY created_at`
	return s.queryWorkouts(query, status)
}

// DeleteWorkout removes a workout by id. Deleting a missing id is not an error.
func (s *Store) DeleteWorkout(id models.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM workouts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete workout %s: %w", id, err)
	}
	return nil
}

// ClearWorkouts removes every workout.
func (s *Store) ClearWorkouts() error {
	if _, err := s.db.Exec(`DELETE FROM workouts`); err != nil {
		return fmt.Errorf("failed to clear workouts: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanWorkout(row rowScanner) (*models.Workout, error) {
	var w models.Workout
	var exercises string
	err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Notes, &exercises,
		&w.SyncStatus, &w.SyncError, &w.FailedOp, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Exercises = []byte(exercises)
	return &w, nil
}

func (s *Store) queryWorkouts(query string, args ...interface{}) ([]*models.Workout, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workouts: %w", err)
	}
	defer rows.Close()

	var workouts []*models.Workout
	for rows.Next() {
		w, err := s.scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		workouts = append(workouts, w)
	}
	return workouts, rows.Err()
}

// ErrNoRows re-exports the sentinel for callers that don't import database/sql.
var ErrNoRows = sql.ErrNoRows
