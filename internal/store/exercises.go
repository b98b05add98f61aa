// Package store provides operations for the exercise reference cache.
package store

import (
	"fmt"

	"github.com/kimhsiao/fitsync/internal/models"
)

const exerciseColumns = "id, name, muscle_group, equipment, updated_at"

// PutExercise inserts or replaces a cached exercise definition.
func (s *Store) PutExercise(e *models.Exercise) error {
	query := `
	INSERT INTO exercise_cache (` + exerciseColumns + `)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		muscle_group = excluded.muscle_group,
		equipment = excluded.equipment,
		updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, e.ID, e.Name, e.MuscleGroup, e.Equipment, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to put exercise %s: %w", e.ID, err)
	}
	return nil
}

// GetExercise retrieves a cached exercise by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetExercise(id models.UUID) (*models.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercise_cache WHERE id = ?`
	row := s.db.QueryRow(query, id)

	var e models.Exercise
	if err := row.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExercises returns the full reference cache ordered by name.
func (s *Store) ListExercises() ([]*models.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercise_cache ORDER BY name`
	return s.queryExercises(query)
}

// ListExercisesByMuscleGroup returns cached exercises for one muscle group.
func (s *Store) ListExercisesByMuscleGroup(group string) ([]*models.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercise_cache WHERE muscle_group = ? ORDER BY name`
	return s.queryExercises(query, group)
}

// ClearExerciseCache removes every cached exercise. Called before a full
// rehydration from the server.
func (s *Store) ClearExerciseCache() error {
	if _, err := s.db.Exec(`DELETE FROM exercise_cache`); err != nil {
		return fmt.Errorf("failed to clear exercise cache: %w", err)
	}
	return nil
}

func (s *Store) queryExercises(query string, args ...interface{}) ([]*models.Exercise, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercises: %w", err)
	}
	defer rows.Close()

	var exercises []*models.Exercise
	for rows.Next() {
		var e models.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Equipment, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exercises = append(exercises, &e)
	}
	return exercises, rows.Err()
}
