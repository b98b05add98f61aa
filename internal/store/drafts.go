// Package store provides CRUD operations for the draft collection.
package store

import (
	"fmt"

	"github.com/kimhsiao/fitsync/internal/models"
)

const draftColumns = "id, owner_id, workout_id, snapshot, updated_at, expires_at"

// PutDraft inserts or replaces a draft snapshot by id.
func (s *Store) PutDraft(d *models.Draft) error {
	query := `
	INSERT INTO drafts (` + draftColumns + `)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		owner_id = excluded.owner_id,
		workout_id = excluded.workout_id,
		snapshot = excluded.snapshot,
		updated_at = excluded.updated_at,
		expires_at = excluded.expires_at
	`
	_, err := s.db.Exec(query, d.ID, d.OwnerID, d.WorkoutID, string(d.Snapshot),
		d.UpdatedAt, d.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to put draft %s: %w", d.ID, err)
	}
	return nil
}

// GetDraft retrieves a draft by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetDraft(id models.UUID) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = ?`
	row := s.db.QueryRow(query, id)

	var d models.Draft
	var snapshot string
	err := row.Scan(&d.ID, &d.OwnerID, &d.WorkoutID, &snapshot, &d.UpdatedAt, &d.ExpiresAt)
	if err != nil {
		return nil, err
	}
	d.Snapshot = []byte(snapshot)
	return &d, nil
}

// ListDraftsByOwner returns the owner's drafts, most recently updated first.
func (s *Store) ListDraftsByOwner(ownerID models.UUID) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE owner_id = ? ORDER BY updated_at DESC`
	rows, err := s.db.Query(query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*models.Draft
	for rows.Next() {
		var d models.Draft
		var snapshot string
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.WorkoutID, &snapshot, &d.UpdatedAt, &d.ExpiresAt); err != nil {
			return nil, err
		}
		d.Snapshot = []byte(snapshot)
		drafts = append(drafts, &d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft by id. Deleting a missing id is not an error.
func (s *Store) DeleteDraft(id models.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	return nil
}

// ClearDrafts removes every draft.
func (s *Store) ClearDrafts() error {
	if _, err := s.db.Exec(`DELETE FROM drafts`); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
