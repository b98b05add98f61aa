// Package models provides data model definitions for the fitsync engine.
package models

// Exercise is a read-mostly reference record cached from the server's
// exercise catalogue. The cache is hydrated wholesale and never mutated
// by the sync queue.
type Exercise struct {
	ID          UUID   `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	MuscleGroup string `db:"muscle_group" json:"muscle_group,omitempty"`
	Equipment   string `db:"equipment" json:"equipment,omitempty"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Exercise.
func (Exercise) TableName() string {
	return "exercise_cache"
}
