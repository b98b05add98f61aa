// Package models provides data model definitions for the fitsync engine.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// SyncStatus tracks where a workout stands relative to the server.
type SyncStatus string

const (
	// SyncStatusLocal means the workout exists only on this device.
	SyncStatusLocal SyncStatus = "local"
	// SyncStatusSyncing means reconciliation is in flight. Advisory only.
	SyncStatusSyncing SyncStatus = "syncing"
	// SyncStatusSynced means the local copy mirrors the last server response.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusFailed means the workout was permanently abandoned after
	// exhausting retries or hitting a non-retryable server rejection.
	SyncStatusFailed SyncStatus = "failed"
	// SyncStatusConflict is transient. It resolves to synced as soon as
	// the server's version is accepted.
	SyncStatusConflict SyncStatus = "conflict"
)

// Workout represents a unit of training data persisted both locally and
// remotely. The ID is client-generated and stable across the
// optimistic-to-synced transition.
type Workout struct {
	ID         UUID            `db:"id" json:"id"`
	OwnerID    UUID            `db:"owner_id" json:"owner_id" validate:"required"`
	Name       string          `db:"name" json:"name" validate:"required,max=120"`
	Notes      string          `db:"notes" json:"notes,omitempty"`
	Exercises  json.RawMessage `db:"exercises" json:"exercises,omitempty"`
	SyncStatus SyncStatus      `db:"sync_status" json:"sync_status"`
	SyncError  string          `db:"sync_error" json:"sync_error,omitempty"`
	// FailedOp records which operation was abandoned when SyncStatus is
	// failed, so a user-triggered retry replays the same kind of mutation.
	FailedOp  Operation `db:"failed_op" json:"failed_op,omitempty"`
	CreatedAt int64     `db:"created_at" json:"created_at"`
	UpdatedAt int64     `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Workout.
func (Workout) TableName() string {
	return "workouts"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (w *Workout) CreatedAtTime() time.Time {
	return time.Unix(w.CreatedAt, 0)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (w *Workout) UpdatedAtTime() time.Time {
	return time.Unix(w.UpdatedAt, 0)
}

// Clone returns a deep copy of the workout.
func (w *Workout) Clone() *Workout {
	c := *w
	if w.Exercises != nil {
		c.Exercises = append(json.RawMessage(nil), w.Exercises...)
	}
	return &c
}
