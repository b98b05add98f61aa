// Package models provides data model definitions for the fitsync engine.
package models

import (
	"encoding/json"
	"time"
)

// Draft is a snapshot of an in-progress workout session. At most one live
// draft per owner is meaningful; the draft manager enforces most-recent-wins
// at load time and purges expired losers.
type Draft struct {
	ID        UUID            `db:"id" json:"id"`
	OwnerID   UUID            `db:"owner_id" json:"owner_id"`
	WorkoutID UUID            `db:"workout_id" json:"workout_id,omitempty"`
	Snapshot  json.RawMessage `db:"snapshot" json:"snapshot"`
	UpdatedAt int64           `db:"updated_at" json:"updated_at"`
	ExpiresAt int64           `db:"expires_at" json:"expires_at"`
}

// TableName returns the table name for Draft.
func (Draft) TableName() string {
	return "drafts"
}

// Expired reports whether the draft is past its expiry at the given time.
func (d *Draft) Expired(now time.Time) bool {
	return d.ExpiresAt > 0 && now.Unix() >= d.ExpiresAt
}

// Touch refreshes the draft's timestamps for a new autosave tick.
func (d *Draft) Touch(now time.Time, ttl time.Duration) {
	d.UpdatedAt = now.Unix()
	d.ExpiresAt = now.Add(ttl).Unix()
}
