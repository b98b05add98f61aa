// Package models provides data model definitions for the fitsync engine.
package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the workout's struct tags before an optimistic write.
// A validation failure here is a caller bug, not a sync error; nothing is
// persisted or queued for an invalid workout.
func (w *Workout) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("invalid workout: %w", err)
	}
	return nil
}

// Validate checks a draft before it is snapshotted.
func (d *Draft) Validate() error {
	if d.OwnerID == "" {
		return fmt.Errorf("invalid draft: owner_id is required")
	}
	if len(d.Snapshot) == 0 {
		return fmt.Errorf("invalid draft: snapshot is empty")
	}
	return nil
}
