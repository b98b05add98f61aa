// Package models provides data model definitions for the fitsync engine.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Operation identifies the kind of mutation a queue item replays against
// the server. The set is closed; dispatch is an exhaustive switch and an
// unrecognized value is a permanent failure, never silently skipped.
type Operation string

const (
	OpCreate    Operation = "CREATE"
	OpUpdate    Operation = "UPDATE"
	OpDelete    Operation = "DELETE"
	OpBatchSync Operation = "BATCH_SYNC"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete, OpBatchSync:
		return true
	}
	return false
}

// QueueItem is one pending mutation in the durable sync queue.
// Seq is assigned by the store and defines processing order; CreatedAt is
// informational only, monotonic enqueue order is the real ordering source.
type QueueItem struct {
	Seq         int64           `db:"seq" json:"seq"`
	Operation   Operation       `db:"operation" json:"operation"`
	WorkoutID   UUID            `db:"workout_id" json:"workout_id"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	RetryCount  int             `db:"retry_count" json:"retry_count"`
	LastError   string          `db:"last_error" json:"last_error,omitempty"`
	LastRetryAt int64           `db:"last_retry_at" json:"last_retry_at,omitempty"`
	CreatedAt   int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for QueueItem.
func (QueueItem) TableName() string {
	return "sync_queue"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (q *QueueItem) CreatedAtTime() time.Time {
	return time.Unix(q.CreatedAt, 0)
}

// CreatePayload carries the data needed to replay a CREATE.
// DraftID, when set, names the draft to delete once the create is confirmed.
type CreatePayload struct {
	Workout *Workout `json:"workout"`
	DraftID UUID     `json:"draft_id,omitempty"`
}

// UpdatePayload carries the data needed to replay an UPDATE.
type UpdatePayload struct {
	Workout *Workout `json:"workout"`
}

// DeletePayload carries the data needed to replay a DELETE.
type DeletePayload struct {
	WorkoutID UUID `json:"workout_id"`
}

// BatchSyncPayload carries the data needed to replay a BATCH_SYNC.
type BatchSyncPayload struct {
	Workouts []*Workout `json:"workouts"`
	DraftID  UUID       `json:"draft_id,omitempty"`
}

// EncodePayload marshals an operation payload for queue storage.
func EncodePayload(p interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue payload: %w", err)
	}
	return data, nil
}

// DecodeCreatePayload unmarshals a CREATE payload.
func (q *QueueItem) DecodeCreatePayload() (*CreatePayload, error) {
	var p CreatePayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode create payload: %w", err)
	}
	return &p, nil
}

// DecodeUpdatePayload unmarshals an UPDATE payload.
func (q *QueueItem) DecodeUpdatePayload() (*UpdatePayload, error) {
	var p UpdatePayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode update payload: %w", err)
	}
	return &p, nil
}

// DecodeDeletePayload unmarshals a DELETE payload.
func (q *QueueItem) DecodeDeletePayload() (*DeletePayload, error) {
	var p DeletePayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode delete payload: %w", err)
	}
	return &p, nil
}

// DecodeBatchSyncPayload unmarshals a BATCH_SYNC payload.
func (q *QueueItem) DecodeBatchSyncPayload() (*BatchSyncPayload, error) {
	var p BatchSyncPayload
	if err := json.Unmarshal(q.Payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode batch sync payload: %w", err)
	}
	return &p, nil
}
