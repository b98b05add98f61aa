// Package store provides the durable sync queue collection.
//
// The queue is an ordered log of pending mutations. Items are processed in
// seq order and removed only when their operation is confirmed applied or
// permanently abandoned; it is the sole source of truth for "is there
// unsynced work".
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kimhsiao/fitsync/internal/models"
)

const queueColumns = "seq, operation, workout_id, payload, retry_count, last_error, last_retry_at, created_at"

// Enqueue appends a mutation to the queue with retry_count 0 and returns
// the assigned seq. Callers enqueue as part of the same logical step as the
// optimistic workout write it protects.
func (s *Store) Enqueue(op models.Operation, workoutID models.UUID, payload json.RawMessage) (int64, error) {
	if !op.Valid() {
		return 0, fmt.Errorf("unknown queue operation: %q", op)
	}

	query := `
	INSERT INTO sync_queue (operation, workout_id, payload, retry_count, created_at)
	VALUES (?, ?, ?, 0, ?)
	`
	res, err := s.db.Exec(query, op, workoutID, string(payload), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s: %w", op, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue seq: %w", err)
	}
	return seq, nil
}

// ListQueue returns every pending item in enqueue order.
func (s *Store) ListQueue() ([]*models.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM sync_queue ORDER BY seq`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var payload string
		err := rows.Scan(&item.Seq, &item.Operation, &item.WorkoutID, &payload,
			&item.RetryCount, &item.LastError, &item.LastRetryAt, &item.CreatedAt)
		if err != nil {
			return nil, err
		}
		item.Payload = []byte(payload)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// RemoveQueueItem deletes one item by seq.
func (s *Store) RemoveQueueItem(seq int64) error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to remove queue item %d: %w", seq, err)
	}
	return nil
}

// UpdateRetryState records a failed attempt on one item. Order is unchanged.
func (s *Store) UpdateRetryState(seq int64, retryCount int, lastError string, lastRetryAt time.Time) error {
	query := `UPDATE sync_queue SET retry_count = ?, last_error = ?, last_retry_at = ? WHERE seq = ?`
	if _, err := s.db.Exec(query, retryCount, lastError, lastRetryAt.Unix(), seq); err != nil {
		return fmt.Errorf("failed to update retry state for %d: %w", seq, err)
	}
	return nil
}

// QueueLen returns the number of pending items.
func (s *Store) QueueLen() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return n, nil
}

// QueueHasWorkout reports whether any pending item targets the workout.
// The draft manager uses this to avoid racing an unqueued draft write
// against a queued create for the same id.
func (s *Store) QueueHasWorkout(workoutID models.UUID) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_queue WHERE workout_id = ?`, workoutID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check queue for workout %s: %w", workoutID, err)
	}
	return n > 0, nil
}

// ClearQueue removes every pending item.
func (s *Store) ClearQueue() error {
	if _, err := s.db.Exec(`DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}
	return nil
}
