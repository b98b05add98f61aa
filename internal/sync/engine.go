// Package sync provides the offline-first synchronization engine.
//
// UI mutations are applied optimistically to the local store and appended
// to the durable sync queue in the same logical step; the reconciler later
// replays queued mutations against the remote API and folds the
// authoritative result back into the store. The UI observes the store,
// never the network.
package sync

import (
	"context"
	"time"

	"github.com/kimhsiao/fitsync/internal/api"
	apperrors "github.com/kimhsiao/fitsync/internal/errors"
	"github.com/kimhsiao/fitsync/internal/logging"
	"github.com/kimhsiao/fitsync/internal/models"
	"github.com/kimhsiao/fitsync/internal/store"
	"github.com/kimhsiao/fitsync/internal/uuid"
)

// DefaultMaxRetries is the retry ceiling per queue item.
const DefaultMaxRetries = 5

// DefaultItemDelay is the throttle between successive queue items within a
// pass. A politeness delay for rate-limited backends, not a correctness
// requirement.
const DefaultItemDelay = 100 * time.Millisecond

// Engine owns the optimistic mutation path and the reconciler.
type Engine struct {
	store      *store.Store
	api        *api.Client
	maxRetries int
	itemDelay  time.Duration
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	MaxRetries int
	ItemDelay  time.Duration
}

// NewEngine creates an Engine over an opened store and API client.
func NewEngine(st *store.Store, client *api.Client, opts Options) *Engine {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ItemDelay == 0 {
		opts.ItemDelay = DefaultItemDelay
	}
	return &Engine{
		store:      st,
		api:        client,
		maxRetries: opts.MaxRetries,
		itemDelay:  opts.ItemDelay,
	}
}

// CreateOptimistic persists a new workout locally with status local and
// queues a CREATE for reconciliation. The returned record is the optimistic
// local representation; its ID is client-generated and stable.
func (e *Engine) CreateOptimistic(w *models.Workout) (*models.Workout, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	if w.ID == "" {
		w.ID = models.UUID(uuid.New())
	}
	w.SyncStatus = models.SyncStatusLocal
	w.SyncError = ""
	w.CreatedAt = now
	w.UpdatedAt = now

	if err := e.store.PutWorkout(w); err != nil {
		return nil, err
	}

	payload, err := models.EncodePayload(&models.CreatePayload{Workout: w})
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Enqueue(models.OpCreate, w.ID, payload); err != nil {
		return nil, err
	}

	logging.Info("Queued optimistic create",
		map[string]interface{}{"workout_id": w.ID.String()})

	return w, nil
}

// UpdateOptimistic applies an update locally and queues an UPDATE.
func (e *Engine) UpdateOptimistic(id models.UUID, w *models.Workout) (*models.Workout, error) {
	w.ID = id
	if err := w.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.store.GetWorkout(id)
	if err != nil {
		return nil, err
	}

	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().Unix()
	w.SyncStatus = models.SyncStatusLocal
	w.SyncError = ""

	if err := e.store.PutWorkout(w); err != nil {
		return nil, err
	}

	payload, err := models.EncodePayload(&models.UpdatePayload{Workout: w})
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Enqueue(models.OpUpdate, id, payload); err != nil {
		return nil, err
	}

	logging.Info("Queued optimistic update",
		map[string]interface{}{"workout_id": id.String()})

	return w, nil
}

// DeleteOptimistic removes a workout locally and queues a DELETE.
func (e *Engine) DeleteOptimistic(id models.UUID) error {
	if err := e.store.DeleteWorkout(id); err != nil {
		return err
	}

	payload, err := models.EncodePayload(&models.DeletePayload{WorkoutID: id})
	if err != nil {
		return err
	}
	if _, err := e.store.Enqueue(models.OpDelete, id, payload); err != nil {
		return err
	}

	logging.Info("Queued optimistic delete",
		map[string]interface{}{"workout_id": id.String()})

	return nil
}

// BatchSyncOptimistic queues several locally-created workouts as one
// BATCH_SYNC operation. DraftID, when set, names the draft to delete once
// the batch is confirmed.
func (e *Engine) BatchSyncOptimistic(workouts []*models.Workout, draftID models.UUID) error {
	now := time.Now().Unix()
	for _, w := range workouts {
		if err := w.Validate(); err != nil {
			return err
		}
		if w.ID == "" {
			w.ID = models.UUID(uuid.New())
		}
		w.SyncStatus = models.SyncStatusLocal
		if w.CreatedAt == 0 {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
		if err := e.store.PutWorkout(w); err != nil {
			return err
		}
	}

	payload, err := models.EncodePayload(&models.BatchSyncPayload{
		Workouts: workouts,
		DraftID:  draftID,
	})
	if err != nil {
		return err
	}

	var anchor models.UUID
	if len(workouts) > 0 {
		anchor = workouts[0].ID
	}
	if _, err := e.store.Enqueue(models.OpBatchSync, anchor, payload); err != nil {
		return err
	}

	logging.Info("Queued batch sync",
		map[string]interface{}{"count": len(workouts)})

	return nil
}

// RetryFailed resets a permanently-failed workout for another round of
// reconciliation: status back to local, retry count back to zero via a
// fresh queue item replaying the operation that failed. A workout the
// server never accepted retries as a CREATE; retrying it as an UPDATE
// would 404 and converge by deleting the local copy. User-triggered.
func (e *Engine) RetryFailed(id models.UUID) error {
	w, err := e.store.GetWorkout(id)
	if err != nil {
		return err
	}
	if w.SyncStatus != models.SyncStatusFailed {
		return apperrors.New(apperrors.ErrInvalid, "workout is not in a failed state")
	}
	failedOp := w.FailedOp

	w.SyncStatus = models.SyncStatusLocal
	w.SyncError = ""
	w.FailedOp = ""
	w.UpdatedAt = time.Now().Unix()
	if err := e.store.PutWorkout(w); err != nil {
		return err
	}

	var (
		op      models.Operation
		payload interface{}
	)
	switch failedOp {
	case models.OpCreate, models.OpBatchSync:
		// Batch anchors retry individually; the server has never seen them.
		op = models.OpCreate
		payload = &models.CreatePayload{Workout: w}
	default:
		op = models.OpUpdate
		payload = &models.UpdatePayload{Workout: w}
	}

	encoded, err := models.EncodePayload(payload)
	if err != nil {
		return err
	}
	if _, err := e.store.Enqueue(op, id, encoded); err != nil {
		return err
	}

	logging.Info("Re-queued failed workout for retry",
		map[string]interface{}{
			"workout_id": id.String(),
			"operation":  string(op),
		})

	return nil
}

// PendingCount returns the number of queued mutations. The queue, not the
// workout status flags, is the source of truth for unsynced work.
func (e *Engine) PendingCount() (int, error) {
	return e.store.QueueLen()
}

// RefreshExerciseCache rehydrates the read-mostly exercise reference cache
// from the server's catalogue.
func (e *Engine) RefreshExerciseCache(ctx context.Context) (int, error) {
	exercises, err := e.api.ListExercises(ctx)
	if err != nil {
		return 0, err
	}

	if err := e.store.ClearExerciseCache(); err != nil {
		return 0, err
	}
	for _, ex := range exercises {
		if err := e.store.PutExercise(ex); err != nil {
			return 0, err
		}
	}

	logging.Info("Refreshed exercise cache",
		map[string]interface{}{"count": len(exercises)})

	return len(exercises), nil
}

// Store exposes the underlying local store to sibling components (draft
// manager, status server).
func (e *Engine) Store() *store.Store {
	return e.store
}
