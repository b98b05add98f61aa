// Package sync: reconciler pass over the durable mutation queue.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kimhsiao/fitsync/internal/api"
	"github.com/kimhsiao/fitsync/internal/logging"
	"github.com/kimhsiao/fitsync/internal/models"
	"github.com/kimhsiao/fitsync/internal/store"
	"github.com/kimhsiao/fitsync/internal/telemetry"
)

// PassSummary reports the outcome of one reconciler pass. Item-level
// failures never escape as errors; they are folded in here and into the
// stored workout statuses.
type PassSummary struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Errors    []ItemError   `json:"errors,omitempty"`
}

// ItemError records one failed or abandoned queue item.
type ItemError struct {
	Seq       int64            `json:"seq"`
	Operation models.Operation `json:"operation"`
	Message   string           `json:"message"`
}

// RunPass drains the sync queue strictly in enqueue order, replaying each
// item against the remote API and reconciling the outcome into the local
// store. Safe to run repeatedly; a second pass simply finds a smaller or
// empty queue. The only error returned is context cancellation.
func (e *Engine) RunPass(ctx context.Context) (*PassSummary, error) {
	summary := &PassSummary{StartTime: time.Now()}
	defer func() {
		summary.EndTime = time.Now()
		summary.Duration = summary.EndTime.Sub(summary.StartTime)
		telemetry.RecordTiming("sync.pass.duration", summary.Duration, nil)
		telemetry.RecordCount("sync.pass.succeeded", summary.Succeeded, nil)
		telemetry.RecordCount("sync.pass.failed", summary.Failed, nil)
	}()

	items, err := e.store.ListQueue()
	if err != nil {
		// Storage unavailable: nothing to reconcile this pass.
		logging.Error("Failed to read sync queue", err, nil)
		return summary, nil
	}

	logging.Info("Starting reconciler pass",
		map[string]interface{}{"pending": len(items)})

	for i, item := range items {
		if i > 0 {
			// Throttle between successive items.
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(e.itemDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		e.reconcileItem(ctx, item, summary)
	}

	logging.Info("Reconciler pass completed",
		map[string]interface{}{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		})

	return summary, nil
}

// reconcileItem processes a single queue item to a terminal or retry state.
func (e *Engine) reconcileItem(ctx context.Context, item *models.QueueItem, summary *PassSummary) {
	// Retry ceiling already reached, e.g. after a crash between the last
	// increment and eviction: abandon without touching the network.
	if item.RetryCount >= e.maxRetries {
		msg := item.LastError
		if msg == "" {
			msg = "retry limit exceeded"
		}
		e.abandonExhausted(item, summary, msg)
		return
	}

	// Advisory only; correctness never depends on the syncing flag.
	e.markWorkoutSyncing(item.WorkoutID)

	var err error
	switch item.Operation {
	case models.OpCreate:
		err = e.reconcileCreate(ctx, item)
	case models.OpUpdate:
		err = e.reconcileUpdate(ctx, item)
	case models.OpDelete:
		err = e.reconcileDelete(ctx, item)
	case models.OpBatchSync:
		err = e.reconcileBatchSync(ctx, item)
	default:
		err = fmt.Errorf("unknown operation %q", item.Operation)
	}

	if err == nil {
		summary.Succeeded++
		return
	}

	if api.IsTransient(err) {
		item.RetryCount++
		item.LastError = err.Error()
		// The failure that lands on the ceiling is the last one; no later
		// pass will pick the item up again.
		if item.RetryCount >= e.maxRetries {
			e.abandonExhausted(item, summary, item.LastError)
			return
		}
		// Leave the item in place; the next scheduled pass is the backoff.
		if uerr := e.store.UpdateRetryState(item.Seq, item.RetryCount, item.LastError, time.Now()); uerr != nil {
			logging.Error("Failed to record retry state", uerr,
				map[string]interface{}{"seq": item.Seq})
		}
		e.recordFailure(summary, item, err.Error())

		logging.Warn("Transient sync failure, will retry",
			map[string]interface{}{
				"seq":         item.Seq,
				"operation":   string(item.Operation),
				"retry_count": item.RetryCount,
				"error":       err.Error(),
			})
		return
	}

	// Non-retryable: abandon immediately.
	e.markWorkoutFailed(item.WorkoutID, item.Operation, err.Error())
	e.removeItem(item)
	e.recordFailure(summary, item, err.Error())
	telemetry.TrackError(err, map[string]string{"operation": string(item.Operation)})

	if api.IsPermanent(err) {
		logging.Error("Server rejected mutation, item abandoned", err,
			map[string]interface{}{
				"seq":       item.Seq,
				"operation": string(item.Operation),
			})
		return
	}
	// Local failure: undecodable payload or an unknown operation.
	logging.Error("Unreplayable queue item abandoned", err,
		map[string]interface{}{
			"seq":       item.Seq,
			"operation": string(item.Operation),
		})
}

// abandonExhausted evicts an item whose retry budget is spent and flags the
// workout so the user can retry explicitly.
func (e *Engine) abandonExhausted(item *models.QueueItem, summary *PassSummary, msg string) {
	e.markWorkoutFailed(item.WorkoutID, item.Operation, msg)
	e.removeItem(item)
	e.recordFailure(summary, item, fmt.Sprintf("abandoned after %d retries: %s", item.RetryCount, msg))

	logging.Warn("Abandoned queue item after retry ceiling",
		map[string]interface{}{
			"seq":         item.Seq,
			"operation":   string(item.Operation),
			"retry_count": item.RetryCount,
		})
}

// reconcileCreate replays a CREATE against the server.
func (e *Engine) reconcileCreate(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeCreatePayload()
	if err != nil {
		return err
	}

	created, err := e.api.CreateWorkout(ctx, p.Workout)
	if err != nil {
		if conflict, ok := api.AsConflict(err); ok {
			return e.acceptServerVersion(ctx, item, conflict, p.DraftID)
		}
		return err
	}

	// Server may assign its own id; the optimistic row moves to the
	// canonical one.
	if created.ID != p.Workout.ID {
		if err := e.store.DeleteWorkout(p.Workout.ID); err != nil {
			return err
		}
	}
	if err := e.applySynced(created); err != nil {
		return err
	}
	e.removeItem(item)
	e.deleteDraft(ctx, p.DraftID)
	return nil
}

// reconcileUpdate replays an UPDATE against the server.
func (e *Engine) reconcileUpdate(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeUpdatePayload()
	if err != nil {
		return err
	}

	updated, err := e.api.UpdateWorkout(ctx, p.Workout)
	if err != nil {
		if conflict, ok := api.AsConflict(err); ok {
			return e.acceptServerVersion(ctx, item, conflict, "")
		}
		if errors.Is(err, api.ErrNotFound) {
			// The record no longer exists server-side; converge by
			// dropping the local copy.
			if derr := e.store.DeleteWorkout(p.Workout.ID); derr != nil {
				return derr
			}
			e.removeItem(item)
			return nil
		}
		return err
	}

	if err := e.applySynced(updated); err != nil {
		return err
	}
	e.removeItem(item)
	return nil
}

// reconcileDelete replays a DELETE against the server. 404 means already
// gone, which is the desired end state.
func (e *Engine) reconcileDelete(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeDeletePayload()
	if err != nil {
		return err
	}

	err = e.api.DeleteWorkout(ctx, p.WorkoutID)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}

	if derr := e.store.DeleteWorkout(p.WorkoutID); derr != nil {
		return derr
	}
	e.removeItem(item)
	return nil
}

// reconcileBatchSync replays a BATCH_SYNC, then hydrates each synced item
// with the server's canonical record.
func (e *Engine) reconcileBatchSync(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeBatchSyncPayload()
	if err != nil {
		return err
	}

	result, err := e.api.BatchSync(ctx, p.Workouts)
	if err != nil {
		return err
	}

	for _, synced := range result.SyncedItems {
		canonical, err := e.api.GetWorkout(ctx, synced.ServerID)
		if err != nil {
			// The batch is confirmed; a failed hydration leaves the local
			// record unsynced rather than fabricating a synced state.
			logging.Warn("Failed to hydrate batch-synced workout",
				map[string]interface{}{
					"client_id": synced.ClientID.String(),
					"server_id": synced.ServerID.String(),
					"error":     err.Error(),
				})
			continue
		}
		if synced.ClientID != synced.ServerID {
			if err := e.store.DeleteWorkout(synced.ClientID); err != nil {
				return err
			}
		}
		if err := e.applySynced(canonical); err != nil {
			return err
		}
	}

	e.removeItem(item)
	e.deleteDraft(ctx, p.DraftID)
	return nil
}

// acceptServerVersion resolves a conflict server-wins: the server's record
// overwrites the local one wholesale and the queue item is done.
func (e *Engine) acceptServerVersion(ctx context.Context, item *models.QueueItem, conflict *api.ConflictError, draftID models.UUID) error {
	server := conflict.ServerVersion
	if server == nil {
		// 409 without a body; fetch the canonical record instead.
		fetched, err := e.api.GetWorkout(ctx, item.WorkoutID)
		if err != nil {
			return err
		}
		server = fetched
	}

	if err := e.applySynced(server); err != nil {
		return err
	}
	e.removeItem(item)
	e.deleteDraft(ctx, draftID)

	logging.Info("Conflict resolved server-wins",
		map[string]interface{}{"workout_id": server.ID.String()})

	return nil
}

// applySynced overwrites the local record with the server's representation.
// Optimistic client-side fields are discarded; synced always mirrors the
// last server response.
func (e *Engine) applySynced(server *models.Workout) error {
	w := server.Clone()
	w.SyncStatus = models.SyncStatusSynced
	w.SyncError = ""
	w.FailedOp = ""
	return e.store.PutWorkout(w)
}

// markWorkoutFailed flags a workout as permanently abandoned, remembering
// which operation was lost so RetryFailed can replay the same one. A
// missing workout (already deleted optimistically) is fine.
func (e *Engine) markWorkoutFailed(id models.UUID, op models.Operation, msg string) {
	if id == "" {
		return
	}
	w, err := e.store.GetWorkout(id)
	if err != nil {
		if !errors.Is(err, store.ErrNoRows) {
			logging.Error("Failed to load workout for failure marking", err,
				map[string]interface{}{"workout_id": id.String()})
		}
		return
	}
	w.SyncStatus = models.SyncStatusFailed
	w.SyncError = msg
	w.FailedOp = op
	if err := e.store.PutWorkout(w); err != nil {
		logging.Error("Failed to mark workout failed", err,
			map[string]interface{}{"workout_id": id.String()})
	}
}

// markWorkoutSyncing sets the advisory in-flight flag. Best effort.
func (e *Engine) markWorkoutSyncing(id models.UUID) {
	if id == "" {
		return
	}
	w, err := e.store.GetWorkout(id)
	if err != nil {
		return
	}
	w.SyncStatus = models.SyncStatusSyncing
	if err := e.store.PutWorkout(w); err != nil {
		logging.Debug("Failed to mark workout syncing",
			map[string]interface{}{"workout_id": id.String()})
	}
}

// removeItem deletes a queue item, logging rather than failing the pass.
func (e *Engine) removeItem(item *models.QueueItem) {
	if err := e.store.RemoveQueueItem(item.Seq); err != nil {
		logging.Error("Failed to remove queue item", err,
			map[string]interface{}{"seq": item.Seq})
	}
}

// deleteDraft removes the draft tied to a confirmed create or batch, both
// locally and from the server's draft slot. Best effort on the remote side.
func (e *Engine) deleteDraft(ctx context.Context, draftID models.UUID) {
	if draftID == "" {
		return
	}
	if err := e.store.DeleteDraft(draftID); err != nil {
		logging.Error("Failed to delete local draft", err,
			map[string]interface{}{"draft_id": draftID.String()})
	}
	if err := e.api.DeleteDraft(ctx); err != nil {
		logging.Warn("Failed to clear server draft slot",
			map[string]interface{}{"error": err.Error()})
	}
}

// recordFailure appends one item failure to the pass summary.
func (e *Engine) recordFailure(summary *PassSummary, item *models.QueueItem, msg string) {
	summary.Failed++
	summary.Errors = append(summary.Errors, ItemError{
		Seq:       item.Seq,
		Operation: item.Operation,
		Message:   msg,
	})
}
