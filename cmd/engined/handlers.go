// REST handlers for the local UI. Mutations apply optimistically and kick
// the scheduler so an online engine syncs right away.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/kimhsiao/fitsync/internal/errors"
	"github.com/kimhsiao/fitsync/internal/models"
	"github.com/kimhsiao/fitsync/internal/store"
	syncpkg "github.com/kimhsiao/fitsync/internal/sync"
	"github.com/kimhsiao/fitsync/internal/sync/draft"
	"github.com/kimhsiao/fitsync/internal/sync/scheduler"
)

type handlers struct {
	engine *syncpkg.Engine
	sched  *scheduler.Scheduler
	drafts *draft.Manager
}

// triggerSync kicks a background reconciler pass after an optimistic
// mutation. The pass outlives the request, so it must not inherit the
// request's cancellation: net/http cancels r.Context() as soon as the
// handler returns, which would abort the pass before it reaches the server.
func (h *handlers) triggerSync(r *http.Request) {
	h.sched.TriggerSync(context.WithoutCancel(r.Context()))
}

func (h *handlers) register(r *mux.Router) {
	r.HandleFunc("/api/workouts", h.listWorkouts).Methods(http.MethodGet)
	r.HandleFunc("/api/workouts", h.createWorkout).Methods(http.MethodPost)
	r.HandleFunc("/api/workouts/{id}", h.getWorkout).Methods(http.MethodGet)
	r.HandleFunc("/api/workouts/{id}", h.updateWorkout).Methods(http.MethodPut)
	r.HandleFunc("/api/workouts/{id}", h.deleteWorkout).Methods(http.MethodDelete)
	r.HandleFunc("/api/workouts/{id}/retry", h.retryWorkout).Methods(http.MethodPost)
	r.HandleFunc("/api/exercises", h.listExercises).Methods(http.MethodGet)
	r.HandleFunc("/api/draft", h.loadDraft).Methods(http.MethodGet)
	r.HandleFunc("/api/draft", h.saveDraft).Methods(http.MethodPost)
	r.HandleFunc("/api/draft/{id}", h.deleteDraft).Methods(http.MethodDelete)
}

func (h *handlers) listWorkouts(w http.ResponseWriter, r *http.Request) {
	var (
		workouts []*models.Workout
		err      error
	)
	if owner := r.URL.Query().Get("owner_id"); owner != "" {
		workouts, err = h.engine.Store().ListWorkoutsByOwner(models.UUID(owner))
	} else {
		workouts, err = h.engine.Store().ListWorkouts()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (h *handlers) getWorkout(w http.ResponseWriter, r *http.Request) {
	id := models.UUID(mux.Vars(r)["id"])
	workout, err := h.engine.Store().GetWorkout(id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (h *handlers) createWorkout(w http.ResponseWriter, r *http.Request) {
	var workout models.Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.engine.CreateOptimistic(&workout)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	// The response is the optimistic local record; reconciliation follows.
	h.triggerSync(r)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) updateWorkout(w http.ResponseWriter, r *http.Request) {
	id := models.UUID(mux.Vars(r)["id"])

	var workout models.Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.engine.UpdateOptimistic(id, &workout)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	h.triggerSync(r)
	writeJSON(w, http.StatusOK, updated)
}

func (h *handlers) deleteWorkout(w http.ResponseWriter, r *http.Request) {
	id := models.UUID(mux.Vars(r)["id"])
	if err := h.engine.DeleteOptimistic(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.triggerSync(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) retryWorkout(w http.ResponseWriter, r *http.Request) {
	id := models.UUID(mux.Vars(r)["id"])
	if err := h.engine.RetryFailed(id); err != nil {
		if apperrors.Is(err, apperrors.ErrInvalid) {
			writeError(w, http.StatusConflict, err)
			return
		}
		if errors.Is(err, store.ErrNoRows) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.triggerSync(r)
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *handlers) listExercises(w http.ResponseWriter, r *http.Request) {
	var (
		exercises []*models.Exercise
		err       error
	)
	if group := r.URL.Query().Get("muscle_group"); group != "" {
		exercises, err = h.engine.Store().ListExercisesByMuscleGroup(group)
	} else {
		exercises, err = h.engine.Store().ListExercises()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (h *handlers) loadDraft(w http.ResponseWriter, r *http.Request) {
	owner := models.UUID(r.URL.Query().Get("owner_id"))
	if owner == "" {
		writeError(w, http.StatusBadRequest, errors.New("owner_id is required"))
		return
	}

	d, err := h.drafts.Load(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handlers) saveDraft(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Register for the autosave loop and snapshot immediately.
	h.drafts.SetActive(&d)
	if err := h.drafts.SaveNow(r.Context(), &d); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, &d)
}

func (h *handlers) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id := models.UUID(mux.Vars(r)["id"])
	h.drafts.ClearActive()
	if err := h.drafts.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.Code(err)),
	})
}
