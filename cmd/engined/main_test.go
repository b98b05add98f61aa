// Tests for daemon route registration and handlers.
package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/kimhsiao/fitsync/internal/api"
	"github.com/kimhsiao/fitsync/internal/logging"
	"github.com/kimhsiao/fitsync/internal/models"
	"github.com/kimhsiao/fitsync/internal/store"
	syncpkg "github.com/kimhsiao/fitsync/internal/sync"
	"github.com/kimhsiao/fitsync/internal/sync/draft"
	"github.com/kimhsiao/fitsync/internal/sync/scheduler"
)

func setupTestRouter(t *testing.T) (*mux.Router, *store.Store) {
	return setupTestRouterWithRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func setupTestRouterWithRemote(t *testing.T, remote http.HandlerFunc) (*mux.Router, *store.Store) {
	t.Helper()
	logging.Init(os.Stdout, logging.LevelError)

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	if err := st.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, nil, 5*time.Second)
	engine := syncpkg.NewEngine(st, client, syncpkg.Options{ItemDelay: time.Millisecond})
	sched := scheduler.New(engine, nil)
	drafts := draft.New(st, client, func() bool { return false }, nil)

	return newRouter(engine, sched, drafts, NewWSHub()), st
}

func doRequest(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status scheduler.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !status.IsOnline {
		t.Error("Expected online status by default")
	}
	if status.PendingCount != 0 {
		t.Errorf("Expected empty queue, got %d pending", status.PendingCount)
	}
}

func TestTriggerEndpointRunsPass(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/sync/trigger", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary syncpkg.PassSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("Expected empty pass summary, got %+v", summary)
	}
}

func TestTriggerEndpointRejectsGet(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/sync/trigger", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestCreateWorkoutReturnsOptimisticRecord(t *testing.T) {
	router, st := setupTestRouter(t)

	payload := map[string]interface{}{
		"owner_id": "11111111-1111-4111-8111-111111111111",
		"name":     "Leg day",
	}
	rec := doRequest(router, http.MethodPost, "/api/workouts", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Workout
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected a client-generated id in the response")
	}
	if created.SyncStatus != models.SyncStatusLocal {
		t.Errorf("Expected optimistic local status, got %s", created.SyncStatus)
	}

	if _, err := st.GetWorkout(created.ID); err != nil {
		t.Errorf("Workout not persisted: %v", err)
	}
}

func TestCreateWorkoutSyncsAfterHandlerReturns(t *testing.T) {
	var remoteCalls atomic.Int64
	router, st := setupTestRouterWithRemote(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/entities" {
			remoteCalls.Add(1)
			body, _ := io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
			w.Write(body)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Served for real so net/http cancels the request context the moment
	// the handler returns, exactly as in production.
	app := httptest.NewServer(router)
	t.Cleanup(app.Close)

	payload, _ := json.Marshal(map[string]interface{}{
		"owner_id": "44444444-4444-4444-8444-444444444444",
		"name":     "Push day",
	})
	resp, err := http.Post(app.URL+"/api/workouts", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created models.Workout
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}

	// The triggered pass runs in the background and must outlive the
	// request context, which net/http cancels once the handler returns.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := st.QueueLen(); n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n, _ := st.QueueLen(); n != 0 {
		t.Fatalf("Queued create was never reconciled, %d item(s) left", n)
	}
	if remoteCalls.Load() == 0 {
		t.Fatal("Reconciler pass never reached the remote server")
	}

	got, err := st.GetWorkout(created.ID)
	if err != nil {
		t.Fatalf("Workout missing after reconciliation: %v", err)
	}
	if got.SyncStatus != models.SyncStatusSynced {
		t.Errorf("Expected status synced, got %s", got.SyncStatus)
	}
}

func TestCreateWorkoutValidationError(t *testing.T) {
	router, st := setupTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/workouts", map[string]interface{}{"name": ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", rec.Code)
	}
	if n, _ := st.QueueLen(); n != 0 {
		t.Errorf("Invalid workout must not be queued, got %d", n)
	}
}

func TestGetWorkoutNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/workouts/22222222-2222-4222-8222-222222222222", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestDraftRoundTripThroughAPI(t *testing.T) {
	router, _ := setupTestRouter(t)

	owner := "33333333-3333-4333-8333-333333333333"
	payload := map[string]interface{}{
		"owner_id": owner,
		"snapshot": map[string]interface{}{"exercises": []string{}},
	}
	rec := doRequest(router, http.MethodPost, "/api/draft", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var saved models.Draft
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("Expected an assigned draft id")
	}

	rec = doRequest(router, http.MethodGet, "/api/draft?owner_id="+owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodDelete, "/api/draft/"+saved.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/draft?owner_id="+owner, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 after delete, got %d", rec.Code)
	}
}
