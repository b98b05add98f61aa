package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kimhsiao/fitsync/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil, 5*time.Second)
}

func sampleWorkout() *models.Workout {
	return &models.Workout{
		ID:      "w1",
		OwnerID: "owner-1",
		Name:    "Leg day",
	}
}

func TestCreateWorkoutReturnsServerRepresentation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/entities" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		var sent models.Workout
		json.NewDecoder(r.Body).Decode(&sent)
		sent.ID = "server-1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(sent)
	})

	created, err := client.CreateWorkout(context.Background(), sampleWorkout())
	if err != nil {
		t.Fatalf("CreateWorkout failed: %v", err)
	}
	if created.ID != "server-1" {
		t.Errorf("Expected server-assigned id, got %s", created.ID)
	}
	if created.Name != "Leg day" {
		t.Errorf("Expected echoed payload, got %q", created.Name)
	}
}

func TestCreateWorkoutConflictCarriesServerVersion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server_version": map[string]interface{}{"id": "w1", "name": "Server"},
		})
	})

	_, err := client.CreateWorkout(context.Background(), sampleWorkout())
	conflict, ok := AsConflict(err)
	if !ok {
		t.Fatalf("Expected ConflictError, got %v", err)
	}
	if conflict.ServerVersion == nil || conflict.ServerVersion.Name != "Server" {
		t.Errorf("Expected server version in conflict, got %+v", conflict.ServerVersion)
	}
}

func TestConflictWithoutBodyHasNilServerVersion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{}`))
	})

	_, err := client.CreateWorkout(context.Background(), sampleWorkout())
	conflict, ok := AsConflict(err)
	if !ok {
		t.Fatalf("Expected ConflictError, got %v", err)
	}
	if conflict.ServerVersion != nil {
		t.Errorf("Expected nil server version, got %+v", conflict.ServerVersion)
	}
}

func TestUpdateWorkout404(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.UpdateWorkout(context.Background(), sampleWorkout())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteWorkoutAcceptsBoth200And404(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNoContent} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		if err := client.DeleteWorkout(context.Background(), "w1"); err != nil {
			t.Errorf("Status %d should succeed: %v", status, err)
		}
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := client.DeleteWorkout(context.Background(), "w1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on 404, got %v", err)
	}
}

func TestBatchSyncDecodesResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/entities/batch-sync" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(BatchSyncResult{
			SyncedItems: []BatchSyncedItem{{ClientID: "c1", ServerID: "s1"}},
		})
	})

	result, err := client.BatchSync(context.Background(), []*models.Workout{sampleWorkout()})
	if err != nil {
		t.Fatalf("BatchSync failed: %v", err)
	}
	if len(result.SyncedItems) != 1 || result.SyncedItems[0].ServerID != "s1" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider := func(ctx context.Context) (string, error) { return "tok-123", nil }
	client := NewClient(srv.URL, provider, 5*time.Second)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if got != "Bearer tok-123" {
		t.Errorf("Expected bearer token header, got %q", got)
	}
}

func TestTokenProviderErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Request must not be sent when the token provider fails")
	}))
	defer srv.Close()

	provider := func(ctx context.Context) (string, error) { return "", errors.New("vault sealed") }
	client := NewClient(srv.URL, provider, 5*time.Second)

	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected token provider error to surface")
	}
}

func TestGetDraft404IsErrNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetDraft(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestIsTransientClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"server error", &StatusError{StatusCode: 500}, true},
		{"bad gateway", &StatusError{StatusCode: 502}, true},
		{"validation", &StatusError{StatusCode: 422}, false},
		{"unauthorized", &StatusError{StatusCode: 401}, false},
		{"conflict error", &ConflictError{}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}

func TestIsPermanentClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil", nil, false},
		{"validation", &StatusError{StatusCode: 422}, true},
		{"unauthorized", &StatusError{StatusCode: 401}, true},
		{"bad request", &StatusError{StatusCode: 400}, true},
		{"server error", &StatusError{StatusCode: 500}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.permanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.permanent)
			}
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	// Point at a closed server to produce a connection error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL, nil, time.Second)
	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("Expected connection failure")
	}
	if !IsTransient(err) {
		t.Errorf("Connection failure should be transient: %v", err)
	}
}
