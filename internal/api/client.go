// Package api provides the JSON/HTTP client for the remote workout API.
//
// The client knows nothing about the sync queue or the local store; it maps
// HTTP responses to typed outcomes (entity, ConflictError, ErrNotFound,
// StatusError) and leaves policy to the reconciler.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kimhsiao/fitsync/internal/models"
)

// TokenProvider supplies the bearer token for a request. Token management
// is an external collaborator; the client calls through it opaquely.
type TokenProvider func(ctx context.Context) (string, error)

// Client talks to the remote workout API.
type Client struct {
	baseURL    string
	token      TokenProvider
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL.
// A nil token provider means unauthenticated requests.
func NewClient(baseURL string, token TokenProvider, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// conflictBody is the wire shape of a structured 409 response.
type conflictBody struct {
	ServerVersion *models.Workout `json:"server_version"`
}

// BatchSyncResult is the response of POST /entities/batch-sync.
type BatchSyncResult struct {
	SyncedItems []BatchSyncedItem `json:"syncedItems"`
}

// BatchSyncedItem maps a client-chosen id to the server's id.
type BatchSyncedItem struct {
	ClientID models.UUID `json:"clientId"`
	ServerID models.UUID `json:"serverId"`
}

// CreateWorkout replays a CREATE. Returns the server's representation on
// 201, a ConflictError on 409.
func (c *Client) CreateWorkout(ctx context.Context, w *models.Workout) (*models.Workout, error) {
	resp, body, err := c.do(ctx, http.MethodPost, "/entities", w)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return decodeWorkout(body)
	case http.StatusConflict:
		return nil, decodeConflict(body)
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// UpdateWorkout replays an UPDATE. Returns the server's representation on
// 200, ErrNotFound on 404, a ConflictError on 409.
func (c *Client) UpdateWorkout(ctx context.Context, w *models.Workout) (*models.Workout, error) {
	resp, body, err := c.do(ctx, http.MethodPut, "/entities/"+w.ID.String(), w)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeWorkout(body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusConflict:
		return nil, decodeConflict(body)
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// DeleteWorkout replays a DELETE. 200 and 404 are both acceptable end
// states; 404 is reported as ErrNotFound so the caller can distinguish.
func (c *Client) DeleteWorkout(ctx context.Context, id models.UUID) error {
	resp, body, err := c.do(ctx, http.MethodDelete, "/entities/"+id.String(), nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// BatchSync replays a BATCH_SYNC of multiple workouts in one request.
func (c *Client) BatchSync(ctx context.Context, workouts []*models.Workout) (*BatchSyncResult, error) {
	payload := map[string]interface{}{"workouts": workouts}
	resp, body, err := c.do(ctx, http.MethodPost, "/entities/batch-sync", payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result BatchSyncResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode batch sync response: %w", err)
	}
	return &result, nil
}

// GetWorkout fetches the server's canonical record, used post-batch to
// hydrate the local cache.
func (c *Client) GetWorkout(ctx context.Context, id models.UUID) (*models.Workout, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/entities/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeWorkout(body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// ListExercises fetches the exercise catalogue for the reference cache.
func (c *Client) ListExercises(ctx context.Context) ([]*models.Exercise, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/exercises", nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var exercises []*models.Exercise
	if err := json.Unmarshal(body, &exercises); err != nil {
		return nil, fmt.Errorf("failed to decode exercises: %w", err)
	}
	return exercises, nil
}

// GetDraft fetches the single server-side draft slot for the owner.
func (c *Client) GetDraft(ctx context.Context) (*models.Draft, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/draft", nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var d models.Draft
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, fmt.Errorf("failed to decode draft: %w", err)
		}
		return &d, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// PutDraft writes the server-side draft slot. Best-effort; callers log and
// drop failures rather than queueing retries.
func (c *Client) PutDraft(ctx context.Context, d *models.Draft) error {
	resp, body, err := c.do(ctx, http.MethodPost, "/draft", d)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	default:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// DeleteDraft clears the server-side draft slot. 404 is already-clear.
func (c *Client) DeleteDraft(ctx context.Context) error {
	resp, body, err := c.do(ctx, http.MethodDelete, "/draft", nil)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// Ping checks reachability of the remote API. Any HTTP response counts as
// online; only transport-level failures count as offline.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

// do executes one request and returns the response with its body read.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to obtain token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, body, nil
}

func decodeWorkout(body []byte) (*models.Workout, error) {
	var w models.Workout
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("failed to decode workout: %w", err)
	}
	return &w, nil
}

func decodeConflict(body []byte) error {
	var cb conflictBody
	if err := json.Unmarshal(body, &cb); err != nil || cb.ServerVersion == nil {
		// 409 without a parseable server version still resolves server-wins;
		// the caller will re-fetch. Report the conflict shape regardless.
		return &ConflictError{}
	}
	return &ConflictError{ServerVersion: cb.ServerVersion}
}
