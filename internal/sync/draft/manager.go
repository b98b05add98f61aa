// Package draft provides best-effort persistence of in-progress workout
// sessions, decoupled from the sync queue's at-least-once guarantees.
package draft

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/fitsync/internal/api"
	"github.com/kimhsiao/fitsync/internal/logging"
	"github.com/kimhsiao/fitsync/internal/models"
	"github.com/kimhsiao/fitsync/internal/store"
	"github.com/kimhsiao/fitsync/internal/uuid"
)

// OnlineFunc reports current connectivity. The manager never retries a
// failed server write; it just skips the remote leg while offline.
type OnlineFunc func() bool

// Manager autosaves the active in-progress session to the local store on a
// fixed interval and, opportunistically, to the server. Remote failures are
// logged and dropped; the local snapshot is the one that matters.
type Manager struct {
	store    *store.Store
	api      *api.Client
	online   OnlineFunc
	interval time.Duration
	ttl      time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	active    *models.Draft
}

// Config holds draft manager configuration.
type Config struct {
	AutosaveInterval time.Duration // default: 30s
	TTL              time.Duration // draft expiry from last update (default: 24h)
}

// DefaultConfig returns default draft manager configuration.
func DefaultConfig() *Config {
	return &Config{
		AutosaveInterval: 30 * time.Second,
		TTL:              24 * time.Hour,
	}
}

// New creates a draft Manager.
func New(st *store.Store, client *api.Client, online OnlineFunc, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if online == nil {
		online = func() bool { return true }
	}
	return &Manager{
		store:    st,
		api:      client,
		online:   online,
		interval: config.AutosaveInterval,
		ttl:      config.TTL,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the autosave loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx)

	logging.Info("Draft autosave started",
		map[string]interface{}{"interval_seconds": m.interval.Seconds()})
}

// Stop stops the autosave loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.autosave(ctx)
		}
	}
}

func (m *Manager) autosave(ctx context.Context) {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	if active == nil {
		return
	}
	if err := m.SaveNow(ctx, active); err != nil {
		logging.Error("Draft autosave failed", err,
			map[string]interface{}{"draft_id": active.ID.String()})
	}
}

// SetActive registers the session the autosave loop should snapshot.
// Assigns a draft id on first registration.
func (m *Manager) SetActive(d *models.Draft) {
	if d != nil && d.ID == "" {
		d.ID = models.UUID(uuid.New())
	}
	m.mu.Lock()
	m.active = d
	m.mu.Unlock()
}

// ClearActive stops autosaving without deleting anything.
func (m *Manager) ClearActive() {
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
}

// SaveNow snapshots the draft immediately. The local write always happens;
// the server write is attempted only while online and only when no queue
// item is in flight for the same workout, so the direct path can never race
// a queued create for the same id.
func (m *Manager) SaveNow(ctx context.Context, d *models.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}

	d.Touch(time.Now(), m.ttl)
	if err := m.store.PutDraft(d); err != nil {
		return err
	}

	if !m.online() {
		return nil
	}
	if d.WorkoutID != "" {
		queued, err := m.store.QueueHasWorkout(d.WorkoutID)
		if err != nil {
			logging.Error("Failed to check queue before draft upload", err, nil)
			return nil
		}
		if queued {
			logging.Debug("Skipping draft upload, workout has a pending queue item",
				map[string]interface{}{"workout_id": d.WorkoutID.String()})
			return nil
		}
	}

	if err := m.api.PutDraft(ctx, d); err != nil {
		// Best-effort only. The sync queue never sees drafts.
		logging.Warn("Draft upload failed",
			map[string]interface{}{"draft_id": d.ID.String(), "error": err.Error()})
	}
	return nil
}

// Load returns the owner's live draft, or nil when none exists. The server
// copy wins when reachable; otherwise the most recently updated non-expired
// local draft is returned. Expired drafts and stale losers are purged.
func (m *Manager) Load(ctx context.Context, ownerID models.UUID) (*models.Draft, error) {
	if m.online() {
		remote, err := m.api.GetDraft(ctx)
		if err == nil && remote != nil {
			if err := m.store.PutDraft(remote); err != nil {
				logging.Error("Failed to cache server draft locally", err, nil)
			}
			return remote, nil
		}
		if err != nil && err != api.ErrNotFound {
			logging.Warn("Server draft fetch failed, falling back to local",
				map[string]interface{}{"error": err.Error()})
		}
	}

	drafts, err := m.store.ListDraftsByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var winner *models.Draft
	for _, d := range drafts {
		if d.Expired(now) {
			m.purge(d.ID)
			continue
		}
		if winner == nil {
			winner = d // list is ordered most recently updated first
			continue
		}
		m.purge(d.ID)
	}
	return winner, nil
}

// Delete removes a draft locally and, best-effort, from the server slot.
func (m *Manager) Delete(ctx context.Context, id models.UUID) error {
	if err := m.store.DeleteDraft(id); err != nil {
		return err
	}
	if m.online() {
		if err := m.api.DeleteDraft(ctx); err != nil && err != api.ErrNotFound {
			logging.Warn("Server draft delete failed",
				map[string]interface{}{"draft_id": id.String(), "error": err.Error()})
		}
	}
	return nil
}

func (m *Manager) purge(id models.UUID) {
	if err := m.store.DeleteDraft(id); err != nil {
		logging.Error("Failed to purge stale draft", err,
			map[string]interface{}{"draft_id": id.String()})
	}
}
