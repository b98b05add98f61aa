// Package scheduler decides when reconciler passes run.
//
// Triggers: connectivity restored, a fixed interval while online, and
// manual requests. At most one pass is active at a time; an overlapping
// trigger is dropped, not queued, because the next natural trigger will
// pick up whatever work remains.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/fitsync/internal/logging"
	syncpkg "github.com/kimhsiao/fitsync/internal/sync"
)

// Scheduler owns the "currently reconciling" flag and the connectivity
// state. Neither is exposed as mutable state; callers go through the
// trigger and status API.
type Scheduler struct {
	engine   syncpkg.Reconciler
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu           sync.RWMutex
	isRunning    bool
	isOnline     bool
	isSyncing    bool
	lastSyncTime time.Time
	lastResult   *syncpkg.PassSummary
	subscribers  []chan Status
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // background pass interval while online (default: 30s)
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: 30 * time.Second,
	}
}

// Status is the observable engine state surfaced to the UI banner.
type Status struct {
	IsOnline       bool                 `json:"is_online"`
	IsSyncing      bool                 `json:"is_syncing"`
	PendingCount   int                  `json:"pending_count"`
	LastSyncTime   *time.Time           `json:"last_sync_time,omitempty"`
	LastSyncResult *syncpkg.PassSummary `json:"last_sync_result,omitempty"`
}

// New creates a Scheduler over a reconciler.
func New(engine syncpkg.Reconciler, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		engine:   engine,
		interval: config.Interval,
		stopCh:   make(chan struct{}),
		isOnline: true, // assume online until told otherwise
	}
}

// Start starts the background trigger loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Sync scheduler started",
		map[string]interface{}{"interval_seconds": s.interval.Seconds()})
}

// Stop stops the scheduler gracefully. An in-flight pass finishes on its
// own; only future triggers are cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Sync scheduler stopped", nil)
}

// loop fires interval-paced passes while online. This is also the retry
// backoff: a transient failure simply waits here for the next tick.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.TriggerSync(ctx)
		}
	}
}

// SetOnline records a connectivity change. Restoration triggers an
// immediate pass; loss suppresses all triggers until restored.
func (s *Scheduler) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = online
	s.mu.Unlock()

	if wasOnline == online {
		return
	}

	logging.Info("Connectivity changed",
		map[string]interface{}{"is_online": online})

	s.notify()

	if online {
		s.TriggerSync(ctx)
	}
}

// IsOnline reports the current connectivity state.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// TriggerSync starts a pass unless one is already active or the engine is
// offline. Returns true if a pass was started; an overlapping request is a
// no-op and returns false.
func (s *Scheduler) TriggerSync(ctx context.Context) bool {
	if !s.beginPass() {
		return false
	}

	go func() {
		defer s.endPass()
		s.runPass(ctx)
	}()
	return true
}

// SyncNow runs a pass synchronously for user-initiated retry. Returns nil
// and no summary when a pass is already active.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.PassSummary, error) {
	if !s.beginPass() {
		return nil, nil
	}
	defer s.endPass()

	return s.runPass(ctx)
}

// beginPass attempts to take the single reconciling slot. The flag is
// checked and set under one lock acquisition, so two overlapping triggers
// can never both win.
func (s *Scheduler) beginPass() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOnline || s.isSyncing {
		return false
	}
	s.isSyncing = true
	return true
}

// endPass releases the reconciling slot.
func (s *Scheduler) endPass() {
	s.mu.Lock()
	s.isSyncing = false
	s.mu.Unlock()
	s.notify()
}

// runPass executes one reconciler pass and records its result.
func (s *Scheduler) runPass(ctx context.Context) (*syncpkg.PassSummary, error) {
	s.notify()

	passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	summary, err := s.engine.RunPass(passCtx)
	if err != nil {
		logging.Error("Reconciler pass aborted", err, nil)
		return summary, err
	}

	s.mu.Lock()
	s.lastSyncTime = time.Now()
	s.lastResult = summary
	s.mu.Unlock()

	return summary, nil
}

// PendingCount asks the queue for its length.
func (s *Scheduler) PendingCount() int {
	n, err := s.engine.PendingCount()
	if err != nil {
		logging.Error("Failed to read pending count", err, nil)
		return 0
	}
	return n
}

// Status returns a snapshot of the observable engine state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	status := Status{
		IsOnline:       s.isOnline,
		IsSyncing:      s.isSyncing,
		LastSyncResult: s.lastResult,
	}
	if !s.lastSyncTime.IsZero() {
		t := s.lastSyncTime
		status.LastSyncTime = &t
	}
	s.mu.RUnlock()

	status.PendingCount = s.PendingCount()
	return status
}

// Subscribe returns a channel receiving status snapshots on every state
// change. Slow subscribers miss intermediate updates rather than blocking
// the engine.
func (s *Scheduler) Subscribe() <-chan Status {
	ch := make(chan Status, 8)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// notify pushes the current status to all subscribers without blocking.
func (s *Scheduler) notify() {
	status := s.Status()

	s.mu.RLock()
	subs := s.subscribers
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- status:
		default:
		}
	}
}
