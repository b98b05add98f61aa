// Package sync provides synchronization interfaces for the engine.
package sync

import "context"

// Reconciler is the surface the scheduler drives. It allows mocking in
// scheduler tests and alternative implementations.
type Reconciler interface {
	// RunPass drains the sync queue once. Item-level failures are folded
	// into the summary; only context cancellation is returned as an error.
	RunPass(ctx context.Context) (*PassSummary, error)

	// PendingCount returns the number of queued mutations.
	PendingCount() (int, error)
}

var _ Reconciler = (*Engine)(nil)
