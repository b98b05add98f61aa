// Package telemetry provides opt-in metric hooks for the sync engine.
//
// All functions are no-ops unless telemetry has been explicitly enabled.
// Nothing is collected or transmitted by default; the engine calls these
// hooks unconditionally and this package decides whether they do anything.
package telemetry

import (
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

// IsEnabled reports whether telemetry collection is on.
// Always false until Enable is called.
func IsEnabled() bool {
	return enabled.Load()
}

// Enable turns on telemetry collection for this process.
// The caller is responsible for having obtained user consent first.
func Enable() {
	enabled.Store(true)
}

// Disable turns off telemetry collection.
func Disable() {
	enabled.Store(false)
}

// RecordCount records a counter increment. No-op unless enabled.
func RecordCount(name string, delta int, tags map[string]string) {
	if !enabled.Load() {
		return
	}
	// Collection sink not wired; counts are dropped even when enabled.
}

// RecordTiming records a duration. No-op unless enabled.
func RecordTiming(name string, duration time.Duration, tags map[string]string) {
	if !enabled.Load() {
		return
	}
}

// TrackError records an error occurrence. No-op unless enabled.
func TrackError(err error, context map[string]string) {
	if !enabled.Load() {
		return
	}
}
