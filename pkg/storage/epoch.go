package storage

import "sync/atomic"

// EpochTracker is a monotonic change counter owned by the source-of-truth
// store. Engines call Increment as part of every committed mutation;
// read-side consumers call Current to detect staleness.
//
// The counter substitutes for wall-clock time: two reads returning the same
// value guarantee no mutation committed between them.
type EpochTracker struct {
	counter atomic.Uint64
}

// NewEpochTracker creates a tracker starting at the given epoch.
// Durable engines pass the last persisted value on startup.
func NewEpochTracker(start uint64) *EpochTracker {
	t := &EpochTracker{}
	t.counter.Store(start)
	return t
}

// Increment advances the epoch and returns the new value.
// Called inside the committing mutation, never on failure paths.
func (t *EpochTracker) Increment() uint64 {
	return t.counter.Add(1)
}

// Current returns the current epoch. Lock-free.
func (t *EpochTracker) Current() uint64 {
	return t.counter.Load()
}
