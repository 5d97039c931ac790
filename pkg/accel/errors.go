package accel

import (
	"errors"
	"fmt"
)

// Errors returned by the acceleration engine.
//
// An unresolved external key is not an error: lookups return empty results.
// Staleness is not an error either; it is reported through Status.
var (
	// ErrNotLoaded is returned by traversal operations before the first
	// successful Load.
	ErrNotLoaded = errors.New("accel: no snapshot loaded")

	// ErrLoadFailed wraps a source query or build failure during Load.
	// The previously active snapshot, if any, stays authoritative.
	ErrLoadFailed = errors.New("accel: load failed")

	// ErrCapacityExceeded indicates a memory or visit-count cap was hit.
	// The load or query aborts cleanly with no partial state retained.
	ErrCapacityExceeded = errors.New("accel: capacity exceeded")

	// ErrReloadInFlight is returned when a reload request is coalesced
	// into one already running.
	ErrReloadInFlight = errors.New("accel: reload already in flight")

	// ErrInternalFault wraps a recovered panic at the public boundary.
	// It aborts only the failing call; the active snapshot stays valid.
	ErrInternalFault = errors.New("accel: internal fault")
)

// capExceeded builds a CapacityExceeded error for an aborted traversal.
func capExceeded(op string, limit int) error {
	return fmt.Errorf("%w: %s aborted after visiting more than %d nodes", ErrCapacityExceeded, op, limit)
}

// Status describes the engine's snapshot lifecycle state.
type Status string

const (
	// StatusNotLoaded means no snapshot has been published yet.
	StatusNotLoaded Status = "not_loaded"
	// StatusLoading means the first load is in progress.
	StatusLoading Status = "loading"
	// StatusReady means the active snapshot matches the source epoch.
	StatusReady Status = "ready"
	// StatusStale means the source has mutated since the active snapshot
	// was loaded. Informational only; queries still run.
	StatusStale Status = "stale"
)

// StatusInfo is the result of Engine.Status.
type StatusInfo struct {
	Status       Status `json:"status"`
	LoadedEpoch  uint64 `json:"loaded_epoch"`
	CurrentEpoch uint64 `json:"current_epoch"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
	MemoryBytes  int64  `json:"memory_bytes"`
}
