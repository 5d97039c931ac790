package accel

import "time"

// ReloadMode selects how staleness triggers a reload on query entry.
type ReloadMode string

const (
	// ReloadSync blocks the query and reloads before answering.
	ReloadSync ReloadMode = "sync"
	// ReloadAsync serves the stale snapshot immediately and reloads in
	// the background.
	ReloadAsync ReloadMode = "async"
)

// Options configures the acceleration engine.
//
// NodeLabels, EdgeTypes, and KeyProperty shape what a snapshot contains;
// changing them takes effect on the next Load. The remaining options apply
// without a reload.
type Options struct {
	// NodeLabels restricts loading to nodes carrying one of these labels.
	// Empty means all nodes.
	NodeLabels []string

	// EdgeTypes restricts loading to edges of these relation types.
	// Empty means all types.
	EdgeTypes []string

	// KeyProperty names the node property whose string value becomes the
	// node's external key. Empty means no nodes get external keys.
	KeyProperty string

	// MaxMemoryBytes caps the approximate snapshot size during a build.
	// Exceeding it aborts the load. 0 = unlimited.
	MaxMemoryBytes int64

	// MaxVisitedNodes caps how many nodes one traversal may visit.
	// Exceeding it aborts the query with ErrCapacityExceeded so callers
	// can tell "nothing found" from "too much to explore". 0 = unlimited.
	MaxVisitedNodes int

	// AutoReload triggers a reload when a query observes a stale snapshot.
	AutoReload bool

	// ReloadMode selects sync or async auto-reload.
	ReloadMode ReloadMode

	// ReloadDebounce is the minimum interval between auto-reload attempts.
	// Prevents reload storms under sustained write load.
	ReloadDebounce time.Duration
}

// DefaultOptions returns the default engine options: wildcard filters,
// "key" as the external-key property, a 1M-node visit cap, and debounced
// async auto-reload.
func DefaultOptions() Options {
	return Options{
		KeyProperty:     "key",
		MaxVisitedNodes: 1_000_000,
		AutoReload:      true,
		ReloadMode:      ReloadAsync,
		ReloadDebounce:  5 * time.Second,
	}
}
