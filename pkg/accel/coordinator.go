package accel

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// snapshotRef is a reference-counted handle to one published snapshot.
//
// The count starts at 1 for the coordinator's own reference; every pinned
// query adds one. When the coordinator swaps in a replacement it drops its
// reference, and the snapshot's internal structure is released once the
// last in-flight query unpins it. A caller who pinned the old snapshot
// keeps a fully functional view until release.
type snapshotRef struct {
	snap *Snapshot
	refs atomic.Int64
}

func newSnapshotRef(snap *Snapshot) *snapshotRef {
	ref := &snapshotRef{snap: snap}
	ref.refs.Store(1)
	return ref
}

// acquire adds a reference. Returns false if the count already hit zero,
// which means the handle lost the race with a release and the caller must
// re-read the active pointer.
func (r *snapshotRef) acquire() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference. At zero the adjacency structure is detached so
// the memory is collectible even if something retains the ref itself.
func (r *snapshotRef) release() {
	if r.refs.Add(-1) == 0 {
		r.snap = nil
	}
}

// Coordinator owns the single active-snapshot handle and the staleness
// policy. The handle is an atomically-swappable pointer, not a variable
// behind a coarse lock, so readers never serialize against a reload.
//
// State machine: Empty -> Loading -> Ready, then Ready -> Loading -> Ready
// on every reload. A failed reload never touches the active pointer.
type Coordinator struct {
	loader *Loader
	source Source
	opts   Options

	active atomic.Pointer[snapshotRef]

	// reloading provides concurrent-reload exclusion: a reload request
	// arriving while one runs is coalesced, not queued.
	reloading atomic.Bool

	// lastAttempt (unix nanos) debounces auto-reload under write storms.
	lastAttempt atomic.Int64
}

// NewCoordinator creates a coordinator in the Empty state.
func NewCoordinator(source Source, opts Options) *Coordinator {
	return &Coordinator{
		loader: NewLoader(source, opts),
		source: source,
		opts:   opts,
	}
}

// Acquire pins the active snapshot for the duration of one call. The
// release function must be called when done. ok is false while Empty.
func (c *Coordinator) Acquire() (snap *Snapshot, release func(), ok bool) {
	for {
		ref := c.active.Load()
		if ref == nil {
			return nil, nil, false
		}
		if ref.acquire() {
			return ref.snap, func() { ref.release() }, true
		}
		// Lost the race with the final release of a replaced snapshot;
		// the active pointer has already moved on.
	}
}

// Reload builds a new snapshot off to the side and publishes it with one
// atomic swap. At most one reload proceeds at a time; a concurrent request
// returns ErrReloadInFlight. A failed build leaves the active snapshot
// untouched and returns an error wrapping ErrLoadFailed or
// ErrCapacityExceeded.
func (c *Coordinator) Reload(ctx context.Context) error {
	if !c.reloading.CompareAndSwap(false, true) {
		return ErrReloadInFlight
	}
	defer c.reloading.Store(false)

	started := time.Now()
	snap, err := c.loader.Load(ctx)
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		log.Printf("accel: reload failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
		return err
	}

	c.publish(snap)
	reloadsTotal.WithLabelValues("ok").Inc()
	reloadDuration.Observe(time.Since(started).Seconds())
	log.Printf("accel: published snapshot epoch=%d nodes=%d edges=%d bytes=%d in %s",
		snap.LoadedEpoch(), snap.NodeCount(), snap.EdgeCount(), snap.MemoryBytes(),
		time.Since(started).Round(time.Millisecond))
	return nil
}

// publish performs the single atomic swap of the active handle and drops
// the coordinator's reference on the previous snapshot.
func (c *Coordinator) publish(snap *Snapshot) {
	old := c.active.Swap(newSnapshotRef(snap))
	if old != nil {
		old.release()
	}
}

// MaybeReload implements the auto-reload policy on query entry: if the
// pinned view is stale and the debounce interval has passed, trigger a
// reload. Sync mode blocks and reloads before the query answers; async
// mode serves the stale snapshot and reloads in the background. Both are
// coalesced with any reload already in flight.
func (c *Coordinator) MaybeReload(ctx context.Context) {
	if !c.opts.AutoReload {
		return
	}
	snap, release, ok := c.Acquire()
	if !ok {
		return
	}
	loaded := snap.loadedEpoch
	release()
	if loaded == c.source.Epoch() {
		return
	}
	stalenessChecks.Inc()

	now := time.Now().UnixNano()
	last := c.lastAttempt.Load()
	if c.opts.ReloadDebounce > 0 && now-last < int64(c.opts.ReloadDebounce) {
		return
	}
	if !c.lastAttempt.CompareAndSwap(last, now) {
		// Another query claimed this debounce window.
		return
	}

	if c.opts.ReloadMode == ReloadSync {
		if err := c.Reload(ctx); err != nil && err != ErrReloadInFlight {
			log.Printf("accel: synchronous auto-reload: %v", err)
		}
		return
	}
	go func() {
		if err := c.Reload(context.Background()); err != nil && err != ErrReloadInFlight {
			log.Printf("accel: background auto-reload: %v", err)
		}
	}()
}

// Status reports the coordinator's view of the snapshot lifecycle.
// Stale is informational; queries keep running against the old snapshot.
func (c *Coordinator) Status() StatusInfo {
	current := c.source.Epoch()
	snap, release, ok := c.Acquire()
	if !ok {
		status := StatusNotLoaded
		if c.reloading.Load() {
			status = StatusLoading
		}
		return StatusInfo{Status: status, CurrentEpoch: current}
	}
	defer release()
	info := StatusInfo{
		Status:       StatusReady,
		LoadedEpoch:  snap.loadedEpoch,
		CurrentEpoch: current,
		NodeCount:    snap.NodeCount(),
		EdgeCount:    snap.EdgeCount(),
		MemoryBytes:  snap.MemoryBytes(),
	}
	if snap.loadedEpoch != current {
		info.Status = StatusStale
	}
	return info
}

// String renders a one-line status summary for logs and the CLI.
func (i StatusInfo) String() string {
	return fmt.Sprintf("status=%s loaded_epoch=%d current_epoch=%d nodes=%d edges=%d memory=%dB",
		i.Status, i.LoadedEpoch, i.CurrentEpoch, i.NodeCount, i.EdgeCount, i.MemoryBytes)
}
