package accel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
)

// Engine is the public surface of the acceleration engine inside the host
// process. Every entry point takes and returns plain data; callers hold no
// handle beyond a single call. The engine spawns no goroutines of its own
// apart from the optional background auto-reload.
//
// Every entry point runs behind a fault-to-result adapter: a panic anywhere
// inside a call is recovered at this boundary and converted into an error
// wrapping ErrInternalFault. A fault aborts only the failing call and never
// corrupts the active snapshot for subsequent calls.
type Engine struct {
	coord *Coordinator
	opts  Options
}

// New creates an engine over the given source. The engine starts Empty;
// call Load (or configure preload in the host) before querying.
func New(source Source, opts Options) *Engine {
	return &Engine{
		coord: NewCoordinator(source, opts),
		opts:  opts,
	}
}

// guard is the single fault-to-result adapter wrapping all public entry
// points. Recovered panics are logged with a stack trace and surfaced as
// structured errors; nothing unwinds past this boundary.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Printf("PANIC in accel %s (recovered): %v\n%s", op, r, buf[:n])
			traversalAborts.WithLabelValues("internal_fault").Inc()
			err = fmt.Errorf("%w: %s: %v", ErrInternalFault, op, r)
		}
	}()
	return fn()
}

// Load builds and publishes a fresh snapshot from the source of truth.
// Failures are returned to the caller with no hidden retry; any previously
// published snapshot stays authoritative. A Load racing another reload is
// coalesced and returns ErrReloadInFlight.
func (e *Engine) Load(ctx context.Context) error {
	return guard("load", func() error {
		return e.coord.Reload(ctx)
	})
}

// Status reports the snapshot lifecycle state and counters. Never blocks.
func (e *Engine) Status() StatusInfo {
	var info StatusInfo
	_ = guard("status", func() error {
		info = e.coord.Status()
		return nil
	})
	return info
}

// NeighborsOf returns the direct neighbors of the keyed node in both
// directions. An unresolved key yields an empty result.
func (e *Engine) NeighborsOf(ctx context.Context, key string) ([]Neighbor, error) {
	var result []Neighbor
	err := guard("neighbors_of", func() error {
		snap, release, err := e.pin(ctx)
		if err != nil {
			return err
		}
		defer release()
		if id, ok := snap.InternalIDForKey(key); ok {
			result = snap.Neighbors(id, DirectionBoth)
		}
		return nil
	})
	return result, err
}

// Neighborhood runs a depth-bounded BFS from the keyed node. maxDepth < 0
// means unbounded.
func (e *Engine) Neighborhood(ctx context.Context, key string, maxDepth int, direction Direction) ([]NeighborhoodEntry, error) {
	var result []NeighborhoodEntry
	err := guard("neighborhood", func() error {
		snap, release, err := e.pin(ctx)
		if err != nil {
			return err
		}
		defer release()
		result, err = snap.Neighborhood(key, maxDepth, direction, e.opts.MaxVisitedNodes)
		return e.noteAbort(err)
	})
	return result, err
}

// ShortestPath finds a minimum-hop path between two keyed nodes within
// maxHops. A nil path with nil error means no path exists (or a key is
// unresolved).
func (e *Engine) ShortestPath(ctx context.Context, fromKey, toKey string, maxHops int) ([]PathEntry, error) {
	var result []PathEntry
	err := guard("shortest_path", func() error {
		snap, release, err := e.pin(ctx)
		if err != nil {
			return err
		}
		defer release()
		result, err = snap.ShortestPath(fromKey, toKey, maxHops, e.opts.MaxVisitedNodes)
		return e.noteAbort(err)
	})
	return result, err
}

// Subgraph extracts the component around the keyed node within maxDepth.
func (e *Engine) Subgraph(ctx context.Context, key string, maxDepth int) ([]SubgraphNode, error) {
	var result []SubgraphNode
	err := guard("subgraph", func() error {
		snap, release, err := e.pin(ctx)
		if err != nil {
			return err
		}
		defer release()
		result, err = snap.Subgraph(key, maxDepth, e.opts.MaxVisitedNodes)
		return e.noteAbort(err)
	})
	return result, err
}

// Degree returns the topN nodes ranked by total degree.
func (e *Engine) Degree(ctx context.Context, topN int) ([]DegreeEntry, error) {
	var result []DegreeEntry
	err := guard("degree", func() error {
		snap, release, err := e.pin(ctx)
		if err != nil {
			return err
		}
		defer release()
		result = snap.Degree(topN)
		return nil
	})
	return result, err
}

// pin runs the auto-reload policy and pins the active snapshot for one
// call. Querying before any successful load returns ErrNotLoaded
// immediately, never an indefinite block.
func (e *Engine) pin(ctx context.Context) (*Snapshot, func(), error) {
	e.coord.MaybeReload(ctx)
	snap, release, ok := e.coord.Acquire()
	if !ok {
		return nil, nil, ErrNotLoaded
	}
	return snap, release, nil
}

func (e *Engine) noteAbort(err error) error {
	if errors.Is(err, ErrCapacityExceeded) {
		traversalAborts.WithLabelValues("capacity").Inc()
	}
	return err
}
