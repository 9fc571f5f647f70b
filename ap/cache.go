package ap

import (
	"sync"
)

// entry is the cached mirror of one access point. The daemon is the
// source of truth; the entry only holds the last-known values and is
// corrected whenever an authoritative signal disagrees.
//
// Each entry has its own lock so operations on different access points
// proceed independently.
type entry struct {
	mu sync.Mutex

	handle   Handle
	state    State
	reason   string
	config   *Config
	stations map[string]*Station

	// busy marks a caller-initiated operation in flight. Concurrent
	// operations on the same handle are rejected, not queued.
	busy bool

	// needsReconcile forces a state re-query before the next
	// caller-initiated transition is admitted.
	needsReconcile bool

	// await is the pending confirmation wait of the in-flight
	// operation, if any.
	await *await
}

type await struct {
	target State
	ch     chan awaitResult
}

type awaitResult struct {
	state  State
	reason string
}

// deliverAwaitLocked resolves a pending confirmation wait if the new
// state is the awaited target or an error. Callers must hold e.mu.
func (e *entry) deliverAwaitLocked() {
	if e.await == nil {
		return
	}

	if e.state != e.await.target && e.state != StateError {
		return
	}

	// buffered with capacity 1, never blocks
	e.await.ch <- awaitResult{state: e.state, reason: e.reason}
	e.await = nil
}

// entry returns the cache entry for a handle, creating it in StateDown
// when the handle was not seen before.
func (c *Controller) entry(handle Handle) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[handle]
	if !ok {
		e = &entry{
			handle:   handle,
			state:    StateDown,
			stations: make(map[string]*Station),
		}
		c.entries[handle] = e
	}

	return e
}

// Snapshot returns an immutable copy of the current state, last
// acknowledged configuration and station set of a handle. It never
// touches the bus. A handle that was never operated on reports
// StateDown with no configuration.
func (c *Controller) Snapshot(handle Handle) *Snapshot {
	e := c.entry(handle)

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := &Snapshot{
		Handle: handle,
		State:  e.state,
		Reason: e.reason,
	}

	if e.config != nil {
		snapshot.Config = e.config.copy()
	}

	for _, station := range e.stations {
		snapshot.Stations = append(snapshot.Stations, station.copy())
	}

	return snapshot
}
