// Package metrics holds lightweight, in-process counters for the CEL
// engine's own operation: how many records of each kind were emitted,
// how many backend invocations succeeded or panicked, and how many
// candidate events were dropped by report-event's filters. These are
// read by the CLI's verbose status output; nothing here is exported
// over the wire or scraped by an external collector.
package metrics

import (
	"sync"
	"sync/atomic"

	"celengine/internal/event"
)

// Counters tracks engine activity with atomic counters. Create one with
// NewCounters: the zero value has nil per-backend maps.
type Counters struct {
	emitted       [64]atomic.Int64
	droppedFilter atomic.Int64

	mu           sync.Mutex
	backendCalls map[string]int64
	backendFails map[string]int64
}

// NewCounters creates an empty Counters.
func NewCounters() *Counters {
	return &Counters{
		backendCalls: make(map[string]int64),
		backendFails: make(map[string]int64),
	}
}

// Emitted records one emission of kind k.
func (c *Counters) Emitted(k event.Kind) {
	if k <= 0 || int(k) >= len(c.emitted) {
		return
	}
	c.emitted[k].Add(1)
}

// DroppedByFilter records one candidate event dropped by report-event's
// tracked-events/tracked-apps gate. Events dropped because the engine is
// disabled are not counted.
func (c *Counters) DroppedByFilter() {
	c.droppedFilter.Add(1)
}

// BackendInvoked records one invocation of the named backend, whether or
// not that invocation goes on to panic.
func (c *Counters) BackendInvoked(name string) {
	c.mu.Lock()
	c.backendCalls[name]++
	c.mu.Unlock()
}

// BackendPanicked records one recovered panic from the named backend.
func (c *Counters) BackendPanicked(name string) {
	c.mu.Lock()
	c.backendFails[name]++
	c.mu.Unlock()
}

// Snapshot is a read-only copy of the current counter values, safe to
// print or compare without racing further updates.
type Snapshot struct {
	EmittedByKind map[string]int64
	DroppedFilter int64
	BackendCalls  map[string]int64
	BackendFails  map[string]int64
}

// Snapshot takes a consistent-enough copy of every counter for reporting
// purposes. Individual fields may be torn across concurrent writers
// (this is a best-effort status view, not a billing ledger).
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		EmittedByKind: make(map[string]int64),
		DroppedFilter: c.droppedFilter.Load(),
	}
	for k := 1; k < len(c.emitted); k++ {
		if v := c.emitted[k].Load(); v != 0 {
			s.EmittedByKind[event.Name(event.Kind(k))] = v
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s.BackendCalls = make(map[string]int64, len(c.backendCalls))
	for n, v := range c.backendCalls {
		s.BackendCalls[n] = v
	}
	s.BackendFails = make(map[string]int64, len(c.backendFails))
	for n, v := range c.backendFails {
		s.BackendFails[n] = v
	}
	return s
}
