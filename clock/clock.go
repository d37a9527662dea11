// Package clock provides the monotonic time source and single-threaded delayed
// callback scheduler the Coordinator relies on (spec §4.1).
package clock

import (
	"sync"
	"time"
)

// Clock is a monotonic time source with a serial, cancellable timer wheel.
// All scheduled callbacks are serialised through one lock so callers
// (the Coordinator) can treat fired timers as if the system were single
// threaded: no two callbacks from this Clock ever execute concurrently.
type Clock struct {
	mu      sync.Mutex
	handles map[uint64]*timerHandle
	nextID  uint64

	// run is held while a fired callback executes.
	run sync.Mutex

	// now is overridable for deterministic tests; nil means wall-clock time.
	now func() time.Time
}

// Handle identifies a scheduled callback for cancellation.
type Handle uint64

type timerHandle struct {
	timer     *time.Timer
	cancelled bool
}

// New returns a Clock backed by wall-clock time.
func New() *Clock {
	return &Clock{handles: make(map[uint64]*timerHandle)}
}

// NewWithNow returns a Clock whose Now() delegates to the supplied function.
// Used by tests to control the passage of time deterministically; it does not
// change how real timers fire (time.AfterFunc is always wall-clock), so tests
// that need fully controlled timer firing should call the scheduled callback
// directly rather than waiting on the real timer.
func NewWithNow(now func() time.Time) *Clock {
	return &Clock{handles: make(map[uint64]*timerHandle), now: now}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Schedule arranges for callback to run after delay elapses, serially with
// every other callback of this Clock. It returns a Handle that can be passed
// to Cancel. A fired callback is free to Schedule or Cancel further timers
// (neither takes the lock that serialises callbacks).
func (c *Clock) Schedule(delay time.Duration, callback func()) Handle {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	h := &timerHandle{}
	c.handles[id] = h
	c.mu.Unlock()

	h.timer = time.AfterFunc(delay, func() {
		c.run.Lock()
		defer c.run.Unlock()
		c.mu.Lock()
		cancelled := h.cancelled
		delete(c.handles, id)
		c.mu.Unlock()
		if cancelled {
			return
		}
		callback()
	})

	return Handle(id)
}

// Cancel prevents a scheduled callback from firing. Cancellation is
// best-effort: a callback already past the cancellation check will still
// run to completion, but it will observe session-ID mismatches and return
// (spec §5, "Cancellation").
func (c *Clock) Cancel(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.handles[uint64(h)]
	if !ok {
		return
	}
	entry.cancelled = true
	entry.timer.Stop()
	delete(c.handles, uint64(h))
}
