package statetable

import (
	"sync"
	"time"
)

// Tables is the single global lock guarding every per-app QT state and the
// current surface record (spec §4.5 "State Tables", I6). The Coordinator is
// the only mutator; everything else in this package is cheap, in-memory, and
// must never be called while holding the Coordinator's own emission path.
type Tables struct {
	mu   sync.Mutex
	apps map[string]*PerAppState

	surface        SurfaceRecord
	nextInstanceID int64
}

// New returns an empty Tables.
func New() *Tables {
	return &Tables{apps: make(map[string]*PerAppState)}
}

// WithLock runs fn with the global lock held. fn must be a pure in-memory
// mutation: no I/O, no emission, no timer scheduling (spec §5, I6). fn
// returns nothing; capturing values from fn in the caller's variables to use
// after unlocking is deliberate — it is how callers decide what to do
// outside the lock.
func (t *Tables) WithLock(fn func(*Locked)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&Locked{t: t})
}

// Locked scopes the mutating methods to calls made while t.mu is held; it
// cannot be constructed outside WithLock (its one field is unexported).
type Locked struct {
	t *Tables
}

// App returns the PerAppState for app, creating a fresh IDLE entry if it
// doesn't exist yet.
func (l *Locked) App(app string) *PerAppState {
	s, ok := l.t.apps[app]
	if !ok {
		s = &PerAppState{QTState: Idle}
		l.t.apps[app] = s
	}
	return s
}

// Peek returns the PerAppState for app without creating one, or nil.
func (l *Locked) Peek(app string) *PerAppState {
	return l.t.apps[app]
}

// Surface returns a copy of the current surface record.
func (l *Locked) Surface() SurfaceRecord {
	return l.t.surface
}

// SetSurface replaces the tracked surface record.
func (l *Locked) SetSurface(rec SurfaceRecord) {
	l.t.surface = rec
}

// NextInstanceID allocates a new monotonically increasing surface instance
// identifier.
func (l *Locked) NextInstanceID() int64 {
	l.t.nextInstanceID++
	return l.t.nextInstanceID
}

// QuickTaskDurationFor returns the effective QT duration for app while the
// lock is already held (spec §3.1 "quickTaskDurationMs"). Mirrors
// Tables.QuickTaskDurationFor but avoids the nested-lock call mutators would
// otherwise need to make from inside WithLock.
func (l *Locked) QuickTaskDurationFor(app string) time.Duration {
	s, ok := l.t.apps[app]
	if !ok {
		return DefaultQuickTaskDurationMs * time.Millisecond
	}
	return time.Duration(s.quickTaskDurationOrDefault()) * time.Millisecond
}

// PeekSurfaceUnlocked returns a snapshot of the surface record without
// requiring the caller to hold a lock reference already. Safe for read-mostly
// snapshot building (spec §5, "Pure reads of cached store snapshots do not
// require the lock" — the surface record is small enough that a short lock
// round-trip is cheaper than a second synchronization primitive).
func (t *Tables) PeekSurfaceUnlocked() SurfaceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}

// PeekAppUnlocked returns a copy of an app's state for read-only snapshot
// building (e.g. diagnostics dumps), or the zero value if unknown.
func (t *Tables) PeekAppUnlocked(app string) (PerAppState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.apps[app]
	if !ok {
		return PerAppState{}, false
	}
	return *s, true
}

// QuickTaskDurationFor returns the effective QT duration for app.
func (t *Tables) QuickTaskDurationFor(app string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.apps[app]
	if !ok {
		return DefaultQuickTaskDurationMs * time.Millisecond
	}
	return time.Duration(s.quickTaskDurationOrDefault()) * time.Millisecond
}

// SetQuickTaskDuration stores a per-app override (spec §6.5 configuration).
func (t *Tables) SetQuickTaskDuration(app string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.apps[app]
	if !ok {
		s = &PerAppState{QTState: Idle}
		t.apps[app] = s
	}
	s.QuickTaskDurationMs = d.Milliseconds()
}

// AllApps returns a snapshot of every tracked package identifier, for
// housekeeping sweeps.
func (t *Tables) AllApps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.apps))
	for app := range t.apps {
		out = append(out, app)
	}
	return out
}
