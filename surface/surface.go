// Package surface implements the Surface Bridge (spec §4.5.5, §6.3): a
// one-way outbound channel carrying wake commands to the UI host, paired
// with inbound onSurfaceOpened/onSurfaceDestroyed callbacks that report what
// actually happened on the other side.
package surface

import (
	"sync"
	"time"
)

// Wake reasons the UI host understands (spec §6.3). The core is agnostic to
// what each reason renders as.
const (
	WakeReasonShowQuickTask           = "SHOW_QUICK_TASK"
	WakeReasonShowIntervention        = "SHOW_INTERVENTION"
	WakeReasonShowPostQuickTaskChoice = "SHOW_POST_QUICK_TASK_CHOICE"
	WakeReasonFinishSurface           = "FINISH_SURFACE"
)

// WakeCommand is what the Coordinator sends to the UI host to bring up a
// surface (spec §6.3).
type WakeCommand struct {
	InstanceID int64
	App        string
	SessionID  string
	WakeReason string
}

// Host is the one-way outbound sink the Coordinator pushes wake commands
// into. Implementations forward the command across whatever boundary
// separates the decision core from the actual UI process (in-process
// channel, IPC, or the bundled uihost simulator for local testing). A
// non-nil error means the UI host could not be reached, triggering the
// Coordinator's rollback protocol (spec §4.7).
type Host interface {
	Wake(cmd WakeCommand) error
}

// HostFunc adapts a plain function to Host.
type HostFunc func(cmd WakeCommand) error

func (f HostFunc) Wake(cmd WakeCommand) error { return f(cmd) }

// OpenedEvent is the inbound callback fired once the UI host confirms a
// surface actually opened.
type OpenedEvent struct {
	InstanceID int64
	App        string
	SessionID  string
	OpenedAt   time.Time
}

// DestroyedEvent is the inbound callback fired once the UI host confirms a
// surface was torn down.
type DestroyedEvent struct {
	InstanceID  int64
	App         string
	SessionID   string
	DestroyedAt time.Time
}

// Bridge tracks in-flight wake requests so a late-arriving opened/destroyed
// callback can be matched back to the instance it belongs to, and stale
// callbacks (wrong instance ID) can be dropped (spec I6 "Session IDs as
// capability tokens" applies equally to surface instance IDs).
type Bridge struct {
	mu   sync.Mutex
	host Host

	pendingInstanceID int64
	pendingApp        string
	pendingSessionID  string
}

// New returns a Bridge that forwards wake commands to host.
func New(host Host) *Bridge {
	return &Bridge{host: host}
}

// Wake sends a wake command and remembers the instance as pending until an
// OnOpened or OnDestroyed callback resolves it. Returns the Host's error, if
// any, so the caller can run its own rollback.
func (b *Bridge) Wake(cmd WakeCommand) error {
	b.mu.Lock()
	b.pendingInstanceID = cmd.InstanceID
	b.pendingApp = cmd.App
	b.pendingSessionID = cmd.SessionID
	b.mu.Unlock()

	return b.host.Wake(cmd)
}

// OnOpened reports whether ev.InstanceID matches the pending wake request.
// A mismatch means this is a stale callback from a superseded surface and
// must be ignored by the caller.
func (b *Bridge) OnOpened(ev OpenedEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ev.InstanceID == b.pendingInstanceID && ev.InstanceID != 0
}

// OnDestroyed reports whether ev.InstanceID matches the currently tracked
// instance, and clears the pending record if so.
func (b *Bridge) OnDestroyed(ev DestroyedEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev.InstanceID != b.pendingInstanceID || ev.InstanceID == 0 {
		return false
	}
	b.pendingInstanceID = 0
	b.pendingApp = ""
	b.pendingSessionID = ""
	return true
}

// PendingInstanceID returns the instance ID currently awaiting resolution,
// or 0 if none.
func (b *Bridge) PendingInstanceID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingInstanceID
}
