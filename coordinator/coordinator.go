// Package coordinator implements the Coordinator (spec §4.5): the sole
// mutator of the per-app State Tables. It exposes the five entry points that
// fan in from the Foreground Tracker, the UI host's scripting layer, timer
// callbacks, and surface lifecycle callbacks, and is responsible for the
// "mutate under lock, emit/schedule outside lock" discipline (I6).
package coordinator

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/diagnostics"
	"github.com/mindfence/decisioncore/observability"
	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/store"
	"github.com/mindfence/decisioncore/surface"
)

const (
	quitSuppressionCooldown = 2 * time.Second
	postChoiceCooldown      = 2 * time.Second
	decisionInFlightWindow  = 800 * time.Millisecond
	offerAgeTimeout         = 30 * time.Second
	staleSurfaceTimeout     = 120 * time.Second
	effectiveForegroundAge  = 30 * time.Second
)

// ForegroundSource is the subset of foreground.Tracker the Coordinator
// consumes to build Decision Gate snapshots.
type ForegroundSource interface {
	CurrentForegroundApp() (string, time.Time)
	LastRealForegroundApp() (string, time.Time)
	EffectiveForeground(now time.Time, maxAge time.Duration) (string, bool)
}

// Choice is the user's decision at a POST_CHOICE screen (spec §4.5.4).
type Choice int

const (
	Quit Choice = iota
	Continue
)

// Coordinator wires State Tables, the Decision Gate, the Surface Bridge, the
// Clock, and the quota and monitored-app stores together.
type Coordinator struct {
	tables     *statetable.Tables
	clk        *clock.Clock
	bridge     *surface.Bridge
	foreground ForegroundSource

	quota         *store.QuotaStore
	monitoredApps *store.MonitoredAppsStore

	newSessionID func() string
}

// New returns a Coordinator that allocates session IDs with uuid.NewString.
func New(
	tables *statetable.Tables,
	clk *clock.Clock,
	bridge *surface.Bridge,
	foreground ForegroundSource,
	quota *store.QuotaStore,
	monitoredApps *store.MonitoredAppsStore,
) *Coordinator {
	return &Coordinator{
		tables:        tables,
		clk:           clk,
		bridge:        bridge,
		foreground:    foreground,
		quota:         quota,
		monitoredApps: monitoredApps,
		newSessionID:  uuid.NewString,
	}
}

// SurfaceActive reports whether the Coordinator's tracked surface record is
// currently live. Implements intention.Guardrails together with
// EntryInFlight and WakeSuppressed below.
func (c *Coordinator) SurfaceActive() bool {
	return c.tables.PeekSurfaceUnlocked().Active
}

// EntryInFlight reports whether a decision is currently in flight for app
// (spec §4.5.1 step 3, reused as an intention guardrail per §4.6).
func (c *Coordinator) EntryInFlight(app string, now time.Time) bool {
	st, ok := c.tables.PeekAppUnlocked(app)
	if !ok {
		return false
	}
	return st.DecisionInFlightUntil.After(now)
}

// WakeSuppressed reports whether app's wake-suppression window is active.
// Per the spec's open question, this is tracked independently of
// quitSuppressedUntil (§9 "Open questions").
func (c *Coordinator) WakeSuppressed(app string, now time.Time) bool {
	st, ok := c.tables.PeekAppUnlocked(app)
	if !ok {
		return false
	}
	return st.WakeSuppressedUntil.After(now)
}

func (c *Coordinator) logDecision(app, sessionID, kind, reason string, metadata interface{}) {
	diagnostics.Log(diagnostics.Decision{
		Component: "coordinator",
		App:       app,
		SessionID: sessionID,
		Kind:      kind,
		Reason:    reason,
		Metadata:  metadata,
	})
}

// emitSurface dispatches a wake command outside the lock. A non-nil error
// means the UI host could not be reached (spec §4.7); callers are
// responsible for rolling back the state they optimistically applied.
func (c *Coordinator) emitSurface(cmd surface.WakeCommand) error {
	err := c.bridge.Wake(cmd)
	if err != nil {
		observability.SurfaceEmitFailures.WithLabelValues(cmd.WakeReason).Inc()
		return err
	}
	observability.ActiveSurfaces.Set(1)
	return nil
}
