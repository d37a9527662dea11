// Package statetable holds the per-app Quick Task state and the global
// surface-tracking record (spec §3, §4.5 "State Tables"). All mutation goes
// through the single lock exposed here; the Coordinator is the only caller
// that should take that lock.
package statetable

import "time"

// QTState is one of the five Quick Task lifecycle states (spec §3.1).
type QTState int

const (
	Idle QTState = iota
	Offering
	Active
	PostChoice
	InterventionActive
)

func (s QTState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Offering:
		return "OFFERING"
	case Active:
		return "ACTIVE"
	case PostChoice:
		return "POST_CHOICE"
	case InterventionActive:
		return "INTERVENTION_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// DefaultQuickTaskDurationMs is the per-app default when no override is set.
const DefaultQuickTaskDurationMs = 120_000

// PerAppState is the full set of fields tracked for one monitored app
// (spec §3.1 "PerAppState"). Zero value is a fresh IDLE app.
type PerAppState struct {
	QTState QTState

	OfferSessionID      string
	ActiveSessionID     string
	PostChoiceSessionID string
	ConfirmedSessionID  string

	OfferStartedAt        time.Time
	SessionStartedAt      time.Time
	PostChoiceCompletedAt time.Time
	QTProtectedUntil      time.Time
	QuitSuppressedUntil   time.Time
	WakeSuppressedUntil   time.Time
	DecisionInFlightUntil time.Time

	QuickTaskDurationMs int64

	PreservedIntervention bool

	// TimerHandle is opaque to this package; the Coordinator stores
	// whatever its clock.Handle looks like here so it can cancel a
	// stale timer without a second map lookup elsewhere.
	TimerHandle interface{}
}

// quickTaskDurationOrDefault returns the configured duration, defaulting to
// DefaultQuickTaskDurationMs when unset.
func (p *PerAppState) quickTaskDurationOrDefault() int64 {
	if p.QuickTaskDurationMs > 0 {
		return p.QuickTaskDurationMs
	}
	return DefaultQuickTaskDurationMs
}

// SurfaceRecord tracks the single live UI surface (spec §3.1 "Surface").
type SurfaceRecord struct {
	InstanceID int64
	App        string
	SessionID  string
	WakeReason string
	StartedAt  time.Time
	Active     bool
}
