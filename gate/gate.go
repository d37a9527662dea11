// Package gate implements the Decision Gate: a pure, side-effect-free
// function that turns a foreground entry plus a state snapshot into a
// GateAction (spec §4.4). It is deliberately the only place the admission
// policy is decided so it can be exhaustively table-tested independent of
// the Coordinator's concurrency concerns.
package gate

import "github.com/mindfence/decisioncore/statetable"

// Reason explains why a NoAction was returned, for logging (spec §4.4).
type Reason string

const (
	ReasonNotMonitored    Reason = "NOT_MONITORED"
	ReasonPostChoiceGuard Reason = "POST_CHOICE_GUARD"
	ReasonIntentionActive Reason = "INTENTION_ACTIVE"
	ReasonAlreadyInState  Reason = "ALREADY_IN_STATE"
	ReasonSurfaceBusy     Reason = "SURFACE_BUSY"
	ReasonQuitSuppressed  Reason = "QUIT_SUPPRESSED"
	ReasonWakeSuppressed  Reason = "WAKE_SUPPRESSED"
)

// Kind identifies which of the three actions the gate chose.
type Kind int

const (
	NoAction Kind = iota
	StartQuickTask
	StartIntervention
)

func (k Kind) String() string {
	switch k {
	case NoAction:
		return "NoAction"
	case StartQuickTask:
		return "StartQuickTask"
	case StartIntervention:
		return "StartIntervention"
	default:
		return "Unknown"
	}
}

// Action is the Decision Gate's verdict.
type Action struct {
	Kind   Kind
	Reason Reason // only meaningful when Kind == NoAction
}

// Snapshot packages everything the gate needs to decide (spec §4.4).
type Snapshot struct {
	IsMonitored             bool
	QTRemaining             int
	SurfaceActive           bool
	QTState                 statetable.QTState
	IntentionRemainingMs    int64
	IsInterventionPreserved bool
	QuitSuppressedFor       int64 // ms remaining, 0 if not suppressed
	WakeSuppressedFor       int64 // ms remaining, 0 if not suppressed
	IsForceEntry            bool
	DisallowQT              bool
}

// Decide applies the nine ordered rules from spec §4.4 and returns the
// single action they settle on. It touches nothing but its arguments.
func Decide(snapshot Snapshot) Action {
	if !snapshot.IsMonitored {
		return Action{Kind: NoAction, Reason: ReasonNotMonitored}
	}
	if snapshot.QTState == statetable.PostChoice {
		return Action{Kind: NoAction, Reason: ReasonPostChoiceGuard}
	}
	if snapshot.IntentionRemainingMs > 0 {
		return Action{Kind: NoAction, Reason: ReasonIntentionActive}
	}
	switch snapshot.QTState {
	case statetable.Active, statetable.Offering, statetable.InterventionActive:
		return Action{Kind: NoAction, Reason: ReasonAlreadyInState}
	}
	if snapshot.SurfaceActive {
		return Action{Kind: NoAction, Reason: ReasonSurfaceBusy}
	}
	if snapshot.QuitSuppressedFor > 0 {
		return Action{Kind: NoAction, Reason: ReasonQuitSuppressed}
	}
	if snapshot.WakeSuppressedFor > 0 {
		return Action{Kind: NoAction, Reason: ReasonWakeSuppressed}
	}
	if snapshot.QTRemaining > 0 && !snapshot.DisallowQT {
		return Action{Kind: StartQuickTask}
	}
	return Action{Kind: StartIntervention}
}
