package store

import "time"

// QuotaState is the global Quick Task quota (spec §3.1 "QuotaState").
type QuotaState struct {
	MaxPer15m   int       `json:"max_per_15m"`
	Remaining   int       `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
}

// ReturnContext is the single-slot record persisted across a QT/intervention
// detour so the app the user was returning to can be recovered later (spec
// §4.2 "ReturnContextStore"). It is not otherwise consumed by the Coordinator
// described in this spec, but the store must still honor the 30 minute TTL
// and consume semantics so collaborators above the core can rely on them.
type ReturnContext struct {
	ContextID        string    `json:"context_id"`
	SourceCheckpoint string    `json:"source_checkpoint"`
	Trigger          string    `json:"trigger"`
	SessionID        string    `json:"session_id"`
	App              string    `json:"app"`
	CreatedAt        time.Time `json:"created_at"`
}

// ReturnContextTTL is the fixed expiry window for a stored ReturnContext.
const ReturnContextTTL = 30 * time.Minute

// ConsumeOutcome is the result of consuming a pending ReturnContext
// (spec §4.2, "consumePendingFor").
type ConsumeOutcome int

const (
	NoPending ConsumeOutcome = iota
	WrongApp
	Expired
	Success
)

func (o ConsumeOutcome) String() string {
	switch o {
	case NoPending:
		return "NO_PENDING"
	case WrongApp:
		return "WRONG_APP"
	case Expired:
		return "EXPIRED"
	case Success:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}
