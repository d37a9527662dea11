package gate

import (
	"testing"

	"github.com/mindfence/decisioncore/statetable"
)

func TestDecideOrderedRules(t *testing.T) {
	cases := []struct {
		name     string
		snapshot Snapshot
		wantKind Kind
		wantReason Reason
	}{
		{
			name:     "not monitored short-circuits everything else",
			snapshot: Snapshot{IsMonitored: false, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonNotMonitored,
		},
		{
			name:     "post choice guard wins even with quota",
			snapshot: Snapshot{IsMonitored: true, QTState: statetable.PostChoice, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonPostChoiceGuard,
		},
		{
			name:     "active intention wins over empty quota",
			snapshot: Snapshot{IsMonitored: true, IntentionRemainingMs: 1000},
			wantKind: NoAction, wantReason: ReasonIntentionActive,
		},
		{
			name:     "already offering blocks a new decision",
			snapshot: Snapshot{IsMonitored: true, QTState: statetable.Offering, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonAlreadyInState,
		},
		{
			name:     "already active blocks a new decision",
			snapshot: Snapshot{IsMonitored: true, QTState: statetable.Active, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonAlreadyInState,
		},
		{
			name:     "intervention active blocks a new decision",
			snapshot: Snapshot{IsMonitored: true, QTState: statetable.InterventionActive, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonAlreadyInState,
		},
		{
			name:     "surface busy blocks before suppression checks",
			snapshot: Snapshot{IsMonitored: true, SurfaceActive: true, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonSurfaceBusy,
		},
		{
			name:     "quit suppression blocks ahead of wake suppression",
			snapshot: Snapshot{IsMonitored: true, QuitSuppressedFor: 500, WakeSuppressedFor: 500, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonQuitSuppressed,
		},
		{
			name:     "wake suppression blocks ahead of quota check",
			snapshot: Snapshot{IsMonitored: true, WakeSuppressedFor: 500, QTRemaining: 5},
			wantKind: NoAction, wantReason: ReasonWakeSuppressed,
		},
		{
			name:     "quota available starts a quick task",
			snapshot: Snapshot{IsMonitored: true, QTRemaining: 1},
			wantKind: StartQuickTask,
		},
		{
			name:     "disallowQT forces an intervention despite quota",
			snapshot: Snapshot{IsMonitored: true, QTRemaining: 1, DisallowQT: true},
			wantKind: StartIntervention,
		},
		{
			name:     "zero quota starts an intervention",
			snapshot: Snapshot{IsMonitored: true, QTRemaining: 0},
			wantKind: StartIntervention,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.snapshot)
			if got.Kind != tc.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.wantKind)
			}
			if got.Kind == NoAction && got.Reason != tc.wantReason {
				t.Fatalf("Reason = %v, want %v", got.Reason, tc.wantReason)
			}
		})
	}
}

func TestDecideIsPure(t *testing.T) {
	s := Snapshot{IsMonitored: true, QTRemaining: 1}
	first := Decide(s)
	second := Decide(s)
	if first != second {
		t.Fatal("Decide is not deterministic for identical input")
	}
}
