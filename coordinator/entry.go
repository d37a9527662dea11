package coordinator

import (
	"time"

	"github.com/mindfence/decisioncore/foreground"
	"github.com/mindfence/decisioncore/gate"
	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/surface"
)

// intentionLookup resolves the remaining intention window for app, in
// milliseconds, or 0 if none is active. Wired to the intention Subsystem's
// store by the caller that assembles the Coordinator.
type intentionLookup func(app string, now time.Time) int64

// OnMonitoredAppEntry is the Coordinator's entry point for foreground
// notifications (spec §4.5.1). source tags why this call happened; force
// bypasses none of the suppression checks below — it only marks the
// snapshot's isForceEntry field, consistent with the spec treating "force"
// as Decision Gate input rather than a bypass switch.
func (c *Coordinator) OnMonitoredAppEntry(app string, source foreground.Source, force bool, intentionFor intentionLookup) {
	now := c.clk.Now()

	var action gate.Action
	var sessionID string
	var instanceID int64

	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.App(app)

		// Step 1: pre-gate suppression checks.
		if st.QuitSuppressedUntil.After(now) {
			return
		}
		if !st.PostChoiceCompletedAt.IsZero() && now.Sub(st.PostChoiceCompletedAt) < postChoiceCooldown {
			return
		}
		if !st.QuitSuppressedUntil.IsZero() && !st.QuitSuppressedUntil.After(now) {
			st.QuitSuppressedUntil = time.Time{}
		}

		// Step 2: protection window.
		if st.QTProtectedUntil.After(now) {
			return
		}

		// Step 3: decision-in-flight gate.
		if st.DecisionInFlightUntil.After(now) {
			return
		}

		// Step 4: offer-age timeout.
		if st.QTState == statetable.Offering && now.Sub(st.OfferStartedAt) > offerAgeTimeout {
			st.OfferSessionID = ""
			st.QTState = statetable.Idle
		}

		// Step 5: stale-surface recovery.
		surf := l.Surface()
		if surf.Active && now.Sub(surf.StartedAt) > staleSurfaceTimeout {
			l.SetSurface(statetable.SurfaceRecord{})
			surf = statetable.SurfaceRecord{}
		}

		// Step 6: build snapshot and decide.
		intentionMs := int64(0)
		if intentionFor != nil {
			intentionMs = intentionFor(app, now)
		}
		snapshot := gate.Snapshot{
			IsMonitored:             c.monitoredApps.IsMonitored(app),
			QTRemaining:             c.quota.Snapshot().Remaining,
			SurfaceActive:           surf.Active,
			QTState:                 st.QTState,
			IntentionRemainingMs:    intentionMs,
			IsInterventionPreserved: st.PreservedIntervention,
			QuitSuppressedFor:       remainingMs(st.QuitSuppressedUntil, now),
			WakeSuppressedFor:       remainingMs(st.WakeSuppressedUntil, now),
			IsForceEntry:            force,
		}
		action = gate.Decide(snapshot)

		switch action.Kind {
		case gate.NoAction:
			return
		case gate.StartQuickTask:
			sessionID = c.newSessionID()
			st.OfferSessionID = sessionID
			st.QTState = statetable.Offering
			st.OfferStartedAt = now
			st.DecisionInFlightUntil = now.Add(decisionInFlightWindow)
			instanceID = l.NextInstanceID()
			l.SetSurface(statetable.SurfaceRecord{
				InstanceID: instanceID,
				App:        app,
				SessionID:  sessionID,
				WakeReason: surface.WakeReasonShowQuickTask,
				StartedAt:  now,
				Active:     true,
			})
		case gate.StartIntervention:
			if st.QTState == statetable.Offering {
				st.OfferSessionID = ""
				st.QTState = statetable.Idle
			}
			sessionID = c.newSessionID()
			st.QTState = statetable.InterventionActive
			instanceID = l.NextInstanceID()
			l.SetSurface(statetable.SurfaceRecord{
				InstanceID: instanceID,
				App:        app,
				SessionID:  sessionID,
				WakeReason: surface.WakeReasonShowIntervention,
				StartedAt:  now,
				Active:     true,
			})
		}
	})

	switch action.Kind {
	case gate.NoAction:
		c.logDecision(app, "", "NoAction", string(action.Reason), nil)
		return
	case gate.StartQuickTask:
		c.logDecision(app, sessionID, "StartQuickTask", "", map[string]interface{}{"source": source})
		if err := c.emitSurface(surface.WakeCommand{
			InstanceID: instanceID,
			App:        app,
			SessionID:  sessionID,
			WakeReason: surface.WakeReasonShowQuickTask,
		}); err != nil {
			c.rollbackOffer(app, sessionID)
		}
	case gate.StartIntervention:
		c.logDecision(app, sessionID, "StartIntervention", "", map[string]interface{}{"source": source})
		c.emitSurface(surface.WakeCommand{
			InstanceID: instanceID,
			App:        app,
			SessionID:  sessionID,
			WakeReason: surface.WakeReasonShowIntervention,
		})
	}
}

// rollbackOffer reverts an optimistically allocated offer session back to
// IDLE if it wasn't superseded in the meantime (spec §4.5.1, §4.7).
func (c *Coordinator) rollbackOffer(app, sessionID string) {
	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil || st.OfferSessionID != sessionID {
			return
		}
		st.OfferSessionID = ""
		st.QTState = statetable.Idle
		l.SetSurface(statetable.SurfaceRecord{})
	})
}

func remainingMs(until, now time.Time) int64 {
	if !until.After(now) {
		return 0
	}
	return until.Sub(now).Milliseconds()
}
