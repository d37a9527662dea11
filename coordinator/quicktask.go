package coordinator

import (
	"time"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/foreground"
	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/surface"
)

// OnQuickTaskConfirmed is the Coordinator's entry point for a user
// confirming a Quick Task offer (spec §4.5.2).
func (c *Coordinator) OnQuickTaskConfirmed(app, sessionID string) {
	now := c.clk.Now()

	var shouldSchedule bool
	var duration time.Duration
	var staleHandle clock.Handle
	var hasStaleHandle bool

	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil || st.QTState != statetable.Offering || st.OfferSessionID != sessionID {
			return
		}

		st.OfferSessionID = ""
		st.QTState = statetable.Active
		st.ActiveSessionID = sessionID
		st.SessionStartedAt = now
		duration = l.QuickTaskDurationFor(app)
		st.QTProtectedUntil = now.Add(duration)

		if st.ConfirmedSessionID != sessionID {
			quota := c.quota.Snapshot()
			c.quota.SetRemaining(quota.Remaining - 1)
			st.ConfirmedSessionID = sessionID
		}

		if h, ok := st.TimerHandle.(clock.Handle); ok {
			staleHandle = h
			hasStaleHandle = true
		}
		shouldSchedule = true
	})

	if hasStaleHandle {
		c.clk.Cancel(staleHandle)
	}
	if !shouldSchedule {
		c.logDecision(app, sessionID, "NoAction", "STALE_CONFIRM", nil)
		return
	}

	c.logDecision(app, sessionID, "QuickTaskConfirmed", "", map[string]interface{}{"duration_ms": duration.Milliseconds()})

	h := c.clk.Schedule(duration, func() {
		c.OnQuickTaskTimerExpired(app, sessionID)
	})
	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st != nil && st.ActiveSessionID == sessionID {
			st.TimerHandle = h
		}
	})
}

// OnQuickTaskTimerExpired is the Coordinator's timer callback for an active
// Quick Task session (spec §4.5.3).
func (c *Coordinator) OnQuickTaskTimerExpired(app, sessionID string) {
	now := c.clk.Now()

	var emitPostChoice bool

	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil || st.QTState != statetable.Active || st.ActiveSessionID != sessionID {
			return
		}

		fgApp, ok := c.foreground.EffectiveForeground(now, effectiveForegroundAge)
		stillOnApp := ok && fgApp == app

		st.TimerHandle = nil
		if !stillOnApp {
			st.QTState = statetable.Idle
			st.ActiveSessionID = ""
			return
		}

		st.QTState = statetable.PostChoice
		st.PostChoiceSessionID = sessionID
		st.ActiveSessionID = ""
		emitPostChoice = true
	})

	if !emitPostChoice {
		c.logDecision(app, sessionID, "NoAction", "TIMER_EXPIRED_AWAY", nil)
		return
	}

	c.logDecision(app, sessionID, "PostChoiceOffered", "", nil)
	c.emitSurface(surface.WakeCommand{
		App:        app,
		SessionID:  sessionID,
		WakeReason: surface.WakeReasonShowPostQuickTaskChoice,
	})
}

// OnQuickTaskDeclined handles a user declining an outstanding offer
// (spec §6.2 "onQuickTaskDeclined"): the offer is withdrawn and the app
// returns to IDLE.
func (c *Coordinator) OnQuickTaskDeclined(app, sessionID string) {
	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil || st.QTState != statetable.Offering || st.OfferSessionID != sessionID {
			return
		}
		st.OfferSessionID = ""
		st.QTState = statetable.Idle
	})
	c.logDecision(app, sessionID, "QuickTaskDeclined", "", nil)
}

// OnQuickTaskFinished handles a manual finish reported by the UI host before
// the timer expires (spec §6.2 "onQuickTaskFinished"): behaves like the
// timer-expiry foreground branch, with a quota-aware twist when quota
// remains.
func (c *Coordinator) OnQuickTaskFinished(app, sessionID string) {
	var emitPostChoice bool
	var triggerReEval bool
	var staleHandle clock.Handle
	var hasStaleHandle bool

	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil || st.QTState != statetable.Active || st.ActiveSessionID != sessionID {
			return
		}

		if h, ok := st.TimerHandle.(clock.Handle); ok {
			staleHandle = h
			hasStaleHandle = true
		}
		st.TimerHandle = nil
		st.ActiveSessionID = ""

		if c.quota.Snapshot().Remaining > 0 {
			st.QTState = statetable.PostChoice
			st.PostChoiceSessionID = sessionID
			emitPostChoice = true
			return
		}

		st.QTState = statetable.Idle
		triggerReEval = true
	})

	if hasStaleHandle {
		c.clk.Cancel(staleHandle)
	}

	if emitPostChoice {
		c.logDecision(app, sessionID, "PostChoiceOffered", "MANUAL_FINISH", nil)
		c.emitSurface(surface.WakeCommand{
			App:        app,
			SessionID:  sessionID,
			WakeReason: surface.WakeReasonShowPostQuickTaskChoice,
		})
		return
	}

	if triggerReEval {
		c.logDecision(app, sessionID, "ForcedReEval", "MANUAL_FINISH_ZERO_QUOTA", nil)
		c.OnMonitoredAppEntry(app, foreground.SourcePostContinueImmediate, true, nil)
	}
}
