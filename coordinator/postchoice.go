package coordinator

import (
	"time"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/foreground"
	"github.com/mindfence/decisioncore/statetable"
)

var zeroTime time.Time

// OnPostQuickTaskChoice is the Coordinator's entry point for the post-Quick
// Task screen's verdict (spec §4.5.4).
func (c *Coordinator) OnPostQuickTaskChoice(app, sessionID string, choice Choice) {
	now := c.clk.Now()

	var mismatch bool
	var continueImmediately bool
	var staleHandle clock.Handle
	var hasStaleHandle bool

	c.tables.WithLock(func(l *statetable.Locked) {
		st := l.Peek(app)
		if st == nil {
			return
		}
		if st.PostChoiceSessionID != sessionID {
			mismatch = true
		}

		// Common cleanup, applied even on mismatch (defensive, spec §4.5.4 step 1-2).
		st.PostChoiceSessionID = ""
		st.ActiveSessionID = ""
		st.QTState = statetable.Idle
		if h, ok := st.TimerHandle.(clock.Handle); ok {
			staleHandle = h
			hasStaleHandle = true
		}
		st.TimerHandle = nil

		switch choice {
		case Quit:
			st.QuitSuppressedUntil = now.Add(quitSuppressionCooldown)
			st.PostChoiceCompletedAt = now
		case Continue:
			st.QuitSuppressedUntil = zeroTime
			continueImmediately = true
		}
	})

	if hasStaleHandle {
		c.clk.Cancel(staleHandle)
	}
	if mismatch {
		c.logDecision(app, sessionID, "NoAction", "POST_CHOICE_SESSION_MISMATCH", nil)
	}

	switch choice {
	case Quit:
		c.logDecision(app, sessionID, "PostChoiceQuit", "", nil)
	case Continue:
		c.logDecision(app, sessionID, "PostChoiceContinue", "", nil)
	}

	if continueImmediately {
		c.OnMonitoredAppEntry(app, foreground.SourcePostContinueImmediate, true, nil)
	}
}
