package coordinator

import (
	"time"

	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/surface"
)

const defensiveOfferClearWindow = 10 * time.Second

// OnSurfaceOpened is the Coordinator's callback for a confirmed surface open
// (spec §4.5.5).
func (c *Coordinator) OnSurfaceOpened(app, sessionID, wakeReason string, instanceID int64) {
	c.tables.WithLock(func(l *statetable.Locked) {
		l.SetSurface(statetable.SurfaceRecord{
			InstanceID: instanceID,
			App:        app,
			SessionID:  sessionID,
			WakeReason: wakeReason,
			StartedAt:  c.clk.Now(),
			Active:     true,
		})
	})
	c.logDecision(app, sessionID, "SurfaceOpened", "", map[string]interface{}{"instance_id": instanceID})
}

// OnSurfaceDestroyed is the Coordinator's callback for a surface teardown
// (spec §4.5.5). Implements session-aware offering cleanup by wake reason,
// plus a defensive fallback when (app, sessionId) were unavailable in the
// callback.
func (c *Coordinator) OnSurfaceDestroyed(app, sessionID, wakeReason string, instanceID int64) {
	now := c.clk.Now()
	var stale bool

	c.tables.WithLock(func(l *statetable.Locked) {
		surf := l.Surface()
		if instanceID != surf.InstanceID {
			stale = true
			return
		}
		l.SetSurface(statetable.SurfaceRecord{})

		if app == "" {
			c.defensiveOfferCleanup(l, now)
			return
		}

		st := l.Peek(app)
		if st == nil {
			return
		}

		switch wakeReason {
		case surface.WakeReasonShowQuickTask:
			if st.OfferSessionID == sessionID {
				st.OfferSessionID = ""
				st.QTState = statetable.Idle
			}
		case surface.WakeReasonShowPostQuickTaskChoice:
			// KEEP: post-choice never owns an offer.
		case surface.WakeReasonShowIntervention:
			// no offering cleanup.
		default:
			// KEEP: unknown wake reason, conservative.
		}
	})

	if stale {
		c.logDecision(app, sessionID, "NoAction", "STALE_SURFACE_DESTROY", map[string]interface{}{"instance_id": instanceID})
		return
	}
	c.logDecision(app, sessionID, "SurfaceDestroyed", "", map[string]interface{}{"instance_id": instanceID})
}

// defensiveOfferCleanup implements the §4.5.5 fallback when (app, sessionId)
// were unavailable: only clear an offering if there is an offerSessionId,
// qtState == OFFERING, and offerStartedAt is within the last 10 000 ms, for
// whichever app the surface destroy callback plausibly belongs to (the
// current foreground app).
func (c *Coordinator) defensiveOfferCleanup(l *statetable.Locked, now time.Time) {
	fgApp, ok := c.foreground.EffectiveForeground(now, effectiveForegroundAge)
	if !ok {
		return
	}
	st := l.Peek(fgApp)
	if st == nil {
		return
	}
	if st.OfferSessionID == "" || st.QTState != statetable.Offering {
		return
	}
	if now.Sub(st.OfferStartedAt) > defensiveOfferClearWindow {
		return
	}
	st.OfferSessionID = ""
	st.QTState = statetable.Idle
}
