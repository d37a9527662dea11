// Package housekeeping runs a cron-scheduled backstop sweep over the state
// table, clearing Quick Task state stuck past its own timeout window when
// the normal Coordinator timers that should have cleared it never fired
// (process restart losing in-memory clock.Handle timers, a missed callback,
// etc). The Coordinator's own 30s offer-age and 120s stale-surface checks
// (spec §4.5.1) catch this on the next entry into the same app; this sweep
// is the fallback for apps that are never re-entered.
package housekeeping

import (
	"log"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/statetable"
)

// Default sweep schedule: every 5 minutes.
const DefaultSchedule = "*/5 * * * *"

// staleOfferAge and staleInterventionAge mirror the Coordinator's own recovery
// thresholds (coordinator.offerAgeTimeout, coordinator.staleSurfaceTimeout).
const (
	staleOfferAge        = 30 * time.Second
	staleInterventionAge = 120 * time.Second
)

// Sweeper periodically clears stuck per-app state the Coordinator's own
// re-entry checks never got a chance to run against.
type Sweeper struct {
	tables   *statetable.Tables
	clk      *clock.Clock
	schedule string

	stop chan struct{}
}

// New returns a Sweeper using the given cron expression (DefaultSchedule if
// expr is empty).
func New(tables *statetable.Tables, clk *clock.Clock, expr string) *Sweeper {
	if expr == "" {
		expr = DefaultSchedule
	}
	return &Sweeper{tables: tables, clk: clk, schedule: expr, stop: make(chan struct{})}
}

// Start runs the sweep loop on its own goroutine until Stop is called.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop ends the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stop)
}

func (s *Sweeper) loop() {
	for {
		next, err := gronx.NextTickAfter(s.schedule, time.Now(), false)
		if err != nil {
			log.Printf("housekeeping: invalid schedule %q: %v", s.schedule, err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.sweep()
		}
	}
}

// sweep clears any app wedged in OFFERING past staleOfferAge or
// INTERVENTION_ACTIVE with no live surface for it past staleInterventionAge.
// An intervention's age is measured from SessionStartedAt, which the
// Coordinator sets only when a Quick Task is confirmed; an intervention on
// an app with no confirmed Quick Task is never swept. Runs entirely under the Tables lock; never emits or schedules timers
// itself (spec §5, I6) — it only resets state so the next entry event can
// proceed cleanly.
func (s *Sweeper) sweep() {
	now := s.clk.Now()
	var cleared []string

	for _, app := range s.tables.AllApps() {
		s.tables.WithLock(func(l *statetable.Locked) {
			st := l.Peek(app)
			if st == nil {
				return
			}
			switch st.QTState {
			case statetable.Offering:
				if !st.OfferStartedAt.IsZero() && now.Sub(st.OfferStartedAt) > staleOfferAge {
					st.QTState = statetable.Idle
					st.OfferSessionID = ""
					cleared = append(cleared, app)
				}
			case statetable.InterventionActive:
				if !st.SessionStartedAt.IsZero() && now.Sub(st.SessionStartedAt) > staleInterventionAge {
					surf := l.Surface()
					if surf.App != app || !surf.Active {
						st.QTState = statetable.Idle
						st.ActiveSessionID = ""
						cleared = append(cleared, app)
					}
				}
			}
		})
	}

	if len(cleared) > 0 {
		log.Printf("housekeeping: swept %d wedged app(s): %v", len(cleared), cleared)
	}
}
