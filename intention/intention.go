// Package intention implements the Intention Subsystem (spec §4.6): a
// simpler, symmetric cousin of the Quick Task lifecycle. A user sets a
// timebox on an app; if the timebox expires while the user is still on that
// app, a forced intervention fires.
package intention

import (
	"sync"
	"time"

	"github.com/mindfence/decisioncore/clock"
)

// ForegroundChecker answers the foreground-gated expiry check shared with
// §4.5.3 (implemented by *foreground.Tracker in production).
type ForegroundChecker interface {
	EffectiveForeground(now time.Time, maxAge time.Duration) (string, bool)
}

// Guardrails reports the conditions the Coordinator tracks that must gate a
// forced intervention (spec §4.6 "Forced-intervention triggering carries its
// own guardrails").
type Guardrails interface {
	SurfaceActive() bool
	EntryInFlight(app string, now time.Time) bool
	WakeSuppressed(app string, now time.Time) bool
}

// ForceIntervention is invoked once all guardrails pass at expiry.
type ForceIntervention func(app string, now time.Time)

const effectiveForegroundMaxAge = 30 * time.Second
const forcedInterventionDebounce = 800 * time.Millisecond

// Store is the subset of store.IntentionStore the subsystem needs.
type Store interface {
	Get(app string, now time.Time) (int64, bool)
	Set(app string, untilMs int64)
	Clear(app string)
}

// Subsystem wires timers to the intention store and the Coordinator's
// guardrails.
type Subsystem struct {
	mu sync.Mutex

	clock      *clock.Clock
	store      Store
	foreground ForegroundChecker
	guardrails Guardrails
	onForced   ForceIntervention

	timers map[string]clock.Handle

	lastForcedAt time.Time
}

// New returns a Subsystem.
func New(c *clock.Clock, store Store, foreground ForegroundChecker, guardrails Guardrails, onForced ForceIntervention) *Subsystem {
	return &Subsystem{
		clock:      c,
		store:      store,
		foreground: foreground,
		guardrails: guardrails,
		onForced:   onForced,
		timers:     make(map[string]clock.Handle),
	}
}

// SetIntentionUntil stores untilMs atomically and (re)schedules the expiry
// timer, cancelling any prior one for app. If untilMs is already in the
// past, the intention is cleared immediately instead (spec §4.6).
func (s *Subsystem) SetIntentionUntil(app string, untilMs int64, now time.Time) {
	s.mu.Lock()
	if h, ok := s.timers[app]; ok {
		s.clock.Cancel(h)
		delete(s.timers, app)
	}
	s.mu.Unlock()

	if untilMs <= now.UnixMilli() {
		s.store.Clear(app)
		return
	}

	s.store.Set(app, untilMs)

	delay := time.Duration(untilMs-now.UnixMilli()) * time.Millisecond
	h := s.clock.Schedule(delay, func() {
		s.onExpiry(app, untilMs)
	})

	s.mu.Lock()
	s.timers[app] = h
	s.mu.Unlock()
}

// ClearIntention cancels the timer and clears the store entry for app.
func (s *Subsystem) ClearIntention(app string) {
	s.mu.Lock()
	if h, ok := s.timers[app]; ok {
		s.clock.Cancel(h)
		delete(s.timers, app)
	}
	s.mu.Unlock()

	s.store.Clear(app)
}

// onExpiry re-checks idempotently before acting (spec §4.6): the timer may
// have fired after a newer SetIntentionUntil call already replaced it.
func (s *Subsystem) onExpiry(app string, expectedUntilMs int64) {
	now := s.clock.Now()

	// Read the entry as of just before its own expiry: a TTL-aware store
	// reports an entry as absent once its untilMs has passed, which by the
	// time this timer fires it has.
	current, ok := s.store.Get(app, time.UnixMilli(expectedUntilMs-1))
	if !ok || current != expectedUntilMs || now.UnixMilli() < expectedUntilMs {
		return
	}

	fgApp, fgOK := s.foreground.EffectiveForeground(now, effectiveForegroundMaxAge)
	if !fgOK || fgApp != app {
		s.store.Clear(app)
		s.mu.Lock()
		delete(s.timers, app)
		s.mu.Unlock()
		return
	}

	s.store.Clear(app)
	s.mu.Lock()
	delete(s.timers, app)
	s.mu.Unlock()

	s.tryForceIntervention(app, now)
}

// tryForceIntervention applies the §4.6 guardrails before emitting.
func (s *Subsystem) tryForceIntervention(app string, now time.Time) {
	if s.guardrails.SurfaceActive() {
		return
	}
	if s.guardrails.EntryInFlight(app, now) {
		return
	}
	if s.guardrails.WakeSuppressed(app, now) {
		return
	}

	s.mu.Lock()
	sinceLast := now.Sub(s.lastForcedAt)
	if sinceLast < forcedInterventionDebounce && !s.lastForcedAt.IsZero() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	fgApp, fgOK := s.foreground.EffectiveForeground(now, effectiveForegroundMaxAge)
	if !fgOK || fgApp != app {
		return
	}

	s.mu.Lock()
	s.lastForcedAt = now
	s.mu.Unlock()

	s.onForced(app, now)
}
