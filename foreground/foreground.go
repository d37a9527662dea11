// Package foreground implements the Foreground Tracker (spec §4.3): it
// consumes raw (package, timestamp) events from the OS-level accessibility
// stream, classifies them, deduplicates bursts, and notifies the Coordinator
// when a classified entry is a monitored app.
package foreground

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Source labels the origin of a monitored-app entry notification (spec §4.3,
// §6.1 wake-reason-adjacent source tags).
type Source string

const (
	SourceAccessibility         Source = "ACCESSIBILITY"
	SourceQTExpiryQuotaZero     Source = "QT_EXPIRY_QUOTA_ZERO"
	SourcePostContinueImmediate Source = "POST_CONTINUE_IMMEDIATE"
	SourceIntentionExpiry       Source = "INTENTION_EXPIRY"
)

// Classification is the result of classifying a raw foreground package.
type Classification int

const (
	ClassSystemUI Classification = iota
	ClassSelf
	ClassRealApp
)

// EntryNotifier is called whenever a classified real app that is in the
// monitored set comes to the foreground.
type EntryNotifier func(app string, source Source, at time.Time)

// Classifier decides whether a raw package is system UI/launcher, the host
// app itself, or a real third-party app (spec §4.3).
type Classifier interface {
	Classify(pkg string) Classification
}

// StaticClassifier classifies by static membership in configured sets.
type StaticClassifier struct {
	SystemUIPackages map[string]struct{}
	SelfPackage      string
}

func (c *StaticClassifier) Classify(pkg string) Classification {
	if pkg == c.SelfPackage {
		return ClassSelf
	}
	if _, ok := c.SystemUIPackages[pkg]; ok {
		return ClassSystemUI
	}
	return ClassRealApp
}

// IsMonitored reports whether app is in the monitored-app set. Implemented
// by store.MonitoredAppsStore; kept as an interface here to avoid the
// tracker depending on the store package's concrete type.
type MonitoredAppChecker interface {
	IsMonitored(app string) bool
}

// Tracker consumes raw foreground-change events and exposes the current and
// last-real foreground app.
type Tracker struct {
	mu sync.Mutex

	classifier Classifier
	monitored  MonitoredAppChecker
	notify     EntryNotifier

	currentForegroundApp string
	currentAt            time.Time

	lastRealForegroundApp string
	lastRealForegroundAt  time.Time

	surfaceActive bool

	// Dedup window: identical (pkg, roughly-same-time) events within this
	// window are collapsed (spec §6.1, "deduplicates within a 300ms window
	// and collapses duplicates within 400ms").
	dedupWindow    time.Duration
	collapseWindow time.Duration
	lastSeenPkg    string
	lastSeenAt     time.Time

	// limiter protects the Coordinator from OS event storms (e.g. rapid
	// app-switcher churn); independent of and in addition to the spec's
	// dedup/collapse windows.
	limiter *rate.Limiter
}

// New returns a Tracker. notify is called synchronously from
// OnForegroundChanged whenever a monitored real app enters the foreground;
// callers that need async dispatch should make notify non-blocking
// themselves.
func New(classifier Classifier, monitored MonitoredAppChecker, notify EntryNotifier) *Tracker {
	return &Tracker{
		classifier:     classifier,
		monitored:      monitored,
		notify:         notify,
		dedupWindow:    300 * time.Millisecond,
		collapseWindow: 400 * time.Millisecond,
		limiter:        rate.NewLimiter(rate.Limit(20), 40),
	}
}

// OnForegroundChanged is the inbound entry point from the raw event source
// (spec §6.1). One call per classified change is expected upstream, but this
// method defends against duplicates itself.
func (t *Tracker) OnForegroundChanged(pkg string, at time.Time) {
	t.mu.Lock()

	if t.isDuplicateLocked(pkg, at) {
		t.mu.Unlock()
		return
	}
	t.lastSeenPkg = pkg
	t.lastSeenAt = at

	t.currentForegroundApp = pkg
	t.currentAt = at

	class := t.classifier.Classify(pkg)
	if class == ClassRealApp {
		t.lastRealForegroundApp = pkg
		t.lastRealForegroundAt = at
	}
	monitored := t.monitored != nil && t.monitored.IsMonitored(pkg)
	t.mu.Unlock()

	if class != ClassRealApp || !monitored {
		return
	}
	if !t.limiter.Allow() {
		return
	}
	if t.notify != nil {
		t.notify(pkg, SourceAccessibility, at)
	}
}

// isDuplicateLocked implements the 300ms dedup / 400ms collapse rule. Must be
// called with t.mu held.
func (t *Tracker) isDuplicateLocked(pkg string, at time.Time) bool {
	if pkg != t.lastSeenPkg {
		return false
	}
	delta := at.Sub(t.lastSeenAt)
	if delta < 0 {
		delta = -delta
	}
	return delta < t.collapseWindow || delta < t.dedupWindow
}

// CurrentForegroundApp returns the most recently classified foreground
// package and when it was observed.
func (t *Tracker) CurrentForegroundApp() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentForegroundApp, t.currentAt
}

// LastRealForegroundApp returns the most recent non-system, non-self
// foreground package and when it was observed (spec §3.1 "ForegroundSnapshot").
func (t *Tracker) LastRealForegroundApp() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRealForegroundApp, t.lastRealForegroundAt
}

// SetSurfaceActive records whether a UI surface is currently live, mirrored
// from the Coordinator's own surface tracking so ForegroundSnapshot building
// doesn't need to cross packages for one bool.
func (t *Tracker) SetSurfaceActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.surfaceActive = active
}

// SurfaceActive reports the last value set via SetSurfaceActive.
func (t *Tracker) SurfaceActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surfaceActive
}

// EffectiveForeground implements the foreground-gated expiry check shared by
// §4.5.3 and §4.6: prefer the live foreground app; otherwise fall back to
// lastRealForegroundApp if it's aged less than maxAge.
func (t *Tracker) EffectiveForeground(now time.Time, maxAge time.Duration) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentForegroundApp != "" {
		return t.currentForegroundApp, true
	}
	if t.lastRealForegroundApp != "" && now.Sub(t.lastRealForegroundAt) < maxAge {
		return t.lastRealForegroundApp, true
	}
	return "", false
}
