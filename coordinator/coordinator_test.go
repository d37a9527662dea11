package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/foreground"
	"github.com/mindfence/decisioncore/gate"
	"github.com/mindfence/decisioncore/statetable"
	"github.com/mindfence/decisioncore/store"
	"github.com/mindfence/decisioncore/surface"
)

type fakeForeground struct {
	mu  sync.Mutex
	app string
}

func (f *fakeForeground) set(app string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.app = app
}

func (f *fakeForeground) CurrentForegroundApp() (string, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app, time.Now()
}

func (f *fakeForeground) LastRealForegroundApp() (string, time.Time) {
	return f.CurrentForegroundApp()
}

func (f *fakeForeground) EffectiveForeground(now time.Time, maxAge time.Duration) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.app == "" {
		return "", false
	}
	return f.app, true
}

type recordedWake struct {
	cmd surface.WakeCommand
}

type fakeHost struct {
	mu       sync.Mutex
	wakes    []recordedWake
	failNext bool
}

func (h *fakeHost) Wake(cmd surface.WakeCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failNext {
		h.failNext = false
		return errFakeEmit
	}
	h.wakes = append(h.wakes, recordedWake{cmd: cmd})
	return nil
}

func (h *fakeHost) last() surface.WakeCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.wakes[len(h.wakes)-1].cmd
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.wakes)
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFakeEmit = fakeErr("simulated emit failure")

func newTestCoordinator(t *testing.T, monitored ...string) (*Coordinator, *fakeForeground, *fakeHost, *store.QuotaStore, *statetable.Tables) {
	t.Helper()
	tables := statetable.New()
	clk := clock.New()
	host := &fakeHost{}
	bridge := surface.New(host)
	fg := &fakeForeground{}
	quota := store.NewQuotaStore(nil)
	apps := store.NewMonitoredAppsStore(nil)
	apps.Update(monitored)

	c := New(tables, clk, bridge, fg, quota, apps)
	return c, fg, host, quota, tables
}

func TestScenarioS1HappyQuickTask(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	if host.count() != 1 || host.last().WakeReason != surface.WakeReasonShowQuickTask {
		t.Fatalf("expected a SHOW_QUICK_TASK emission, got %d wakes", host.count())
	}
	sessionID := host.last().SessionID

	c.OnQuickTaskConfirmed("com.example.feed", sessionID)
	if quota.Snapshot().Remaining != 0 {
		t.Fatalf("expected quota decremented to 0, got %d", quota.Snapshot().Remaining)
	}
	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.QTState != statetable.Active {
		t.Fatalf("expected ACTIVE, got %v", st.QTState)
	}

	c.OnQuickTaskTimerExpired("com.example.feed", sessionID)
	if host.count() != 2 || host.last().WakeReason != surface.WakeReasonShowPostQuickTaskChoice {
		t.Fatalf("expected POST_QUICK_TASK_CHOICE emission")
	}

	c.OnPostQuickTaskChoice("com.example.feed", sessionID, Quit)
	st, _ = tables.PeekAppUnlocked("com.example.feed")
	if st.QTState != statetable.Idle {
		t.Fatalf("expected IDLE after quit, got %v", st.QTState)
	}
	if st.QuitSuppressedUntil.IsZero() {
		t.Fatal("expected quitSuppressedUntil to be set")
	}
}

func TestScenarioS2TimerExpiresWhileAway(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	sessionID := host.last().SessionID
	c.OnQuickTaskConfirmed("com.example.feed", sessionID)

	fg.set("com.other.app")
	c.OnQuickTaskTimerExpired("com.example.feed", sessionID)

	if host.count() != 1 {
		t.Fatalf("expected no post-choice surface to be emitted, got %d wakes", host.count())
	}
	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.QTState != statetable.Idle {
		t.Fatalf("expected IDLE, got %v", st.QTState)
	}
	if quota.Snapshot().Remaining != 0 {
		t.Fatalf("expected quota to remain 0, got %d", quota.Snapshot().Remaining)
	}
}

func TestScenarioS3InterventionSupersedesOffer(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(0)
	fg.set("com.example.feed")

	tables.WithLock(func(l *statetable.Locked) {
		st := l.App("com.example.feed")
		st.QTState = statetable.Offering
		st.OfferSessionID = "stale-offer"
		st.OfferStartedAt = time.Now().Add(-offerAgeTimeout - time.Second)
	})

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)

	if host.count() != 1 || host.last().WakeReason != surface.WakeReasonShowIntervention {
		t.Fatalf("expected a SHOW_INTERVENTION emission, got %d wakes", host.count())
	}
	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.OfferSessionID != "" {
		t.Fatal("expected stale offer to be cleared")
	}
	if st.QTState != statetable.InterventionActive {
		t.Fatalf("expected INTERVENTION_ACTIVE, got %v", st.QTState)
	}
	surf := tables.PeekSurfaceUnlocked()
	if !surf.Active {
		t.Fatal("expected exactly one active surface")
	}
}

func TestScenarioS4QuotaIdempotency(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	sessionID := host.last().SessionID

	c.OnQuickTaskConfirmed("com.example.feed", sessionID)
	c.OnQuickTaskConfirmed("com.example.feed", sessionID)

	if quota.Snapshot().Remaining != 0 {
		t.Fatalf("expected quota decremented exactly once, got %d", quota.Snapshot().Remaining)
	}
	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.ConfirmedSessionID != sessionID {
		t.Fatalf("expected confirmedSessionId = %q, got %q", sessionID, st.ConfirmedSessionID)
	}
}

func TestScenarioS6ContinueReOffersImmediately(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")
	tables.SetQuickTaskDuration("com.example.feed", 2*time.Millisecond)

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	offer := host.last()
	firstSession := offer.SessionID
	c.OnQuickTaskConfirmed("com.example.feed", firstSession)
	c.OnSurfaceOpened(offer.App, offer.SessionID, offer.WakeReason, offer.InstanceID)
	c.OnSurfaceDestroyed(offer.App, offer.SessionID, offer.WakeReason, offer.InstanceID)
	c.OnQuickTaskTimerExpired("com.example.feed", firstSession)

	time.Sleep(decisionInFlightWindow + 10*time.Millisecond)
	c.OnPostQuickTaskChoice("com.example.feed", firstSession, Continue)

	if host.count() < 3 {
		t.Fatalf("expected a fresh offer to be emitted on CONTINUE, got %d wakes", host.count())
	}
	last := host.last()
	if last.WakeReason != surface.WakeReasonShowIntervention && last.WakeReason != surface.WakeReasonShowQuickTask {
		t.Fatalf("expected a fresh offer or intervention, got %v", last.WakeReason)
	}
	if last.SessionID == firstSession {
		t.Fatal("expected a fresh session ID, not a re-used one")
	}
}

func TestEmitFailureRollsBackOffer(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")
	host.failNext = true

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)

	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.QTState != statetable.Idle || st.OfferSessionID != "" {
		t.Fatalf("expected rollback to IDLE after emit failure, got state=%v offer=%q", st.QTState, st.OfferSessionID)
	}
}

func TestNotMonitoredAppProducesNoAction(t *testing.T) {
	c, fg, host, _, _ := newTestCoordinator(t)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	if host.count() != 0 {
		t.Fatalf("expected no emission for an unmonitored app, got %d", host.count())
	}
}

func TestProtectionWindowBlocksReEntry(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	sessionID := host.last().SessionID
	c.OnQuickTaskConfirmed("com.example.feed", sessionID)

	before := host.count()
	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	if host.count() != before {
		t.Fatalf("expected qtProtectedUntil to suppress a new decision, got %d new wakes", host.count()-before)
	}

	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if !st.QTProtectedUntil.After(time.Now()) {
		t.Fatal("expected protection window to still be active")
	}
}

func TestSurfaceLifecycleClearsOfferOnMatchingDestroy(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	wake := host.last()

	c.OnSurfaceOpened(wake.App, wake.SessionID, wake.WakeReason, wake.InstanceID)
	c.OnSurfaceDestroyed(wake.App, wake.SessionID, wake.WakeReason, wake.InstanceID)

	st, _ := tables.PeekAppUnlocked("com.example.feed")
	if st.QTState != statetable.Idle || st.OfferSessionID != "" {
		t.Fatalf("expected offer cleared after matching destroy, got state=%v offer=%q", st.QTState, st.OfferSessionID)
	}
	surf := tables.PeekSurfaceUnlocked()
	if surf.Active {
		t.Fatal("expected surface to be inactive after destroy")
	}
}

func TestSurfaceLifecycleIgnoresStaleInstance(t *testing.T) {
	c, fg, host, quota, tables := newTestCoordinator(t, "com.example.feed")
	quota.SetRemaining(1)
	fg.set("com.example.feed")

	c.OnMonitoredAppEntry("com.example.feed", foreground.SourceAccessibility, false, nil)
	wake := host.last()

	c.OnSurfaceOpened(wake.App, wake.SessionID, wake.WakeReason, wake.InstanceID)
	c.OnSurfaceDestroyed(wake.App, wake.SessionID, wake.WakeReason, wake.InstanceID+999)

	surf := tables.PeekSurfaceUnlocked()
	if !surf.Active {
		t.Fatal("expected a stale-instance destroy callback to be ignored")
	}
}

func TestGateReasonSurfacesInLog(t *testing.T) {
	// Smoke test that gate.Reason values don't collide with logDecision's
	// positional args in a way that would break structured output.
	if gate.ReasonNotMonitored == "" {
		t.Fatal("expected a non-empty reason constant")
	}
}
