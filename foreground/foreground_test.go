package foreground

import (
	"testing"
	"time"
)

type fakeMonitored struct {
	set map[string]struct{}
}

func (f *fakeMonitored) IsMonitored(app string) bool {
	_, ok := f.set[app]
	return ok
}

func newTestTracker(monitoredApps ...string) (*Tracker, *[]string) {
	set := map[string]struct{}{}
	for _, a := range monitoredApps {
		set[a] = struct{}{}
	}
	var notified []string
	tr := New(
		&StaticClassifier{SystemUIPackages: map[string]struct{}{"com.android.launcher": {}}, SelfPackage: "com.mindfence.app"},
		&fakeMonitored{set: set},
		func(app string, source Source, at time.Time) {
			notified = append(notified, app)
		},
	)
	return tr, &notified
}

func TestOnForegroundChangedNotifiesMonitoredRealApp(t *testing.T) {
	tr, notified := newTestTracker("com.instagram.android")
	base := time.Now()
	tr.OnForegroundChanged("com.instagram.android", base)
	if len(*notified) != 1 || (*notified)[0] != "com.instagram.android" {
		t.Fatalf("expected one notification, got %v", *notified)
	}
}

func TestOnForegroundChangedSkipsSystemUIAndSelf(t *testing.T) {
	tr, notified := newTestTracker("com.android.launcher", "com.mindfence.app")
	base := time.Now()
	tr.OnForegroundChanged("com.android.launcher", base)
	tr.OnForegroundChanged("com.mindfence.app", base.Add(time.Second))
	if len(*notified) != 0 {
		t.Fatalf("expected no notifications, got %v", *notified)
	}
}

func TestOnForegroundChangedSkipsUnmonitoredApp(t *testing.T) {
	tr, notified := newTestTracker("com.instagram.android")
	tr.OnForegroundChanged("com.other.app", time.Now())
	if len(*notified) != 0 {
		t.Fatalf("expected no notifications for unmonitored app, got %v", *notified)
	}
}

func TestDedupCollapsesRapidDuplicates(t *testing.T) {
	tr, notified := newTestTracker("com.instagram.android")
	base := time.Now()
	tr.OnForegroundChanged("com.instagram.android", base)
	tr.OnForegroundChanged("com.instagram.android", base.Add(100*time.Millisecond))
	tr.OnForegroundChanged("com.instagram.android", base.Add(350*time.Millisecond))
	if len(*notified) != 1 {
		t.Fatalf("expected duplicates within window collapsed, got %v", *notified)
	}
}

func TestLastRealForegroundAppTracksOnlyRealApps(t *testing.T) {
	tr, _ := newTestTracker("com.instagram.android")
	base := time.Now()
	tr.OnForegroundChanged("com.instagram.android", base)
	tr.OnForegroundChanged("com.android.launcher", base.Add(time.Second))

	app, at := tr.LastRealForegroundApp()
	if app != "com.instagram.android" {
		t.Fatalf("LastRealForegroundApp = %q, want com.instagram.android", app)
	}
	if !at.Equal(base) {
		t.Fatalf("LastRealForegroundApp time = %v, want %v", at, base)
	}
}

func TestEffectiveForegroundPrefersLiveApp(t *testing.T) {
	tr, _ := newTestTracker("com.instagram.android")
	base := time.Now()
	tr.OnForegroundChanged("com.instagram.android", base)
	tr.OnForegroundChanged("com.android.launcher", base.Add(time.Second))

	app, ok := tr.EffectiveForeground(base.Add(2*time.Second), 5*time.Second)
	if !ok || app != "com.android.launcher" {
		t.Fatalf("expected live foreground app com.android.launcher, got %q ok=%v", app, ok)
	}
}
