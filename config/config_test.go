package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeQuota struct{ max int }

func (f *fakeQuota) SetMax(max int) { f.max = max }

type fakeApps struct{ apps []string }

func (f *fakeApps) Update(apps []string) { f.apps = apps }

type fakeDurations struct{ set map[string]time.Duration }

func (f *fakeDurations) SetQuickTaskDuration(app string, d time.Duration) {
	if f.set == nil {
		f.set = map[string]time.Duration{}
	}
	f.set[app] = d
}

func TestLoadAppliesQuotaAndMonitoredApps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
quick_task_max_quota = 3
monitored_apps = ["com.instagram.android", "com.tiktok.android"]

[apps.com_example_feed]
quick_task_duration_ms = 60000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	quota := &fakeQuota{}
	apps := &fakeApps{}
	durations := &fakeDurations{}
	m := New(path, quota, apps, durations)

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if quota.max != 3 {
		t.Fatalf("expected quota.max = 3, got %d", quota.max)
	}
	if len(apps.apps) != 2 {
		t.Fatalf("expected 2 monitored apps, got %v", apps.apps)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.toml"), nil, nil, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("expected missing config file to be tolerated, got %v", err)
	}
}
