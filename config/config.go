// Package config implements the global and per-app configuration setters
// (spec §6.5): values are cached synchronously and persisted asynchronously,
// with the on-disk TOML file hot-reloaded when it changes on disk.
package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// AppConfig is the per-app override block (spec §3.1 "quickTaskDurationMs").
type AppConfig struct {
	QuickTaskDurationMs int64 `toml:"quick_task_duration_ms,omitempty"`
}

// File is the on-disk shape of the config file.
type File struct {
	QuickTaskMaxQuota int                  `toml:"quick_task_max_quota"`
	MonitoredApps     []string             `toml:"monitored_apps"`
	Apps              map[string]AppConfig `toml:"apps,omitempty"`
}

// QuotaSetter and MonitoredAppsSetter are the two store methods the file
// watcher calls into on reload; kept as interfaces so config doesn't import
// the store package's concrete types.
type QuotaSetter interface {
	SetMax(max int)
}

type MonitoredAppsSetter interface {
	Update(apps []string)
}

// QuickTaskDurationSetter is the statetable.Tables method used for per-app
// duration overrides.
type QuickTaskDurationSetter interface {
	SetQuickTaskDuration(app string, d time.Duration)
}

// Manager owns the config file path, the in-memory cache, and the fsnotify
// watcher that triggers reloads.
type Manager struct {
	mu   sync.RWMutex
	path string
	file File

	quota     QuotaSetter
	apps      MonitoredAppsSetter
	durations QuickTaskDurationSetter

	watcher *fsnotify.Watcher
}

// New returns a Manager wired to the three setters it drives on load/reload.
func New(path string, quota QuotaSetter, apps MonitoredAppsSetter, durations QuickTaskDurationSetter) *Manager {
	return &Manager{path: path, quota: quota, apps: apps, durations: durations}
}

// Load reads the config file once and applies it. Call before StartWatch.
func (m *Manager) Load() error {
	var f File
	if _, err := toml.DecodeFile(m.path, &f); err != nil {
		if os.IsNotExist(err) {
			log.Printf("config: %s not found, using defaults", m.path)
			return nil
		}
		return err
	}
	m.apply(f)
	return nil
}

// StartWatch begins watching the config file for changes and hot-reloads on
// write events (spec §6.5 "Values are cached synchronously and persisted
// asynchronously" — the reverse direction, file-to-cache, follows the same
// synchronous-cache discipline).
func (m *Manager) StartWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(m.path); err != nil {
		w.Close()
		return err
	}
	m.watcher = w

	go m.watchLoop()
	return nil
}

func (m *Manager) watchLoop() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Load(); err != nil {
				log.Printf("config: reload failed: %v", err)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

// Close stops the file watcher.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

func (m *Manager) apply(f File) {
	m.mu.Lock()
	m.file = f
	m.mu.Unlock()

	if m.quota != nil && f.QuickTaskMaxQuota > 0 {
		m.quota.SetMax(f.QuickTaskMaxQuota)
	}
	if m.apps != nil && f.MonitoredApps != nil {
		m.apps.Update(f.MonitoredApps)
	}
	if m.durations != nil {
		for app, cfg := range f.Apps {
			if cfg.QuickTaskDurationMs > 0 {
				m.durations.SetQuickTaskDuration(app, time.Duration(cfg.QuickTaskDurationMs)*time.Millisecond)
			}
		}
	}
}

// Snapshot returns a copy of the last-loaded file contents, for diagnostics.
func (m *Manager) Snapshot() File {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.file
}
