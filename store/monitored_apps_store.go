package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

const monitoredAppsKey = "monitored_apps:global"

// MonitoredAppsStore holds the set of package identifiers the Decision Gate
// treats as monitored (spec §4.2 "MonitoredAppsStore").
type MonitoredAppsStore struct {
	mu      sync.RWMutex
	cached  map[string]struct{}
	backend Backend
}

// NewMonitoredAppsStore returns an empty MonitoredAppsStore.
func NewMonitoredAppsStore(backend Backend) *MonitoredAppsStore {
	return &MonitoredAppsStore{cached: make(map[string]struct{}), backend: backend}
}

// IsMonitored reports whether app is currently in the monitored set.
func (s *MonitoredAppsStore) IsMonitored(app string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cached[app]
	return ok
}

// Snapshot returns a copy of the monitored set.
func (s *MonitoredAppsStore) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.cached))
	for k := range s.cached {
		out[k] = struct{}{}
	}
	return out
}

// Restore loads the durable set at startup.
func (s *MonitoredAppsStore) Restore(ctx context.Context) {
	if s.backend == nil {
		return
	}
	raw, ok, err := s.backend.Get(ctx, monitoredAppsKey)
	if err != nil {
		log.Printf("MonitoredAppsStore: restore failed: %v", err)
		return
	}
	if !ok {
		return
	}
	var apps []string
	if err := json.Unmarshal([]byte(raw), &apps); err != nil {
		log.Printf("MonitoredAppsStore: restore unmarshal failed: %v", err)
		return
	}
	set := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		set[a] = struct{}{}
	}
	s.mu.Lock()
	s.cached = set
	s.mu.Unlock()
}

// Update replaces the monitored set (spec §6.5 "updateMonitoredApps").
func (s *MonitoredAppsStore) Update(apps []string) {
	set := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		set[a] = struct{}{}
	}
	s.mu.Lock()
	s.cached = set
	s.mu.Unlock()

	writeBehind(s.backend, func(ctx context.Context) error {
		data, err := json.Marshal(apps)
		if err != nil {
			return err
		}
		if err := s.backend.Set(ctx, monitoredAppsKey, string(data), 0); err != nil {
			log.Printf("MonitoredAppsStore: durable write failed: %v", err)
			return err
		}
		return nil
	})
}
