package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const quotaKey = "quota:global"

// QuotaStore holds QuotaState (spec §4.2 "QuotaStore"). decrement() is
// intentionally not exposed here: the Coordinator owns the idempotency
// check (confirmedSessionId) and calls SetRemaining with the value it has
// already computed, exactly as the spec describes ("the Coordinator mutates
// remaining via a setter and the store persists the new value").
type QuotaStore struct {
	mu      sync.RWMutex
	cached  QuotaState
	backend Backend
}

// NewQuotaStore returns a QuotaStore with sane defaults; call Restore to
// load any previously persisted value.
func NewQuotaStore(backend Backend) *QuotaStore {
	return &QuotaStore{
		cached:  QuotaState{MaxPer15m: 1, Remaining: 1, WindowStart: time.Now()},
		backend: backend,
	}
}

// Snapshot returns the current cached QuotaState.
func (s *QuotaStore) Snapshot() QuotaState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// Restore loads the durable value at startup, if any.
func (s *QuotaStore) Restore(ctx context.Context) {
	if s.backend == nil {
		return
	}
	raw, ok, err := s.backend.Get(ctx, quotaKey)
	if err != nil {
		log.Printf("QuotaStore: restore failed: %v", err)
		return
	}
	if !ok {
		return
	}
	var st QuotaState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		log.Printf("QuotaStore: restore unmarshal failed: %v", err)
		return
	}
	s.mu.Lock()
	s.cached = st
	s.mu.Unlock()
}

// SetMax updates the configured per-15-minute quota ceiling (spec §6.5
// "setQuickTaskMaxQuota").
func (s *QuotaStore) SetMax(max int) {
	s.mu.Lock()
	s.cached.MaxPer15m = max
	if s.cached.Remaining > max {
		s.cached.Remaining = max
	}
	snap := s.cached
	s.mu.Unlock()
	s.persist(snap)
}

// SetRemaining clamps and stores the new remaining count. This is the only
// mutation path the Coordinator uses for decrementing quota (I3).
func (s *QuotaStore) SetRemaining(remaining int) {
	if remaining < 0 {
		remaining = 0
	}
	s.mu.Lock()
	if remaining > s.cached.MaxPer15m {
		remaining = s.cached.MaxPer15m
	}
	s.cached.Remaining = remaining
	snap := s.cached
	s.mu.Unlock()
	s.persist(snap)
}

// Refill resets remaining to the configured max and marks a fresh rolling
// window start. Called by the external policy component (policysync) — the
// spec leaves the 15-minute refill policy itself external (§9 Open
// Questions); this method is the setter that policy calls into.
func (s *QuotaStore) Refill() {
	s.mu.Lock()
	s.cached.Remaining = s.cached.MaxPer15m
	s.cached.WindowStart = time.Now()
	snap := s.cached
	s.mu.Unlock()
	s.persist(snap)
}

func (s *QuotaStore) persist(st QuotaState) {
	writeBehind(s.backend, func(ctx context.Context) error {
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		if err := s.backend.Set(ctx, quotaKey, string(data), 0); err != nil {
			log.Printf("QuotaStore: durable write failed: %v", err)
			return err
		}
		return nil
	})
}
