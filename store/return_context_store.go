package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const (
	returnContextKey        = "return_context:current"
	returnContextPendingKey = "return_context:pending_id"
)

// ReturnContextStore holds a single-slot ReturnContext record plus a
// separate pendingContextId slot (spec §4.2 "ReturnContextStore").
type ReturnContextStore struct {
	mu      sync.Mutex
	current *ReturnContext
	pending string
	backend Backend
}

// NewReturnContextStore returns an empty ReturnContextStore.
func NewReturnContextStore(backend Backend) *ReturnContextStore {
	return &ReturnContextStore{backend: backend}
}

// Restore loads the durable record and pending ID at startup.
func (s *ReturnContextStore) Restore(ctx context.Context) {
	if s.backend == nil {
		return
	}
	if raw, ok, err := s.backend.Get(ctx, returnContextKey); err == nil && ok {
		var rc ReturnContext
		if err := json.Unmarshal([]byte(raw), &rc); err == nil {
			s.mu.Lock()
			s.current = &rc
			s.mu.Unlock()
		}
	} else if err != nil {
		log.Printf("ReturnContextStore: restore context failed: %v", err)
	}

	if raw, ok, err := s.backend.Get(ctx, returnContextPendingKey); err == nil && ok {
		s.mu.Lock()
		s.pending = raw
		s.mu.Unlock()
	} else if err != nil {
		log.Printf("ReturnContextStore: restore pending failed: %v", err)
	}
}

// Set stores a new ReturnContext and marks it pending.
func (s *ReturnContextStore) Set(rc ReturnContext) {
	s.mu.Lock()
	cp := rc
	s.current = &cp
	s.pending = rc.ContextID
	s.mu.Unlock()

	writeBehind(s.backend, func(ctx context.Context) error {
		data, err := json.Marshal(rc)
		if err != nil {
			return err
		}
		if err := s.backend.Set(ctx, returnContextKey, string(data), ReturnContextTTL); err != nil {
			return err
		}
		return s.backend.Set(ctx, returnContextPendingKey, rc.ContextID, ReturnContextTTL)
	})
}

// ConsumePendingFor implements the spec's consumePendingFor state machine
// (spec §4.2): returns NoPending if there's no pending context, WrongApp
// (leaving state untouched) if the pending context belongs to a different
// app, Expired (clearing state) if the TTL has lapsed, or Success (clearing
// state) with the context otherwise.
func (s *ReturnContextStore) ConsumePendingFor(app string, now time.Time) (ConsumeOutcome, *ReturnContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == "" || s.current == nil {
		return NoPending, nil
	}
	if s.current.App != app {
		return WrongApp, nil
	}

	rc := *s.current
	if now.Sub(rc.CreatedAt) > ReturnContextTTL {
		s.clearLocked()
		return Expired, nil
	}

	s.clearLocked()
	return Success, &rc
}

func (s *ReturnContextStore) clearLocked() {
	s.current = nil
	s.pending = ""
	writeBehind(s.backend, func(ctx context.Context) error {
		if err := s.backend.Delete(ctx, returnContextKey); err != nil {
			return err
		}
		return s.backend.Delete(ctx, returnContextPendingKey)
	})
}
