// Package store implements the four persistent stores named in spec §4.2:
// QuotaStore, MonitoredAppsStore, IntentionStore and ReturnContextStore. Each
// exposes a synchronous, non-blocking cached read and write methods that
// update the cache immediately and enqueue one best-effort durable write
// asynchronously. A failed durable write is not retried; the in-memory
// cache stays authoritative.
package store

import (
	"context"
	"time"
)

// Backend is the durable write-behind target shared by all four stores. It
// mirrors the small Get/Set surface this codebase already uses for its
// idempotency cache, generalized to arbitrary string payloads so either the
// on-device SQLite backend or an in-memory fake can satisfy it.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// writeBehind runs fn once on its own goroutine, as a best-effort
// asynchronous durable write. fn's error is discarded (the store's fn logs
// it where it chooses to), the write is not retried, and it never blocks
// the caller — the
// in-memory cache remains authoritative regardless of durable write outcome
// (spec §4.7).
func writeBehind(backend Backend, fn func(ctx context.Context) error) {
	if backend == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = fn(ctx)
	}()
}
