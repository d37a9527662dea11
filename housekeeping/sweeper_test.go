package housekeeping

import (
	"testing"
	"time"

	"github.com/mindfence/decisioncore/clock"
	"github.com/mindfence/decisioncore/statetable"
)

func TestSweepClearsStaleOffer(t *testing.T) {
	tables := statetable.New()
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })

	tables.WithLock(func(l *statetable.Locked) {
		st := l.App("com.example.feed")
		st.QTState = statetable.Offering
		st.OfferSessionID = "sess-1"
		st.OfferStartedAt = now.Add(-time.Minute)
	})

	s := New(tables, clk, DefaultSchedule)
	s.sweep()

	if got, _ := tables.PeekAppUnlocked("com.example.feed"); got.QTState != statetable.Idle || got.OfferSessionID != "" {
		t.Fatalf("expected stale offer cleared, got %+v", got)
	}
}

func TestSweepLeavesFreshOfferAlone(t *testing.T) {
	tables := statetable.New()
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })

	tables.WithLock(func(l *statetable.Locked) {
		st := l.App("com.example.feed")
		st.QTState = statetable.Offering
		st.OfferSessionID = "sess-1"
		st.OfferStartedAt = now.Add(-5 * time.Second)
	})

	s := New(tables, clk, DefaultSchedule)
	s.sweep()

	if got, _ := tables.PeekAppUnlocked("com.example.feed"); got.QTState != statetable.Offering || got.OfferSessionID != "sess-1" {
		t.Fatalf("expected fresh offer untouched, got %+v", got)
	}
}

func TestSweepClearsStaleInterventionWithoutActiveSurface(t *testing.T) {
	tables := statetable.New()
	now := time.Now()
	clk := clock.NewWithNow(func() time.Time { return now })

	tables.WithLock(func(l *statetable.Locked) {
		st := l.App("com.example.feed")
		st.QTState = statetable.InterventionActive
		st.ActiveSessionID = "sess-2"
		st.SessionStartedAt = now.Add(-3 * time.Minute)
	})

	s := New(tables, clk, DefaultSchedule)
	s.sweep()

	if got, _ := tables.PeekAppUnlocked("com.example.feed"); got.QTState != statetable.Idle {
		t.Fatalf("expected stale intervention cleared, got %+v", got)
	}
}
