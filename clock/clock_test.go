package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleFires(t *testing.T) {
	c := New()
	var fired int32
	c.Schedule(10*time.Millisecond, func() {
		atomic.StoreInt32(&fired, 1)
	})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&fired) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("callback did not fire")
}

func TestCancelPreventsFire(t *testing.T) {
	c := New()
	var fired int32
	h := c.Schedule(20*time.Millisecond, func() {
		atomic.StoreInt32(&fired, 1)
	})
	c.Cancel(h)

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) == 1 {
		t.Fatal("cancelled callback fired")
	}
}

func TestCancelUnknownHandleIsNoop(t *testing.T) {
	c := New()
	c.Cancel(Handle(9999))
}

func TestNowUsesOverride(t *testing.T) {
	fixed := time.Unix(1000, 0)
	c := NewWithNow(func() time.Time { return fixed })
	if !c.Now().Equal(fixed) {
		t.Fatalf("expected %v, got %v", fixed, c.Now())
	}
}
