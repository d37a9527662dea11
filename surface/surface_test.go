package surface

import "testing"

func TestWakeTracksPendingInstance(t *testing.T) {
	var sent WakeCommand
	b := New(HostFunc(func(cmd WakeCommand) error { sent = cmd; return nil }))

	b.Wake(WakeCommand{InstanceID: 7, App: "com.instagram.android", SessionID: "s1", WakeReason: "ACCESSIBILITY"})

	if sent.InstanceID != 7 {
		t.Fatalf("host did not receive wake command")
	}
	if b.PendingInstanceID() != 7 {
		t.Fatalf("PendingInstanceID = %d, want 7", b.PendingInstanceID())
	}
}

func TestOnOpenedMatchesPendingInstance(t *testing.T) {
	b := New(HostFunc(func(WakeCommand) error { return nil }))
	b.Wake(WakeCommand{InstanceID: 3})

	if !b.OnOpened(OpenedEvent{InstanceID: 3}) {
		t.Fatal("expected matching instance to resolve")
	}
	if b.OnOpened(OpenedEvent{InstanceID: 99}) {
		t.Fatal("expected stale instance to be rejected")
	}
}

func TestOnDestroyedClearsPending(t *testing.T) {
	b := New(HostFunc(func(WakeCommand) error { return nil }))
	b.Wake(WakeCommand{InstanceID: 5})

	if !b.OnDestroyed(DestroyedEvent{InstanceID: 5}) {
		t.Fatal("expected matching destroy to resolve")
	}
	if b.PendingInstanceID() != 0 {
		t.Fatalf("expected pending cleared, got %d", b.PendingInstanceID())
	}
}

func TestOnDestroyedRejectsStaleInstance(t *testing.T) {
	b := New(HostFunc(func(WakeCommand) error { return nil }))
	b.Wake(WakeCommand{InstanceID: 5})

	if b.OnDestroyed(DestroyedEvent{InstanceID: 4}) {
		t.Fatal("expected stale destroy to be rejected")
	}
	if b.PendingInstanceID() != 5 {
		t.Fatal("pending should remain unchanged after a stale destroy")
	}
}
