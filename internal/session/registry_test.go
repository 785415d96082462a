package session

import (
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	s, _, met, _ := newTestSession(t, nil)
	met.Start(s.BPM())

	r.Add(s)
	if r.Len() != 1 {
		t.Fatalf("len=%d want 1", r.Len())
	}
	if r.Get("test") != s {
		t.Fatal("lookup failed")
	}

	r.Remove("test")
	if r.Len() != 0 {
		t.Fatalf("len=%d want 0", r.Len())
	}
	if r.Get("test") != nil {
		t.Fatal("session still resolvable after remove")
	}
	if met.Running() {
		t.Fatal("remove must close the session and stop its metronome")
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Remove("nope")
}
