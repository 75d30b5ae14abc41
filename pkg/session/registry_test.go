package session

import (
	"testing"
	"time"
)

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry(10, "", nil)

	s1, created := r.GetOrCreate("abc")
	if !created {
		t.Error("created = false for new session")
	}
	if s1.ID != "abc" {
		t.Errorf("ID = %v, want abc", s1.ID)
	}

	s2, created := r.GetOrCreate("abc")
	if created {
		t.Error("created = true for existing session")
	}
	if s2 != s1 {
		t.Error("GetOrCreate returned a different session for the same ID")
	}

	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestGetOrCreateGeneratesID(t *testing.T) {
	r := NewRegistry(10, "", nil)

	s, created := r.GetOrCreate("")
	if !created {
		t.Error("created = false")
	}
	if s.ID == "" {
		t.Error("generated ID is empty")
	}
	if r.Get(s.ID) != s {
		t.Error("session not retrievable by generated ID")
	}
}

func TestGetMissing(t *testing.T) {
	r := NewRegistry(10, "", nil)
	if r.Get("nope") != nil {
		t.Error("Get(nope) != nil")
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry(10, "", nil)
	r.GetOrCreate("abc")

	if !r.Remove("abc") {
		t.Error("Remove(abc) = false, want true")
	}
	if r.Remove("abc") {
		t.Error("Remove(abc) second call = true, want false")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestSweep(t *testing.T) {
	r := NewRegistry(10, "", nil)

	stale, _ := r.GetOrCreate("stale")
	fresh, _ := r.GetOrCreate("fresh")

	// Age the stale session past the cutoff
	stale.mu.Lock()
	stale.lastActivity = time.Now().Add(-25 * time.Hour)
	stale.mu.Unlock()

	removed := r.Sweep(24 * time.Hour)
	if removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if r.Get("stale") != nil {
		t.Error("stale session still present")
	}
	if r.Get("fresh") != fresh {
		t.Error("fresh session was removed")
	}
}

func TestSweepNothingIdle(t *testing.T) {
	r := NewRegistry(10, "", nil)
	r.GetOrCreate("a")
	r.GetOrCreate("b")

	if removed := r.Sweep(24 * time.Hour); removed != 0 {
		t.Errorf("Sweep() = %d, want 0", removed)
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(10, "", nil)
	r.GetOrCreate("a")
	r.GetOrCreate("b")

	r.Close()

	if r.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", r.Count())
	}
}
