package dataset

import "testing"

func TestRegistry_MonotonicAssignment(t *testing.T) {
	r := NewRegistry()
	if i := r.Register("a"); i != 0 {
		t.Errorf("expected index 0, got %d", i)
	}
	if i := r.Register("b"); i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 live mappings, got %d", r.Len())
	}
}

func TestRegistry_IdempotentRegister(t *testing.T) {
	r := NewRegistry()
	first := r.Register("a")
	again := r.Register("a")
	if first != again {
		t.Errorf("duplicate register should return existing index: %d != %d", first, again)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 mapping, got %d", r.Len())
	}
}

func TestRegistry_NoIndexReuseAfterUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	r.Register("b")
	r.Unregister("b")

	if i := r.Register("c"); i != 2 {
		t.Errorf("freed index must not be reused: expected 2, got %d", i)
	}
	if _, ok := r.IndexOf("b"); ok {
		t.Error("unregistered id should not resolve")
	}
	if _, ok := r.IDAt(1); ok {
		t.Error("freed index should not resolve")
	}
}

func TestRegistry_ReverseLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("a")
	id, ok := r.IDAt(0)
	if !ok || id != "a" {
		t.Errorf("expected a at index 0, got %q (ok=%v)", id, ok)
	}
	if _, ok := r.IDAt(99); ok {
		t.Error("unknown index should not resolve")
	}
}
