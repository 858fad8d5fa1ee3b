package cache

import "testing"

func TestEntityLimiter(t *testing.T) {
	l := newEntityLimiter(2)

	if !l.admit("a") || !l.admit("b") {
		t.Fatal("limiter rejected entities under the limit")
	}
	if l.admit("c") {
		t.Error("limiter admitted a new entity past the limit")
	}
	if !l.admit("a") {
		t.Error("limiter rejected an already-tracked entity")
	}
	if l.count() != 2 {
		t.Errorf("count = %d, want 2", l.count())
	}

	l.forget("a")
	if l.count() != 1 {
		t.Errorf("count after forget = %d, want 1", l.count())
	}
	if !l.admit("c") {
		t.Error("limiter rejected a new entity after a slot was freed")
	}

	l.forget("never-seen") // no-op
}
