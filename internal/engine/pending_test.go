package engine

import "testing"

func TestPendingSetMarkUnmark(t *testing.T) {
	p := NewPendingSet()
	if !p.Mark("a") {
		t.Fatal("first mark refused")
	}
	if p.Mark("a") {
		t.Fatal("duplicate mark accepted")
	}
	if !p.Contains("a") {
		t.Fatal("marked id missing")
	}
	p.Unmark("a")
	if p.Contains("a") {
		t.Fatal("unmarked id still present")
	}
	if !p.Mark("a") {
		t.Fatal("re-mark after unmark refused")
	}
}

func TestPendingSetListIsStable(t *testing.T) {
	p := NewPendingSet()
	p.Mark("b")
	p.Mark("a")
	p.Mark("c")
	got := p.List()
	if len(got) != 3 {
		t.Fatalf("list = %v", got)
	}
	// unmarking the middle entry leaves the others
	p.Unmark("a")
	got = p.List()
	if len(got) != 2 {
		t.Fatalf("list = %v", got)
	}
	for _, id := range got {
		if id == "a" {
			t.Fatal("unmarked id listed")
		}
	}
}
