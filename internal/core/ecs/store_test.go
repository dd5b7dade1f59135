package ecs

import "testing"

func TestStoreInsertGetErase(t *testing.T) {
	s := NewStore[string]()
	a := s.Insert("a")
	b := s.Insert("b")

	if v, ok := s.Get(a); !ok || *v != "a" {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
	if !s.Erase(a) {
		t.Fatalf("Erase(a) returned false")
	}
	if s.Contains(a) {
		t.Fatalf("erased handle still valid")
	}
	if s.Erase(a) {
		t.Fatalf("second Erase should be a no-op")
	}
	if _, err := s.Lookup(a); err != ErrInvalidHandle {
		t.Fatalf("Lookup(stale) err = %v, want ErrInvalidHandle", err)
	}

	// The freed slot is reused with a new generation.
	c := s.Insert("c")
	if c.Index() != a.Index() {
		t.Fatalf("expected slot reuse: a=%d c=%d", a.Index(), c.Index())
	}
	if c == a {
		t.Fatalf("reused slot produced identical handle")
	}
	if s.Contains(a) {
		t.Fatalf("stale handle aliases new occupant")
	}
	if v, _ := s.Get(c); *v != "c" {
		t.Fatalf("Get(c) = %q", *v)
	}
	if v, _ := s.Get(b); *v != "b" {
		t.Fatalf("Get(b) = %q", *v)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestStoreNilHandleNeverValid(t *testing.T) {
	s := NewStore[int]()
	s.Insert(7)
	if s.Contains(Nil) {
		t.Fatalf("Nil handle reported as live")
	}
}

func TestStoreIterationSkipsHoles(t *testing.T) {
	s := NewStore[int]()
	var hs []Handle
	for i := 0; i < 6; i++ {
		hs = append(hs, s.Insert(i))
	}
	s.Erase(hs[1])
	s.Erase(hs[4])

	var got []int
	for _, v := range s.All() {
		got = append(got, *v)
	}
	want := []int{0, 2, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStoreHandleStabilityUnderChurn(t *testing.T) {
	s := NewStore[int]()
	live := map[Handle]int{}
	var dead []Handle
	for round := 0; round < 50; round++ {
		h := s.Insert(round)
		live[h] = round
		if round%3 == 0 {
			for k := range live {
				s.Erase(k)
				delete(live, k)
				dead = append(dead, k)
				break
			}
		}
	}
	for h, want := range live {
		v, ok := s.Get(h)
		if !ok || *v != want {
			t.Fatalf("live handle %x: got %v,%v want %d", uint64(h), v, ok, want)
		}
	}
	for _, h := range dead {
		if s.Contains(h) {
			t.Fatalf("dead handle %x still valid", uint64(h))
		}
	}
}

func TestDeferredQueueDedupAndDrain(t *testing.T) {
	q := NewDeferredQueue()
	q.Push(NewHandle(1, 1))
	q.Push(NewHandle(1, 1))
	q.Push(NewHandle(2, 1))
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}

	var drained []Handle
	q.Drain(func(h Handle) {
		drained = append(drained, h)
		if h == NewHandle(2, 1) {
			q.Push(NewHandle(3, 1))
		}
	})
	if len(drained) != 3 {
		t.Fatalf("drained %d handles, want 3", len(drained))
	}
	if q.Len() != 0 || q.Pending(NewHandle(1, 1)) {
		t.Fatalf("queue not empty after drain")
	}
}
