package ecs

import "iter"

type slot[T any] struct {
	generation uint32
	live       bool
	value      T
}

// Store is a generational slot arena. Insert reuses a free slot when one is
// available, else grows. Erased slots bump their generation so stale handles
// fail the validity check instead of aliasing the next occupant.
// Accessed only from the simulation goroutine, no locks.
type Store[T any] struct {
	slots    []slot[T]
	freeList []uint32
	live     int
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		slots:    make([]slot[T], 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert stores v and returns its handle.
func (s *Store[T]) Insert(v T) Handle {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		sl := &s.slots[idx]
		sl.live = true
		sl.value = v
		s.live++
		return NewHandle(idx, sl.generation)
	}
	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot[T]{generation: 1, live: true, value: v})
	s.live++
	return NewHandle(idx, 1)
}

// Erase removes the entity. No-op if h is already invalid.
func (s *Store[T]) Erase(h Handle) bool {
	if !s.Contains(h) {
		return false
	}
	idx := h.Index()
	sl := &s.slots[idx]
	var zero T
	sl.value = zero
	sl.live = false
	sl.generation++
	s.freeList = append(s.freeList, idx)
	s.live--
	return true
}

// Contains reports whether h refers to a live entity.
func (s *Store[T]) Contains(h Handle) bool {
	idx := h.Index()
	if int(idx) >= len(s.slots) {
		return false
	}
	sl := &s.slots[idx]
	return sl.live && sl.generation == h.Generation()
}

// Get returns a pointer to the live value, or false if h is stale.
// The pointer is valid until the next Insert (which may grow the arena).
func (s *Store[T]) Get(h Handle) (*T, bool) {
	if !s.Contains(h) {
		return nil, false
	}
	return &s.slots[h.Index()].value, true
}

// Lookup is Get with an error result for call sites that propagate failures.
func (s *Store[T]) Lookup(h Handle) (*T, error) {
	v, ok := s.Get(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	return v, nil
}

// Len returns the number of live entities.
func (s *Store[T]) Len() int { return s.live }

// All iterates live entries in slot order, skipping holes.
func (s *Store[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := range s.slots {
			sl := &s.slots[i]
			if !sl.live {
				continue
			}
			if !yield(NewHandle(uint32(i), sl.generation), &sl.value) {
				return
			}
		}
	}
}

// Handles returns a snapshot of the live handles. Use it when the loop body
// may insert into the same store.
func (s *Store[T]) Handles() []Handle {
	out := make([]Handle, 0, s.live)
	for h := range s.All() {
		out = append(out, h)
	}
	return out
}
