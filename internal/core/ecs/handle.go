package ecs

import (
	"errors"
	"fmt"
)

// ErrInvalidHandle is returned by handle-based lookups when the referenced
// entity no longer exists (or never existed). Callers treat it as "gone".
var ErrInvalidHandle = errors.New("invalid handle")

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on erase to invalidate stale refs.
// Generations start at 1, so the zero Handle never refers to a live entity.
type Handle uint64

// Nil is the zero handle. It is never valid in any store.
const Nil Handle = 0

func NewHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) Index() uint32      { return uint32(h) }
func (h Handle) Generation() uint32 { return uint32(h >> 32) }
func (h Handle) IsNil() bool        { return h == Nil }

func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d:%d", h.Index(), h.Generation())
}
