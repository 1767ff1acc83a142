package handle

import (
	"fmt"
	"iter"
)

// ID identifies a slot in an Arena. The zero value is never issued and is
// therefore a convenient "no handle" marker.
type ID struct {
	index      uint32
	generation uint32
}

// IsValid reports whether the ID was issued by an arena at some point.
func (id ID) IsValid() bool {
	return id.generation != 0
}

// Index returns the dense slot index of the ID.
func (id ID) Index() int {
	return int(id.index)
}

// Generation returns the slot generation the ID was issued for.
func (id ID) Generation() uint32 {
	return id.generation
}

// String formats the ID as index@generation for diagnostics.
func (id ID) String() string {
	if !id.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%d@%d", id.index, id.generation)
}

// Less orders IDs by slot index, then generation.
func (id ID) Less(other ID) bool {
	if id.index != other.index {
		return id.index < other.index
	}
	return id.generation < other.generation
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is a dense table of values addressed by generation-checked IDs.
// It is not safe for concurrent mutation.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// Insert stores v and returns the ID addressing it.
func (a *Arena[T]) Insert(v T) ID {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.value = v
		s.live = true
		a.live++
		return ID{index: idx, generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: v, generation: 1, live: true})
	a.live++
	return ID{index: uint32(len(a.slots) - 1), generation: 1}
}

// Get returns the value for id, or false if the ID is stale or unknown.
func (a *Arena[T]) Get(id ID) (T, bool) {
	if p, ok := a.Ptr(id); ok {
		return *p, true
	}
	var zero T
	return zero, false
}

// Ptr returns a pointer to the stored value, or false if the ID is stale or unknown.
func (a *Arena[T]) Ptr(id ID) (*T, bool) {
	if !a.Contains(id) {
		return nil, false
	}
	return &a.slots[id.index].value, true
}

// Contains reports whether id currently addresses a live slot.
func (a *Arena[T]) Contains(id ID) bool {
	if !id.IsValid() || int(id.index) >= len(a.slots) {
		return false
	}
	s := a.slots[id.index]
	return s.live && s.generation == id.generation
}

// Remove frees the slot addressed by id. Any copies of id become stale.
func (a *Arena[T]) Remove(id ID) bool {
	if !a.Contains(id) {
		return false
	}
	s := &a.slots[id.index]
	var zero T
	s.value = zero
	s.live = false
	s.generation++
	if s.generation == 0 {
		// Wrapped around; skip the reserved zero generation.
		s.generation = 1
	}
	a.free = append(a.free, id.index)
	a.live--
	return true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	return a.live
}

// All iterates live values in slot order.
func (a *Arena[T]) All() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.live {
				continue
			}
			if !yield(ID{index: uint32(i), generation: s.generation}, &s.value) {
				return
			}
		}
	}
}
