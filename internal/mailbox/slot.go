// Package mailbox provides a single-slot, latest-value-wins handoff between
// goroutines running on independent clocks.
package mailbox

import "sync/atomic"

// Slot holds the most recently stored value. Store never blocks and never
// queues: a value not loaded before the next Store is dropped. The zero
// Slot is empty and ready to use.
type Slot[T any] struct {
	p atomic.Pointer[T]
}

// Store publishes v, replacing any previous value.
func (s *Slot[T]) Store(v T) {
	s.p.Store(&v)
}

// Load returns the latest value. ok is false if nothing was stored yet.
func (s *Slot[T]) Load() (v T, ok bool) {
	p := s.p.Load()
	if p == nil {
		return v, false
	}
	return *p, true
}

// Swap publishes v and returns the value it replaced.
func (s *Slot[T]) Swap(v T) (old T, ok bool) {
	p := s.p.Swap(&v)
	if p == nil {
		return old, false
	}
	return *p, true
}

// Clear empties the slot.
func (s *Slot[T]) Clear() {
	s.p.Store(nil)
}
