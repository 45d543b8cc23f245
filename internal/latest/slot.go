// Package latest provides a single-value handoff between a producer that must
// never block and a consumer that only cares about the newest value.
package latest

import "sync/atomic"

// Slot holds at most one unread value. Offering into a full slot replaces the
// stale value, so a slow consumer always sees the most recent one.
type Slot[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewSlot creates an empty Slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Offer stores v without blocking. It reports whether an unread value was
// discarded to make room.
func (s *Slot[T]) Offer(v T) (replaced bool) {
	for {
		select {
		case s.ch <- v:
			return replaced
		default:
		}
		// Full: drain the stale value and retry. The consumer may have
		// taken it in the meantime, which is fine.
		select {
		case <-s.ch:
			s.dropped.Add(1)
			replaced = true
		default:
		}
	}
}

// Poll returns the pending value, if any, without blocking.
func (s *Slot[T]) Poll() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for use in a select.
func (s *Slot[T]) C() <-chan T {
	return s.ch
}

// Dropped returns how many values were overwritten before being read.
func (s *Slot[T]) Dropped() uint64 {
	return s.dropped.Load()
}
