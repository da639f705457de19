package statebus

import "sync"

// Slot is a single-value mailbox. A publish overwrites any unread value,
// so a slow consumer only ever sees the latest one.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
}

// Publish stores v and marks it unread
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	s.value = v
	s.pending = true
	s.mu.Unlock()
}

// TryConsume returns the unread value, if any, and marks it read
func (s *Slot[T]) TryConsume() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		var zero T
		return zero, false
	}
	s.pending = false
	return s.value, true
}

// Pending reports whether an unread value is waiting
func (s *Slot[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Peek returns the last published value without consuming it
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.pending
}
