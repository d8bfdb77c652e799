package engine

import "sync"

// Mailbox is a single-slot, last-writer-wins message box. A second Put
// before the engine reads replaces the first - "most recent intent wins"
// is the policy, not an accident of queue draining order. Ready carries
// at most one coalesced wake-up token.
type Mailbox[T any] struct {
	mu     sync.Mutex
	val    T
	full   bool
	notify chan struct{}
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Put stores v, replacing any unread value.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.val = v
	m.full = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Take removes and returns the stored value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if !m.full {
		return zero, false
	}
	v := m.val
	m.val = zero
	m.full = false
	return v, true
}

// Ready wakes a sleeping reader. Spurious wakes are possible after a
// Take; readers must treat Take's second return as the truth.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.notify
}
