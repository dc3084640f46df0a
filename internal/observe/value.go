// Package observe provides a minimal observable value used to expose
// connectivity, loading state, the trade filter and the user identity to
// external collaborators without locking them into a channel-based API.
package observe

import "sync"

// Value holds a single value of type T and notifies subscribers on every
// Set. Callbacks run synchronously on the caller's goroutine, in no
// particular order.
type Value[T any] struct {
	mu     sync.Mutex
	val    T
	subs   map[int]func(T)
	nextID int
}

// NewValue creates a Value with the given initial state. Subscribers are
// not notified of the initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		val:  initial,
		subs: make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val
}

// Set stores a new value and notifies all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	v.val = val
	cbs := make([]func(T), 0, len(v.subs))
	for _, cb := range v.subs {
		cbs = append(cbs, cb)
	}
	v.mu.Unlock()

	for _, cb := range cbs {
		cb(val)
	}
}

// Subscribe registers a callback invoked on every Set. The returned
// cancel func removes the registration; calling it more than once is safe.
func (v *Value[T]) Subscribe(cb func(T)) (cancel func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = cb
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}
