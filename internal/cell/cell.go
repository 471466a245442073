// Package cell provides a mutex-guarded holder for a single value.
package cell

import "sync"

// Cell serializes every read and mutation of the value it holds.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	clone func(T) T
}

// New creates a Cell holding value. Load returns clone(value) when clone is
// non-nil, so reference types can hand out snapshots instead of aliases.
func New[T any](value T, clone func(T) T) *Cell[T] {
	return &Cell[T]{value: value, clone: clone}
}

// Load returns a snapshot of the held value.
func (c *Cell[T]) Load() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clone != nil {
		return c.clone(c.value)
	}
	return c.value
}

// View calls fn with the held value while holding the lock. fn must not
// retain the value or mutate it.
func (c *Cell[T]) View(fn func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.value)
}

// Mutate calls fn with a pointer to the held value while holding the lock.
// The transformation is atomic with respect to all other Cell operations.
func (c *Cell[T]) Mutate(fn func(*T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.value)
}
