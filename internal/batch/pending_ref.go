package batch

import (
	"fmt"
	"sync"
)

// ErrUnresolved is returned when a forward reference is read before the op
// that assigns it ran, or after its batch failed.
type ErrUnresolved struct{ Name string }

func (e *ErrUnresolved) Error() string {
	return fmt.Sprintf("batch: reference %q is not resolved", e.Name)
}

// PendingRef is a value known only once its batch commits.
type PendingRef[T any] struct {
	name string

	mu       sync.RWMutex
	value    T
	assigned bool
	resolved bool
}

// Resolved wraps a value that is already known, so dependent stages can treat
// new and existing documents the same way.
func Resolved[T any](name string, v T) *PendingRef[T] {
	return &PendingRef[T]{name: name, value: v, assigned: true, resolved: true}
}

// Value returns the assigned value. Inside a commit it is readable by ops of
// a later phase than the one that assigned it.
func (r *PendingRef[T]) Value() (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.assigned {
		var zero T
		return zero, &ErrUnresolved{Name: r.name}
	}
	return r.value, nil
}

// Resolved reports whether the owning batch committed.
func (r *PendingRef[T]) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

func (r *PendingRef[T]) assign(v T) {
	r.mu.Lock()
	r.value = v
	r.assigned = true
	r.mu.Unlock()
}

func (r *PendingRef[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return
	}
	var zero T
	r.value = zero
	r.assigned = false
}

func (r *PendingRef[T]) resolve() {
	r.mu.Lock()
	if r.assigned {
		r.resolved = true
	}
	r.mu.Unlock()
}
