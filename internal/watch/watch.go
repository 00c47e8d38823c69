// Package watch provides a single-slot, multi-reader broadcast channel that
// conflates updates: a reader always observes the most recently published
// value and silently skips anything it was too slow to see. It is the only
// cross-task communication path in the core; there is no queueing and no
// backpressure.
package watch

import (
	"context"
	"sync"
)

// Watch holds the latest value published by a single writer. Any number of
// readers may call Latest or Subscribe. The zero value is not usable; create
// instances with New.
type Watch[T any] struct {
	mu      sync.Mutex
	val     T
	ok      bool
	version uint64
	changed chan struct{}
}

// New creates an empty Watch. Latest reports no value until the first
// Publish.
func New[T any]() *Watch[T] {
	return &Watch[T]{changed: make(chan struct{})}
}

// Publish overwrites the stored value unconditionally and wakes every blocked
// subscriber. Only one goroutine may publish to a given Watch.
func (w *Watch[T]) Publish(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.val = v
	w.ok = true
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// Latest returns the most recently published value, if any. It never blocks
// and does not advance any subscriber cursor.
func (w *Watch[T]) Latest() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.val, w.ok
}

// Subscribe returns a new subscriber whose cursor has observed nothing yet:
// if a value was already published, its first AwaitChange returns
// immediately.
func (w *Watch[T]) Subscribe() *Subscriber[T] {
	return &Subscriber[T]{w: w}
}

// Subscriber is a reader with an independent cursor recording the last
// version it observed. A Subscriber must not be shared between goroutines.
type Subscriber[T any] struct {
	w    *Watch[T]
	seen uint64
}

// AwaitChange blocks until the stored version differs from the subscriber's
// cursor, marks it observed, and returns the current value. Intermediate
// values published while the subscriber was away are never delivered.
func (s *Subscriber[T]) AwaitChange(ctx context.Context) (T, error) {
	for {
		s.w.mu.Lock()
		if s.w.version != s.seen {
			s.seen = s.w.version
			v := s.w.val
			s.w.mu.Unlock()
			return v, nil
		}
		ch := s.w.changed
		s.w.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ch:
		}
	}
}
