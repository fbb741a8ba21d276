package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO that coalesces pending duplicates: pushing a
// value that is already waiting is a no-op.
type Queue[T comparable] struct {
	mu      sync.Mutex
	items   []T
	pending map[T]struct{}
}

// New creates a new empty queue.
func New[T comparable]() *Queue[T] {
	return &Queue[T]{
		pending: make(map[T]struct{}),
	}
}

// Push appends items that are not already queued.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		if _, ok := q.pending[it]; ok {
			continue
		}
		q.pending[it] = struct{}{}
		q.items = append(q.items, it)
	}
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	clear(q.pending)
}

// GetAndEmpty returns all items in push order and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = nil
	clear(q.pending)
	return result
}
