package queue

import (
	"sync"
)

// Queue is a generic thread-safe queue. A bounded queue evicts its oldest
// items once it holds more than its capacity.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

// New creates a new empty unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewBounded creates a queue holding at most capacity items.
func NewBounded[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends items to the queue and returns whatever was evicted to stay
// within capacity, oldest first.
func (q *Queue[T]) Push(items ...T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.capacity <= 0 || len(q.items) <= q.capacity {
		return nil
	}
	over := len(q.items) - q.capacity
	evicted := make([]T, over)
	copy(evicted, q.items[:over])
	q.items = append(q.items[:0], q.items[over:]...)
	return evicted
}

// Pop removes and returns the first item. Returns zero value if empty.
func (q *Queue[T]) Pop() T {
	item, _ := q.TryPop()
	return item
}

// TryPop removes and returns the first item, reporting whether one existed.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
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
	q.items = q.items[:0]
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// Items returns a copy of the queued items in order.
func (q *Queue[T]) Items() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Retain keeps only the items for which keep returns true, preserving order.
// It returns how many items were dropped.
func (q *Queue[T]) Retain(keep func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, it := range q.items {
		if keep(it) {
			kept = append(kept, it)
		}
	}
	dropped := len(q.items) - len(kept)
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	return dropped
}
