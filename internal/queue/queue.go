// Package queue holds rows waiting for the next database write.
package queue

import "sync"

// Queue is a thread-safe FIFO drained in batches.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Requeue puts a batch that failed to write back at the head, ahead of
// anything pushed since it was drained.
func (q *Queue[T]) Requeue(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
}

// Drain removes and returns up to n items from the head. n <= 0 takes
// everything.
func (q *Queue[T]) Drain(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	if n <= 0 || n >= len(q.items) {
		out := q.items
		q.items = nil
		return out
	}
	out := make([]T, n)
	copy(out, q.items)
	q.items = q.items[n:]
	return out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) Empty() bool { return q.Len() == 0 }
