package worker

import "sync"

// Queue is a mutex-guarded FIFO.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		pending: make([]T, 0),
	}
}

func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, item)
}

// Drain removes and returns up to max items from the head. max <= 0 drains everything.
func (q *Queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	if max <= 0 || max >= len(q.pending) {
		batch := append([]T(nil), q.pending...)
		q.pending = q.pending[:0]
		return batch
	}
	batch := append([]T(nil), q.pending[:max]...)
	q.pending = q.pending[max:]
	return batch
}

// Peek returns the head without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.pending) == 0 {
		return zero, false
	}
	return q.pending[0], true
}

// Pop removes the head.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.pending) == 0 {
		return zero, false
	}
	head := q.pending[0]
	q.pending[0] = zero
	q.pending = q.pending[1:]
	return head, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
