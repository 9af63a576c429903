package master

import "sync"

// Queue is an unbounded FIFO shared by one producer and one consumer goroutine.
type Queue[T any] struct {
	mu      sync.Mutex
	pending []T
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{pending: make([]T, 0)}
}

func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, v)
}

// Drain removes up to max items in FIFO order; max <= 0 takes everything.
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

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
