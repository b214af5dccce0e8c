// Package queue implements the bounded, drop-newest queues between the
// tasks of a connection: inbound audio frames and outbound messages.
package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by TryEnqueue when the item was dropped.
var ErrQueueFull = errors.New("queue full")

// Queue is a fixed-capacity FIFO. Enqueue never blocks; when the queue is at
// capacity the incoming (newest) item is dropped.
type Queue[T any] struct {
	items chan T
}

// New creates a queue holding at most capacity items. Capacity below 1 is
// treated as 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// TryEnqueue appends item or returns ErrQueueFull without blocking.
func (q *Queue[T]) TryEnqueue(item T) error {
	select {
	case q.items <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is done.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len is the current depth.
func (q *Queue[T]) Len() int { return len(q.items) }

// Cap is the configured capacity.
func (q *Queue[T]) Cap() int { return cap(q.items) }
