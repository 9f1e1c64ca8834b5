package queue

import (
	"context"
	"sync"
	"time"
)

// Unbounded never rejects for lack of room; Enqueue does not block.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	notify chan struct{}
	done   chan struct{}
	closed bool
}

// NewUnbounded returns an empty unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends v. timeout is ignored.
func (q *Unbounded[T]) Enqueue(ctx context.Context, v T, _ time.Duration) error {
	if ctx.Err() != nil {
		return canceled(ctx)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *Unbounded[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		if ctx.Err() != nil {
			return zero, canceled(ctx)
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrCanceled
		}
		if v, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, canceled(ctx)
		case <-q.done:
			return zero, ErrCanceled
		}
	}
}

func (q *Unbounded[T]) popLocked() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	// compact once the consumed prefix dominates
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Unbounded[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	var res []T
	for {
		v, ok := q.popLocked()
		if !ok {
			return res
		}
		res = append(res, v)
	}
}
