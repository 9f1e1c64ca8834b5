package queue

import (
	"context"
	"sync"
	"time"
)

// Bounded is a fixed-capacity queue on a buffered channel. The channel is
// never closed; done signals shutdown instead so late producers cannot panic.
type Bounded[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewBounded returns a queue holding at most capacity values.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

func (q *Bounded[T]) Enqueue(ctx context.Context, v T, timeout time.Duration) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	if ctx.Err() != nil {
		return canceled(ctx)
	}

	select {
	case q.ch <- v:
		return nil
	default:
	}
	if timeout <= 0 {
		return ErrQueueFull
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case q.ch <- v:
		return nil
	case <-t.C:
		return ErrQueueFull
	case <-ctx.Done():
		return canceled(ctx)
	case <-q.done:
		return ErrClosed
	}
}

func (q *Bounded[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-q.done:
		return zero, ErrCanceled
	case <-ctx.Done():
		return zero, canceled(ctx)
	default:
	}

	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return zero, canceled(ctx)
	case <-q.done:
		return zero, ErrCanceled
	}
}

func (q *Bounded[T]) Len() int {
	return len(q.ch)
}

func (q *Bounded[T]) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

func (q *Bounded[T]) Drain() []T {
	var res []T
	for {
		select {
		case v := <-q.ch:
			res = append(res, v)
		default:
			return res
		}
	}
}
