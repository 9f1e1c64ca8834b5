// Package queue hands events from any number of producers to a single
// consumer in FIFO order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQueueFull is returned when an enqueue could not complete within its timeout.
	ErrQueueFull = errors.New("queue full")
	// ErrCanceled is returned when the waiting context ended or the queue was
	// closed under a consumer.
	ErrCanceled = errors.New("queue wait canceled")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("queue closed")
)

// Queue is a FIFO of T shared by any number of producers and one consumer.
//
// Two implementations are provided:
// - Bounded: a buffered channel. A full queue makes Enqueue wait up to its
//   timeout and then fail with ErrQueueFull
// - Unbounded: a growable slice. Enqueue never waits and never fails for
//   lack of room
//
// Both share the shutdown contract: after Close, Enqueue returns ErrClosed,
// Dequeue returns ErrCanceled, and Drain hands back whatever is still
// queued so the owner can report it. Every wait also observes ctx.
type Queue[T any] interface {
	// Enqueue adds v, waiting at most timeout for room. A zero timeout fails
	// immediately when there is no room.
	Enqueue(ctx context.Context, v T, timeout time.Duration) error
	// Dequeue blocks until a value is available or ctx is done.
	Dequeue(ctx context.Context) (T, error)
	// Len returns the number of queued values.
	Len() int
	// Close rejects further enqueues and wakes blocked callers. Idempotent.
	Close()
	// Drain removes and returns every queued value.
	Drain() []T
}

// New returns a Bounded queue for capacity > 0 and an Unbounded one otherwise.
func New[T any](capacity int) Queue[T] {
	if capacity > 0 {
		return NewBounded[T](capacity)
	}
	return NewUnbounded[T]()
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
}
