// Package transport delivers framed messages to the collector. Network
// transports share the Reconnector state machine: connect lazily, tear down
// on any failure and reconnect on the next send.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrClosed is the reason carried by Canceled outcomes after Close.
var ErrClosed = errors.New("transport closed")

// Status is the kind of a send Outcome.
type Status int

const (
	// StatusSent means the frame was handed to the endpoint.
	StatusSent Status = iota
	// StatusCanceled means the send was abandoned because the context ended
	// or the transport was closed.
	StatusCanceled
	// StatusFailed means connecting or writing failed; the caller may retry.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusCanceled:
		return "canceled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one send attempt. Expected failures travel here
// rather than as panics.
type Outcome struct {
	Status Status
	Err    error
}

// Sent returns a successful outcome.
func Sent() Outcome {
	return Outcome{Status: StatusSent}
}

// Canceled returns a canceled outcome with its cause.
func Canceled(err error) Outcome {
	return Outcome{Status: StatusCanceled, Err: err}
}

// Failed returns a failed outcome with its reason.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

func (o Outcome) String() string {
	if o.Err == nil {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Err.Error()
}

// State is the connection state of a transport.
type State int32

const (
	// Uninitialized: never connected.
	Uninitialized State = iota
	// Ready: connected, the next send writes directly.
	Ready
	// Faulted: the last connect or send failed, the next send reconnects.
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Transport sends one frame per call. Send is called from a single goroutine;
// Close may be called concurrently and interrupts an in-flight Send.
type Transport interface {
	Send(ctx context.Context, frame []byte) Outcome
	State() State
	Close() error
	// FactoryName names the implementation (udp, tcp, kcp, memory).
	FactoryName() string
}

// Dialer opens the endpoint a Reconnector writes to. Each Write on the
// returned writer carries exactly one frame.
type Dialer interface {
	Dial(ctx context.Context) (io.WriteCloser, error)
	// Addr describes the destination for logs.
	Addr() string
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (io.WriteCloser, error)

func (f DialerFunc) Dial(ctx context.Context) (io.WriteCloser, error) {
	return f(ctx)
}

func (f DialerFunc) Addr() string {
	return "func"
}
