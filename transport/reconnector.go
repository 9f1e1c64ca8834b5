package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/metrics"
)

// Reconnector implements Transport on top of a Dialer. It is the connection
// state machine shared by the udp, tcp, kcp and memory transports: the
// Dialer only knows how to open an endpoint, the Reconnector decides when.
//
// State transitions:
// - Uninitialized -> Ready: the first Send dials with no delay
// - Ready -> Faulted: a write fails; the endpoint is closed, Failed returned
// - Faulted -> Ready: the next Send waits interval, then dials again
// - any -> closed: Close tears down the endpoint; every later Send is Canceled
//
// Reconnector never retries on its own; one Send is at most one connect and
// one write. Send is meant for a single goroutine. Close may run
// concurrently and unblocks a Send stuck in the interval wait or in a write.
//
// Example usage:
//
//	r := transport.NewReconnector("udp", dialer, 100*time.Millisecond)
//	switch out := r.Send(ctx, frame); out.Status {
//	case transport.StatusFailed:
//	    // retry later with the same frame
//	}
type Reconnector struct {
	name     string
	dialer   Dialer
	interval time.Duration
	logger   log.Logger

	state    atomic.Int32
	attempts atomic.Int64

	mu      sync.Mutex
	conn    io.WriteCloser
	closed  bool
	closeCh chan struct{}
}

// ReconnectorOption configures a Reconnector.
type ReconnectorOption func(*Reconnector)

// WithLogger sets the logger. The package default logger is used otherwise.
func WithLogger(l log.Logger) ReconnectorOption {
	return func(r *Reconnector) {
		r.logger = l
	}
}

// NewReconnector returns an Uninitialized transport named name that dials
// with d and waits interval between connect attempts.
func NewReconnector(name string, d Dialer, interval time.Duration, opts ...ReconnectorOption) *Reconnector {
	r := &Reconnector{
		name:     name,
		dialer:   d,
		interval: interval,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconnector) log() log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return log.Default()
}

// FactoryName implements plugin.Plugin.
func (r *Reconnector) FactoryName() string {
	return r.name
}

// State returns the current connection state.
func (r *Reconnector) State() State {
	return State(r.state.Load())
}

// ConnectAttempts returns the number of connect attempts made so far.
func (r *Reconnector) ConnectAttempts() int64 {
	return r.attempts.Load()
}

// Send writes frame, connecting first when not Ready.
func (r *Reconnector) Send(ctx context.Context, frame []byte) Outcome {
	if err := ctx.Err(); err != nil {
		return Canceled(err)
	}

	conn, closed := r.current()
	if closed {
		return Canceled(ErrClosed)
	}
	if r.State() != Ready || conn == nil {
		var out Outcome
		conn, out = r.connect(ctx)
		if conn == nil {
			return out
		}
	}

	// Cancellation interrupts a blocked write by closing the endpoint.
	stop := context.AfterFunc(ctx, func() {
		r.teardown(conn)
	})
	_, err := conn.Write(frame)
	interrupted := !stop()

	if err != nil {
		r.fault(conn, err)
		if cerr := r.cancelCause(ctx); cerr != nil {
			return Canceled(cerr)
		}
		return Failed(fmt.Errorf("send to %s: %w", r.dialer.Addr(), err))
	}
	if interrupted {
		r.state.CompareAndSwap(int32(Ready), int32(Faulted))
	}
	return Sent()
}

// Close closes the endpoint and makes every later Send return Canceled.
// Idempotent.
func (r *Reconnector) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.closeCh)
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	r.state.Store(int32(Faulted))
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (r *Reconnector) current() (io.WriteCloser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn, r.closed
}

func (r *Reconnector) cancelCause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-r.closeCh:
		return ErrClosed
	default:
		return nil
	}
}

// connect returns a live endpoint, or nil and the outcome to report.
func (r *Reconnector) connect(ctx context.Context) (io.WriteCloser, Outcome) {
	if r.attempts.Load() > 0 && r.interval > 0 {
		t := time.NewTimer(r.interval)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, Canceled(ctx.Err())
		case <-r.closeCh:
			t.Stop()
			return nil, Canceled(ErrClosed)
		}
	}
	r.attempts.Add(1)

	conn, err := r.dialer.Dial(ctx)
	if err != nil {
		r.countConnect(false)
		r.state.Store(int32(Faulted))
		if cerr := r.cancelCause(ctx); cerr != nil {
			return nil, Canceled(cerr)
		}
		r.log().Debug().Str("transport", r.name).Str("addr", r.dialer.Addr()).Err(err).Msg("connect failed")
		return nil, Failed(fmt.Errorf("connect to %s: %w", r.dialer.Addr(), err))
	}
	r.countConnect(true)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.closeQuietly(conn)
		return nil, Canceled(ErrClosed)
	}
	old := r.conn
	r.conn = conn
	r.mu.Unlock()
	if old != nil {
		r.closeQuietly(old)
	}

	r.state.Store(int32(Ready))
	r.log().Debug().Str("transport", r.name).Str("addr", r.dialer.Addr()).Msg("connected")
	return conn, Outcome{}
}

// fault tears down conn after a failed write.
func (r *Reconnector) fault(conn io.WriteCloser, err error) {
	r.state.Store(int32(Faulted))
	r.teardown(conn)
	r.log().Debug().Str("transport", r.name).Err(err).Msg("endpoint faulted")
}

// teardown closes conn if it is still the current endpoint.
func (r *Reconnector) teardown(conn io.WriteCloser) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.mu.Unlock()
	r.closeQuietly(conn)
}

func (r *Reconnector) closeQuietly(conn io.WriteCloser) {
	if err := conn.Close(); err != nil && !errors.Is(err, ErrClosed) {
		r.log().Debug().Str("transport", r.name).Err(err).Msg("close endpoint")
	}
}

func (r *Reconnector) countConnect(ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	metrics.IncrCounterWithDimGroup(metrics.NameTransportConnectTotal, metrics.GroupLogship, 1,
		metrics.Dimension{metrics.DimTransport: r.name, metrics.DimResult: result})
}
