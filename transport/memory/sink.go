// Package memory is an in-process transport that records frames instead of
// sending them. It can inject connect and write failures and hold writes, so
// the pipeline's retry and shutdown behaviour can be observed without a
// network.
package memory

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/linchenxuan/logship/wire"
)

var (
	// ErrInjected is returned by writes and dials failed on purpose.
	ErrInjected = errors.New("memory: injected failure")
	// ErrConnClosed is returned by writes on a closed connection.
	ErrConnClosed = errors.New("memory: connection closed")
)

// Sink collects frames. It implements transport.Dialer; every Dial returns a
// new connection writing into the same sink.
type Sink struct {
	mu           sync.Mutex
	frames       [][]byte
	maxFrames    int
	failWrites   int
	failDials    int
	dials        int
	attemptTimes []time.Time
	held         chan struct{}
	onFrame      func([]byte)
}

// NewSink returns a sink keeping at most maxFrames frames, oldest dropped
// first. maxFrames <= 0 keeps everything.
func NewSink(maxFrames int) *Sink {
	return &Sink{maxFrames: maxFrames}
}

// FailNext makes the next n writes fail with ErrInjected.
func (s *Sink) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = n
}

// FailDials makes the next n dials fail with ErrInjected.
func (s *Sink) FailDials(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDials = n
}

// Hold blocks every write until Release or until the connection is closed.
func (s *Sink) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(chan struct{})
	}
}

// Release unblocks writes held by Hold.
func (s *Sink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		close(s.held)
		s.held = nil
	}
}

// OnFrame registers fn to be called with every recorded frame.
func (s *Sink) OnFrame(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = fn
}

// Frames returns copies of the recorded frames in send order.
func (s *Sink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		res[i] = append([]byte(nil), f...)
	}
	return res
}

// Payloads returns the message text of every recorded frame.
func (s *Sink) Payloads() []string {
	frames := s.Frames()
	res := make([]string, 0, len(frames))
	for _, f := range frames {
		if p, ok := wire.Payload(f); ok {
			res = append(res, string(p))
		} else {
			res = append(res, string(f))
		}
	}
	return res
}

// Attempts returns the number of writes tried, failed ones included.
func (s *Sink) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attemptTimes)
}

// AttemptTimes returns when each write was tried.
func (s *Sink) AttemptTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.attemptTimes...)
}

// Dials returns the number of dials, failed ones included.
func (s *Sink) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *Sink) Dial(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.failDials > 0 {
		s.failDials--
		return nil, ErrInjected
	}
	return &conn{sink: s, closed: make(chan struct{})}, nil
}

func (s *Sink) Addr() string {
	return "memory"
}

// beginWrite records the attempt and returns the hold channel, if any, or
// the injected error.
func (s *Sink) beginWrite() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptTimes = append(s.attemptTimes, time.Now())
	if s.failWrites > 0 {
		s.failWrites--
		return nil, ErrInjected
	}
	return s.held, nil
}

func (s *Sink) record(p []byte) {
	frame := append([]byte(nil), p...)
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	if s.maxFrames > 0 && len(s.frames) > s.maxFrames {
		s.frames = append(s.frames[:0], s.frames[len(s.frames)-s.maxFrames:]...)
	}
	fn := s.onFrame
	s.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

type conn struct {
	sink      *Sink
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *conn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrConnClosed
	default:
	}

	held, err := c.sink.beginWrite()
	if err != nil {
		return 0, err
	}
	if held != nil {
		select {
		case <-held:
		case <-c.closed:
			return 0, ErrConnClosed
		}
	}

	c.sink.record(p)
	return len(p), nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}
