// Package shipper ships log events to a collector without blocking the
// goroutines that produce them. Events are queued, framed by one dispatch
// goroutine and sent through a transport, retrying failed sends until they
// succeed or the shipper is closed.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/metrics"
	"github.com/linchenxuan/logship/queue"
	"github.com/linchenxuan/logship/transport"
	"github.com/linchenxuan/logship/wire"
)

var (
	// ErrClosed is returned by Log after Close, and passed to the Done
	// callback of events still queued when the shipper closed.
	ErrClosed = errors.New("shipper closed")
	// ErrDropped is passed to Done when an event used up MaxSendAttempts.
	ErrDropped = errors.New("event dropped")
	// ErrQueueFull is returned by Log when the queue stayed full for the
	// whole enqueue timeout.
	ErrQueueFull = queue.ErrQueueFull
)

// _restartDelay keeps a dispatch loop that panics on every event from spinning.
const _restartDelay = 100 * time.Millisecond

// Event is one log message.
type Event struct {
	Text string
	// Done, if set, is called exactly once with the fate of the event: nil
	// after it was sent, otherwise why it was not. It runs on the dispatch
	// goroutine or in Log/Close and must not block. It must not call Close
	// on the same shipper: Close waits for the dispatch goroutine, which
	// would be waiting on Done. Start Close on a new goroutine instead.
	// A panic in Done is logged and swallowed.
	Done func(error)
}

func (e *Event) finish(err error) {
	if e.Done != nil {
		e.Done(err)
	}
}

// notify calls ev.Done, recovering and logging a panic in the callback.
func (s *Shipper) notify(ev *Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log().Error().Str("shipper", s.id).Str("event", ev.Text).
				Any("panic", r).Msg("event callback panicked")
		}
	}()
	ev.finish(err)
}

// Option configures a Shipper.
type Option func(*Shipper)

// WithLogger sets the logger for the shipper's own diagnostics. It must not
// write back into the same shipper.
func WithLogger(l log.Logger) Option {
	return func(s *Shipper) {
		s.logger = l
	}
}

// WithNow sets the clock used for frame timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Shipper) {
		s.now = now
	}
}

// WithLimiter overrides the limiter built from the config.
func WithLimiter(l SendLimiter) Option {
	return func(s *Shipper) {
		s.limiter = l
	}
}

// Shipper moves log events from any number of producer goroutines to a
// remote collector without making producers wait on the network. It owns
// the event queue, the single dispatch goroutine that frames and sends
// events, and the transport it sends through.
//
// Key behaviour:
// - Log never performs I/O; it waits at most the enqueue timeout when a
//   bounded queue is full
// - Events leave in the order they were queued, one frame in flight at a time
// - A failed send is retried with the same bytes until it succeeds, the
//   shipper closes, or MaxSendAttempts is used up
// - A panic in the dispatch loop is recovered and the loop restarted
// - Close is idempotent and interrupts an in-flight send; queued events are
//   reported lost rather than sent
//
// Example usage:
//
//	tr, _ := udp.New(udp.DefaultCfg())
//	s, err := shipper.New(shipper.DefaultConfig(), tr)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	_ = s.Log("service started")
type Shipper struct {
	id       string
	cfg      *Config
	tr       transport.Transport
	q        queue.Queue[Event]
	builder  *wire.Builder
	buf      *wire.Buffer
	limiter  SendLimiter
	logger   log.Logger
	now      func() time.Time
	dims     metrics.Dimension
	sendDims metrics.Dimension

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// enqueueMu orders Log against Close so nothing is enqueued after the
	// final drain.
	enqueueMu sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// inflight is the event being delivered. Dispatch goroutine only.
	inflight *Event
}

// New starts a shipper sending through tr. The shipper owns tr and closes it
// on Close.
func New(cfg *Config, tr transport.Transport, opts ...Option) (*Shipper, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shipper config: %w", err)
	}
	if tr == nil {
		return nil, errors.New("shipper needs a transport")
	}

	s := &Shipper{
		id:   uuid.NewString(),
		cfg:  cfg,
		tr:   tr,
		q:    queue.New[Event](cfg.QueueCapacity),
		buf:  wire.NewBuffer(cfg.BufferSize),
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = NewSendLimiter(cfg.RateLimitMode, cfg.SendRateLimit, cfg.SendRateBurst)
	}
	s.builder = wire.NewBuilder(cfg.Header, wire.WithNow(s.now))
	s.dims = metrics.Dimension{metrics.DimShipper: s.id}
	s.sendDims = metrics.Dimension{metrics.DimShipper: s.id, metrics.DimTransport: tr.FactoryName()}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.supervise()

	s.log().Info().Str("shipper", s.id).Str("transport", tr.FactoryName()).
		Int("queueCapacity", cfg.QueueCapacity).Msg("shipper started")
	return s, nil
}

func (s *Shipper) log() log.Logger {
	if s.logger != nil {
		return s.logger
	}
	return log.Default()
}

// ID returns the shipper's instance id.
func (s *Shipper) ID() string {
	return s.id
}

// Len returns the number of queued events.
func (s *Shipper) Len() int {
	return s.q.Len()
}

// Log queues text for delivery.
func (s *Shipper) Log(text string) error {
	return s.LogEvent(Event{Text: text})
}

// LogEvent queues ev, waiting at most the enqueue timeout for room. After
// Close it returns ErrClosed without calling ev.Done. A full queue calls
// ev.Done with ErrQueueFull and returns it unless DropOnFull is set.
func (s *Shipper) LogEvent(ev Event) error {
	s.enqueueMu.RLock()
	defer s.enqueueMu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.q.Enqueue(s.ctx, ev, s.cfg.EnqueueTimeout())
	switch {
	case err == nil:
		metrics.IncrCounterWithDimGroup(metrics.NameEnqueueTotal, metrics.GroupLogship, 1, s.dims)
		return nil
	case errors.Is(err, queue.ErrQueueFull):
		metrics.IncrCounterWithDimGroup(metrics.NameEnqueueRejectedTotal, metrics.GroupLogship, 1, s.dims)
		s.notify(&ev, err)
		if s.cfg.DropOnFull {
			return nil
		}
		return err
	default:
		return ErrClosed
	}
}

// Close stops the shipper. It cancels the dispatch loop, waits for it to
// return (at most one in-flight send, which cancellation interrupts) and
// closes the transport. Queued events are not sent; their Done callbacks get
// ErrClosed. Close is idempotent and returns the transport's close error.
func (s *Shipper) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.q.Close()

		// wait out producers that passed the closed check
		s.enqueueMu.Lock()
		s.enqueueMu.Unlock() //nolint:staticcheck

		<-s.done
		s.closeErr = s.tr.Close()

		lost := s.q.Drain()
		for i := range lost {
			s.notify(&lost[i], ErrClosed)
		}
		if len(lost) > 0 {
			metrics.IncrCounterWithDimGroup(metrics.NameLostTotal, metrics.GroupLogship, metrics.Value(len(lost)), s.dims)
		}
		s.log().Info().Str("shipper", s.id).Int("lost", len(lost)).Msg("shipper closed")
	})
	return s.closeErr
}

// Done is closed once the dispatch goroutine has exited.
func (s *Shipper) Done() <-chan struct{} {
	return s.done
}
