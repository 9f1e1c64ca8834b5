package shipper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linchenxuan/logship/log"
	"github.com/linchenxuan/logship/metrics"
	"github.com/linchenxuan/logship/transport"
	"github.com/linchenxuan/logship/transport/memory"
	"github.com/linchenxuan/logship/wire"
)

const _interval = 20 * time.Millisecond

func quietLogger() log.Logger {
	return log.NewLogger(&log.LogCfg{LogLevel: log.FatalLevel})
}

func newTestShipper(t *testing.T, mutate func(*Config), opts ...Option) (*Shipper, *memory.Sink) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	sink := memory.NewSink(0)
	tr := memory.NewWithSink(sink, _interval)
	s, err := New(cfg, tr, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sink
}

// outcomes collects Done results.
type outcomes struct {
	mu   sync.Mutex
	errs map[string][]error
}

func newOutcomes() *outcomes {
	return &outcomes{errs: map[string][]error{}}
}

func (o *outcomes) event(text string) Event {
	return Event{Text: text, Done: func(err error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.errs[text] = append(o.errs[text], err)
	}}
}

func (o *outcomes) get(text string) []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs[text]...)
}

func TestDeliversInOrder(t *testing.T) {
	s, sink := newTestShipper(t, nil)

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Log(text))
	}
	assert.Eventually(t, func() bool { return len(sink.Frames()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, sink.Payloads())
}

func TestFrameLayout(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 10000, time.UTC)
	s, sink := newTestShipper(t, func(c *Config) {
		c.Header = wire.Header{Priority: 220, Version: 1, Hostname: "mymachine", AppName: "appName", ProcID: "123", MsgID: "89"}
	}, WithNow(func() time.Time { return now }))

	require.NoError(t, s.Log("hello"))
	assert.Eventually(t, func() bool { return len(sink.Frames()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "<220>1 2024-05-06T07:08:09.000010+00:00 mymachine appName 123 89 \xEF\xBB\xBFhello",
		string(sink.Frames()[0]))
}

func TestRetryUntilSuccess(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	const failures = 3
	sink.FailNext(failures)
	o := newOutcomes()

	require.NoError(t, s.LogEvent(o.event("x")))
	assert.Eventually(t, func() bool { return len(o.get("x")) == 1 }, 2*time.Second, time.Millisecond)

	assert.NoError(t, o.get("x")[0])
	assert.Equal(t, failures+1, sink.Attempts())
	assert.Equal(t, []string{"x"}, sink.Payloads())

	times := sink.AttemptTimes()
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), _interval)
	}

	frames := sink.Frames()
	require.Len(t, frames, 1)
}

func TestRetrySendsSameBytes(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	now := func() time.Time {
		return clock.Add(time.Duration(calls.Add(1)) * time.Second)
	}

	var mu sync.Mutex
	var seen [][]byte
	tr := &funcTransport{send: func(ctx context.Context, frame []byte) transport.Outcome {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, append([]byte(nil), frame...))
		if len(seen) < 3 {
			return transport.Failed(errors.New("boom"))
		}
		return transport.Sent()
	}}
	s, err := New(DefaultConfig(), tr, WithLogger(quietLogger()), WithNow(now))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Log("x"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], seen[2])
	assert.EqualValues(t, 1, calls.Load())
}

func TestUnreachableRetriesOnCadence(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	sink.FailDials(1 << 30)
	o := newOutcomes()

	require.NoError(t, s.LogEvent(o.event("x")))
	time.Sleep(10 * _interval)

	dials := sink.Dials()
	assert.GreaterOrEqual(t, dials, 4)
	assert.LessOrEqual(t, dials, 11)
	assert.Empty(t, o.get("x"), "event must be neither delivered nor dropped")

	require.NoError(t, s.Close())
	errs := o.get("x")
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestCloseDuringInFlightSend(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	sink.Hold()
	defer sink.Release()
	o := newOutcomes()

	require.NoError(t, s.LogEvent(o.event("a")))
	assert.Eventually(t, func() bool { return sink.Attempts() == 1 }, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close blocked on the in-flight send")
	}

	assert.ErrorIs(t, s.Log("b"), ErrClosed)
	sink.Release()
	time.Sleep(2 * _interval)
	assert.Empty(t, sink.Frames())
	assert.Equal(t, 1, sink.Attempts())

	errs := o.get("a")
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])
}

func TestCloseIdempotent(t *testing.T) {
	s, _ := newTestShipper(t, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	select {
	case <-s.Done():
	default:
		t.Fatal("dispatch goroutine still running")
	}
	assert.ErrorIs(t, s.Log("late"), ErrClosed)
}

func TestCloseReportsQueuedEvents(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	sink.Hold()
	defer sink.Release()
	o := newOutcomes()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.LogEvent(o.event(text)))
	}
	assert.Eventually(t, func() bool { return sink.Attempts() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Close())

	for _, text := range []string{"b", "c"} {
		errs := o.get(text)
		require.Len(t, errs, 1, text)
		assert.ErrorIs(t, errs[0], ErrClosed)
	}
	assert.Equal(t, 0, s.Len())
}

func TestQueueFull(t *testing.T) {
	s, sink := newTestShipper(t, func(c *Config) {
		c.QueueCapacity = 1
		c.EnqueueTimeoutMs = 20
	})
	sink.Hold()
	defer sink.Release()
	o := newOutcomes()

	require.NoError(t, s.Log("inflight"))
	assert.Eventually(t, func() bool { return sink.Attempts() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Log("queued"))

	start := time.Now()
	err := s.LogEvent(o.event("rejected"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []error{ErrQueueFull}, o.get("rejected"))
}

func TestDropOnFull(t *testing.T) {
	s, sink := newTestShipper(t, func(c *Config) {
		c.QueueCapacity = 1
		c.EnqueueTimeoutMs = 0
		c.DropOnFull = true
	})
	sink.Hold()
	defer sink.Release()
	o := newOutcomes()

	require.NoError(t, s.Log("inflight"))
	assert.Eventually(t, func() bool { return sink.Attempts() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Log("queued"))

	assert.NoError(t, s.LogEvent(o.event("dropped")))
	assert.Equal(t, []error{ErrQueueFull}, o.get("dropped"))
}

func TestMaxSendAttempts(t *testing.T) {
	s, sink := newTestShipper(t, func(c *Config) {
		c.MaxSendAttempts = 2
	})
	sink.FailNext(2)
	o := newOutcomes()

	require.NoError(t, s.LogEvent(o.event("a")))
	require.NoError(t, s.LogEvent(o.event("b")))
	assert.Eventually(t, func() bool { return len(o.get("b")) == 1 }, 2*time.Second, time.Millisecond)

	errs := o.get("a")
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrDropped)
	assert.ErrorIs(t, errs[0], memory.ErrInjected)
	assert.NoError(t, o.get("b")[0])
	assert.Equal(t, []string{"b"}, sink.Payloads())
}

type funcTransport struct {
	send   func(ctx context.Context, frame []byte) transport.Outcome
	closed atomic.Bool
}

func (f *funcTransport) Send(ctx context.Context, frame []byte) transport.Outcome {
	if ctx.Err() != nil {
		return transport.Canceled(ctx.Err())
	}
	return f.send(ctx, frame)
}

func (f *funcTransport) State() transport.State { return transport.Ready }
func (f *funcTransport) FactoryName() string    { return "func" }
func (f *funcTransport) Close() error {
	f.closed.Store(true)
	return nil
}

type restartCounter struct {
	n atomic.Int64
}

func (r *restartCounter) Report(rc metrics.Record) {
	if rc.Metrics().Name() == metrics.NameSupervisorRestartTotal {
		r.n.Add(1)
	}
}

func TestSupervisorRestartsAfterPanic(t *testing.T) {
	rc := &restartCounter{}
	metrics.SetMetricsReporters([]metrics.Reporter{rc})
	defer metrics.SetMetricsReporters(nil)

	var sent atomic.Int64
	tr := &funcTransport{send: func(_ context.Context, frame []byte) transport.Outcome {
		if p, _ := wire.Payload(frame); string(p) == "poison" {
			panic("bad frame")
		}
		sent.Add(1)
		return transport.Sent()
	}}
	s, err := New(DefaultConfig(), tr, WithLogger(quietLogger()))
	require.NoError(t, err)
	o := newOutcomes()

	require.NoError(t, s.LogEvent(o.event("poison")))
	require.NoError(t, s.LogEvent(o.event("ok")))
	assert.Eventually(t, func() bool { return len(o.get("ok")) == 1 }, 2*time.Second, time.Millisecond)

	poison := o.get("poison")
	require.Len(t, poison, 1)
	assert.Contains(t, poison[0].Error(), "bad frame")
	assert.NoError(t, o.get("ok")[0])
	assert.EqualValues(t, 1, sent.Load())
	assert.EqualValues(t, 1, rc.n.Load())

	require.NoError(t, s.Close())
	assert.True(t, tr.closed.Load())
}

func TestSendLimiter(t *testing.T) {
	for _, mode := range []string{RateLimitToken, RateLimitLeaky} {
		t.Run(mode, func(t *testing.T) {
			s, sink := newTestShipper(t, func(c *Config) {
				c.SendRateLimit = 20
				c.SendRateBurst = 1
				c.RateLimitMode = mode
			})

			start := time.Now()
			for i := 0; i < 5; i++ {
				require.NoError(t, s.Log("x"))
			}
			assert.Eventually(t, func() bool { return len(sink.Frames()) == 5 }, 2*time.Second, time.Millisecond)
			assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
		})
	}
}

func TestNewSendLimiterDisabled(t *testing.T) {
	l := NewSendLimiter(RateLimitToken, 0, 0)
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
	assert.Error(t, NewSendLimiter(RateLimitLeaky, 10, 1).Wait(ctx))
}

func TestAppender(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	logger := log.NewLogger(&log.LogCfg{LogLevel: log.InfoLevel})
	logger.AddAppender(NewAppender(s))

	logger.Info().Str("k", "v").Msg("shipped")
	assert.Eventually(t, func() bool { return len(sink.Frames()) == 1 }, time.Second, time.Millisecond)

	payload := sink.Payloads()[0]
	assert.True(t, strings.HasPrefix(payload, "{"), payload)
	assert.Contains(t, payload, `"k":"v"`)
	assert.Contains(t, payload, "shipped")
	assert.False(t, strings.HasSuffix(payload, "\n"))

	require.NoError(t, s.Close())
	n, err := NewAppender(s).Write([]byte("late\n"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, n)
}

func TestConcurrentProducers(t *testing.T) {
	s, sink := newTestShipper(t, nil)
	const producers, per = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				assert.NoError(t, s.Log("m"))
			}
		}()
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return len(sink.Frames()) == producers*per }, 2*time.Second, time.Millisecond)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.EnqueueTimeout())

	for name, mutate := range map[string]func(*Config){
		"queue":     func(c *Config) { c.QueueCapacity = -1 },
		"timeout":   func(c *Config) { c.EnqueueTimeoutMs = -1 },
		"attempts":  func(c *Config) { c.MaxSendAttempts = -1 },
		"rate":      func(c *Config) { c.SendRateLimit = -1 },
		"mode":      func(c *Config) { c.SendRateLimit = 1; c.RateLimitMode = "bogus" },
		"leakyFrac": func(c *Config) { c.SendRateLimit = 1.5; c.RateLimitMode = RateLimitLeaky },
		"leakyLow":  func(c *Config) { c.SendRateLimit = 0.5; c.RateLimitMode = RateLimitLeaky },
		"header":    func(c *Config) { c.Header.Version = 0 },
	} {
		c := DefaultConfig()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}

	leaky := DefaultConfig()
	leaky.SendRateLimit = 200
	leaky.RateLimitMode = RateLimitLeaky
	assert.NoError(t, leaky.Validate())

	token := DefaultConfig()
	token.SendRateLimit = 0.5
	assert.NoError(t, token.Validate())

	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestIDUnique(t *testing.T) {
	a, _ := newTestShipper(t, nil)
	b, _ := newTestShipper(t, nil)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 36)
}


func TestPanickingCallbackCompletedOnce(t *testing.T) {
	s, sink := newTestShipper(t, nil)

	var calls atomic.Int64
	require.NoError(t, s.LogEvent(Event{Text: "first", Done: func(error) {
		calls.Add(1)
		panic("callback bug")
	}}))
	o := newOutcomes()
	require.NoError(t, s.LogEvent(o.event("second")))

	assert.Eventually(t, func() bool { return len(o.get("second")) == 1 }, 2*time.Second, time.Millisecond)
	assert.NoError(t, o.get("second")[0])
	assert.Equal(t, []string{"first", "second"}, sink.Payloads())
	assert.EqualValues(t, 1, calls.Load())

	require.NoError(t, s.Close())
	assert.EqualValues(t, 1, calls.Load())
}

func TestPanickingCallbackAfterDispatchPanic(t *testing.T) {
	var calls atomic.Int64
	tr := &funcTransport{send: func(_ context.Context, frame []byte) transport.Outcome {
		if p, _ := wire.Payload(frame); string(p) == "poison" {
			panic("bad frame")
		}
		return transport.Sent()
	}}
	s, err := New(DefaultConfig(), tr, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer s.Close()
	o := newOutcomes()

	require.NoError(t, s.LogEvent(Event{Text: "poison", Done: func(error) {
		calls.Add(1)
		panic("callback bug")
	}}))
	require.NoError(t, s.LogEvent(o.event("ok")))

	assert.Eventually(t, func() bool { return len(o.get("ok")) == 1 }, 2*time.Second, time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
	select {
	case <-s.Done():
		t.Fatal("dispatch goroutine exited")
	default:
	}
}

func TestPanickingCallbackOnQueueFull(t *testing.T) {
	s, sink := newTestShipper(t, func(c *Config) {
		c.QueueCapacity = 1
		c.EnqueueTimeoutMs = 0
	})
	sink.Hold()
	defer sink.Release()

	require.NoError(t, s.Log("in flight"))
	assert.Eventually(t, func() bool { return sink.Attempts() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, s.Log("queued"))

	var calls atomic.Int64
	err := s.LogEvent(Event{Text: "rejected", Done: func(error) {
		calls.Add(1)
		panic("callback bug")
	}})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCloseStartedFromCallback(t *testing.T) {
	s, sink := newTestShipper(t, nil)

	closed := make(chan error, 1)
	require.NoError(t, s.LogEvent(Event{Text: "last", Done: func(error) {
		go func() { closed <- s.Close() }()
	}}))

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close started from Done did not return")
	}
	<-s.Done()
	assert.Equal(t, []string{"last"}, sink.Payloads())
	assert.ErrorIs(t, s.Log("after"), ErrClosed)
}
