package shipper

import (
	"errors"
	"fmt"
	"time"

	"github.com/linchenxuan/logship/metrics"
	"github.com/linchenxuan/logship/queue"
	"github.com/linchenxuan/logship/transport"
)

// supervise runs the dispatch loop until the shipper is closed, restarting
// it after a panic or an unexpected error.
func (s *Shipper) supervise() {
	defer close(s.done)
	for {
		err := s.runSafe()
		if s.ctx.Err() != nil || errors.Is(err, queue.ErrCanceled) {
			return
		}

		metrics.IncrCounterWithDimGroup(metrics.NameSupervisorRestartTotal, metrics.GroupLogship, 1, s.dims)
		s.log().Error().Str("shipper", s.id).Err(err).Msg("dispatch loop failed, restarting")

		t := time.NewTimer(_restartDelay)
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			return
		}
	}
}

// runSafe runs the loop and turns a panic into an error. The event being
// delivered when the panic happened is reported failed, not retried.
func (s *Shipper) runSafe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
			if ev := s.inflight; ev != nil {
				s.complete(ev, err)
			}
		}
	}()
	return s.run()
}

func (s *Shipper) run() error {
	for {
		ev, err := s.q.Dequeue(s.ctx)
		if err != nil {
			return err
		}
		metrics.UpdateGaugeWithDimGroup(metrics.NameQueueLength, metrics.GroupLogship, metrics.Value(s.q.Len()), s.dims)

		s.inflight = &ev
		s.deliver(&ev)
		s.inflight = nil
	}
}

// complete clears the in-flight slot and then reports err to ev. A panic in
// the callback is logged; it never reaches the supervisor, so an event is
// completed exactly once.
func (s *Shipper) complete(ev *Event, err error) {
	if s.inflight == ev {
		s.inflight = nil
	}
	s.notify(ev, err)
}

// deliver frames ev once and sends the same bytes until the transport
// accepts them, the shipper is canceled, or MaxSendAttempts is used up.
func (s *Shipper) deliver(ev *Event) {
	frame := s.builder.Build(s.buf, ev.Text)
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := s.limiter.Wait(s.ctx); err != nil {
			s.complete(ev, fmt.Errorf("send canceled: %w", err))
			return
		}

		out := s.tr.Send(s.ctx, frame)
		switch out.Status {
		case transport.StatusSent:
			metrics.IncrCounterWithDimGroup(metrics.NameSendTotal, metrics.GroupLogship, 1, s.sendDims)
			metrics.IncrCounterWithDimGroup(metrics.NameSendBytesTotal, metrics.GroupLogship, metrics.Value(len(frame)), s.sendDims)
			metrics.RecordStopwatchWithDimGroup(metrics.NameSendLatencyMS, metrics.GroupLogship, start, s.sendDims)
			s.log().Debug().Str("shipper", s.id).Int("bytes", len(frame)).Int("attempt", attempt).Msg("sent")
			s.complete(ev, nil)
			return

		case transport.StatusCanceled:
			s.log().Debug().Str("shipper", s.id).Err(out.Err).Msg("send canceled")
			s.complete(ev, fmt.Errorf("send canceled: %w", out.Err))
			return

		default:
			metrics.IncrCounterWithDimGroup(metrics.NameSendFailedTotal, metrics.GroupLogship, 1, s.sendDims)
			s.log().Warn().Str("shipper", s.id).Str("transport", s.tr.FactoryName()).
				Int("attempt", attempt).Err(out.Err).Msg("send failed")

			if limit := s.cfg.MaxSendAttempts; limit > 0 && attempt >= limit {
				metrics.IncrCounterWithDimGroup(metrics.NameSendDroppedTotal, metrics.GroupLogship, 1, s.sendDims)
				s.log().Error().Str("shipper", s.id).Int("attempts", attempt).Msg("event dropped")
				s.complete(ev, fmt.Errorf("%w after %d attempts: %w", ErrDropped, attempt, out.Err))
				return
			}
		}
	}
}
