package shipper

import (
	"context"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// SendLimiter paces sends. Wait blocks until the next send may start.
type SendLimiter interface {
	Wait(ctx context.Context) error
}

type unlimited struct{}

func (unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// tokenLimiter allows bursts of up to burst frames.
type tokenLimiter struct {
	l *rate.Limiter
}

func (t *tokenLimiter) Wait(ctx context.Context) error {
	return t.l.Wait(ctx)
}

// leakyLimiter spaces frames evenly. Take does not observe ctx, so a
// cancellation is noticed at most one slot late.
type leakyLimiter struct {
	l ratelimit.Limiter
}

func (t *leakyLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.l.Take()
	return ctx.Err()
}

// NewSendLimiter builds the limiter for mode. perSec <= 0 disables pacing.
//
// The token bucket (RateLimitToken, the default) accepts fractional rates and
// lets up to burst frames through back to back. The leaky bucket
// (RateLimitLeaky) spaces frames evenly at a whole number of frames per
// second: perSec is truncated, and raised to 1 when lower. Config.Validate
// rejects such rates up front. Its wait does not observe ctx, so Close may
// wait up to one slot (1/perSec) for a paced send to be released.
func NewSendLimiter(mode string, perSec float64, burst int) SendLimiter {
	if perSec <= 0 {
		return unlimited{}
	}
	if burst <= 0 {
		burst = 1
	}
	if mode == RateLimitLeaky {
		rps := int(perSec)
		if rps < 1 {
			rps = 1
		}
		return &leakyLimiter{l: ratelimit.New(rps, ratelimit.WithSlack(burst-1))}
	}
	return &tokenLimiter{l: rate.NewLimiter(rate.Limit(perSec), burst)}
}
