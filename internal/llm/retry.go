package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// linearBackOff waits base·(n+1) before retry n
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	d := b.base * time.Duration(b.n+1)
	b.n++
	return d
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Retrier runs an operation with a per-attempt timeout and linear backoff
type Retrier struct {
	MaxRetries int
	Delay      time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Do runs op until it succeeds, returns a permanent error, or retries run out.
// Each attempt gets a fresh timeout; the last error is returned.
func (r Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	operation := func() error {
		attempt++
		actx, cancel := r.attemptContext(ctx)
		defer cancel()

		err := op(actx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying", "operation", name, "attempt", attempt, "wait", wait, "error", err)
	}

	var b backoff.BackOff = &linearBackOff{base: r.Delay}
	b = backoff.WithMaxRetries(b, uint64(max(r.MaxRetries, 0)))
	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (r Retrier) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

// Permanent stops retrying and returns err from Do
func Permanent(err error) error {
	return backoff.Permanent(err)
}
