// Package retry re-runs whole transactions that failed for transient reasons
// such as serialization failures or dropped connections. Idempotency of the
// retried operation is the caller's job: completion and weekly distribution
// rely on their own already-done guards.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns err itself.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

type settings struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
	jitter   float64
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option adjusts one Do call.
type Option func(*settings)

// WithMaxAttempts counts the first call too. Default 3.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithInitialDelay sets the first pause; later pauses double up to 500ms.
func WithInitialDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.first = d
		}
	}
}

// WithRetryIf selects the transient errors. Without it nothing is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(s *settings) { s.retryIf = fn }
}

// WithOnRetry is called before each pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(s *settings) { s.onRetry = fn }
}

// Do calls op until it succeeds, fails permanently, runs out of attempts or
// ctx ends. The last error from op wins over the context error once op has
// run at least once.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	s := settings{attempts: 3, first: 25 * time.Millisecond, ceiling: 500 * time.Millisecond, jitter: 0.1}
	for _, opt := range opts {
		opt(&s)
	}

	var lastErr error
	pause := s.first
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) {
			return p.err
		}
		lastErr = err
		if s.retryIf == nil || !s.retryIf(err) || attempt >= s.attempts {
			return err
		}

		delay := jittered(pause, s.jitter)
		if s.onRetry != nil {
			s.onRetry(attempt, err, delay)
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return lastErr
			case <-t.C:
			}
		}
		pause = min(pause*2, s.ceiling)
	}
}

func jittered(d time.Duration, factor float64) time.Duration {
	if d <= 0 || factor <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*factor*(rand.Float64()*2-1))
}
