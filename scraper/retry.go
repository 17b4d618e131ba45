package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// RetryPolicy bounds how an unreliable operation is retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable selects the failures worth another attempt. Nil means
	// IsTransient.
	Retryable func(error) bool
}

// RetryEvent describes one failed attempt. Exhausted is set on the final
// attempt and Permanent on a failure the policy refuses to retry; Sleep is
// zero in both cases.
type RetryEvent struct {
	Op          string
	Attempt     int
	MaxAttempts int
	Kind        string
	Sleep       time.Duration
	Err         error
	Exhausted   bool
	Permanent   bool
}

// RetryObserver receives retry diagnostics.
type RetryObserver interface {
	ObserveRetry(RetryEvent)
}

// RetryObserverFunc adapts a function to RetryObserver.
type RetryObserverFunc func(RetryEvent)

// ObserveRetry calls f(ev).
func (f RetryObserverFunc) ObserveRetry(ev RetryEvent) {
	f(ev)
}

// Retrier runs operations with exponential backoff and jitter.
type Retrier struct {
	policy   RetryPolicy
	observer RetryObserver
	jitter   func(time.Duration) time.Duration
	sleep    func(context.Context, time.Duration) error

	retries atomic.Int64
}

// RetrierOption customises a Retrier.
type RetrierOption func(*Retrier)

// WithJitter replaces the random jitter source. fn receives the base delay
// for the attempt and returns the extra delay to add.
func WithJitter(fn func(time.Duration) time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.jitter = fn
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(context.Context, time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		r.sleep = fn
	}
}

// NewRetrier builds a Retrier. A nil observer discards events.
func NewRetrier(policy RetryPolicy, observer RetryObserver, opts ...RetrierOption) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = IsTransient
	}
	r := &Retrier{
		policy:   policy,
		observer: observer,
		jitter:   randomJitter,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithPolicy returns a Retrier sharing observer, jitter and sleep but
// retrying under a different policy.
func (r *Retrier) WithPolicy(policy RetryPolicy) *Retrier {
	return NewRetrier(policy, r.observer, WithJitter(r.jitter), WithSleep(r.sleep))
}

// Run retries fn under the policy.
func (r *Retrier) Run(ctx context.Context, op string, fn func() error) error {
	_, err := Do(ctx, r, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// TotalRetries counts the backoff sleeps scheduled so far.
func (r *Retrier) TotalRetries() int {
	return int(r.retries.Load())
}

// backoff returns the pre-jitter delay after the given failed attempt.
func (r *Retrier) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	return r.policy.Backoff * time.Duration(1<<(attempt-1))
}

func (r *Retrier) delay(attempt int) time.Duration {
	base := r.backoff(attempt)
	return base + r.jitter(base)
}

func (r *Retrier) observe(ev RetryEvent) {
	if r.observer != nil {
		r.observer.ObserveRetry(ev)
	}
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, r *Retrier, op string, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		ev := RetryEvent{
			Op:          op,
			Attempt:     attempt,
			MaxAttempts: r.policy.MaxAttempts,
			Kind:        errorTypeLabel(err),
			Err:         err,
		}
		if !r.policy.Retryable(err) {
			ev.Permanent = true
			r.observe(ev)
			return zero, err
		}
		if attempt >= r.policy.MaxAttempts {
			ev.Exhausted = true
			r.observe(ev)
			return zero, err
		}

		ev.Sleep = r.delay(attempt)
		r.retries.Add(1)
		r.observe(ev)
		if serr := r.sleep(ctx, ev.Sleep); serr != nil {
			return zero, fmt.Errorf("%s: retry interrupted after attempt %d: %w (last error: %w)", op, attempt, serr, err)
		}
	}
}

// randomJitter returns a value in [0, 0.1*base).
func randomJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * 0.1 * float64(base))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LogRetries returns an observer that logs every event and counts it on
// metrics. Either argument may be nil.
func LogRetries(logger *slog.Logger, metrics *Metrics) RetryObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return RetryObserverFunc(func(ev RetryEvent) {
		if ev.Permanent {
			logger.Debug("non-retryable failure",
				slog.String("function", ev.Op),
				slog.String("error_type", ev.Kind),
				slog.Int("attempt", ev.Attempt),
				slog.Any("error", ev.Err),
			)
			return
		}
		if ev.Exhausted {
			logger.Error(fmt.Sprintf("failed after %d attempts", ev.MaxAttempts),
				slog.String("function", ev.Op),
				slog.String("error_type", ev.Kind),
				slog.Int("attempts", ev.Attempt),
				slog.Any("error", ev.Err),
			)
			metrics.IncRetryExhausted(ev.Op)
			return
		}
		logger.Warn(fmt.Sprintf("retry attempt %d/%d", ev.Attempt, ev.MaxAttempts),
			slog.String("function", ev.Op),
			slog.String("error_type", ev.Kind),
			slog.Int("retry_count", ev.Attempt),
			slog.Int("max_retries", ev.MaxAttempts),
			slog.Duration("sleep_time", ev.Sleep),
			slog.Any("error", ev.Err),
		)
		metrics.IncRetry(ev.Op)
	})
}
