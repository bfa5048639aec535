// Package retry runs asynchronous operations with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// Config controls the retry behaviour of [Do].
type Config struct {
	// MaxAttempts is the maximum number of times the operation is called,
	// including the first attempt. Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Each further retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the pre-jitter delay.
	MaxDelay time.Duration

	// JitterMin and JitterMax bound the multiplicative jitter: the actual
	// wait is delay * (1 + U[JitterMin, JitterMax]).
	JitterMin float64
	JitterMax float64
}

// DefaultConfig returns 3 attempts starting at 500ms, capped at 5s, with 0-30% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		JitterMin:   0.0,
		JitterMax:   0.3,
	}
}

// Validate checks the config for impossible values
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max delay %s is below base delay %s", c.MaxDelay, c.BaseDelay)
	}
	if c.JitterMin < 0 || c.JitterMax < c.JitterMin {
		return fmt.Errorf("invalid jitter range [%g, %g]", c.JitterMin, c.JitterMax)
	}
	return nil
}

// ShouldRetryFunc decides whether the error from the given 1-indexed attempt
// is worth another attempt.
type ShouldRetryFunc func(err error, attempt int) bool

// BeforeRetryFunc observes a retry about to happen. It must not influence
// control flow.
type BeforeRetryFunc func(err error, attempt int, wait time.Duration)

type options struct {
	shouldRetry ShouldRetryFunc
	beforeRetry BeforeRetryFunc
	rand        func() float64
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customises a single [Do] call.
type Option func(*options)

// WithShouldRetry sets the retry predicate. Without it every error except
// cancellation is retried.
func WithShouldRetry(fn ShouldRetryFunc) Option {
	return func(o *options) { o.shouldRetry = fn }
}

// WithOnBeforeRetry sets the observation hook.
func WithOnBeforeRetry(fn BeforeRetryFunc) Option {
	return func(o *options) { o.beforeRetry = fn }
}

// LogRetries logs every retry with the given component prefix.
func LogRetries(prefix string) Option {
	return WithOnBeforeRetry(func(err error, attempt int, wait time.Duration) {
		log.Printf("[RETRY] %s: attempt %d failed: %v; retrying in %s", prefix, attempt, err, wait.Round(time.Millisecond))
	})
}

func withRand(fn func() float64) Option {
	return func(o *options) { o.rand = fn }
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// Do calls op up to cfg.MaxAttempts times in sequence. Before every retry
// the context is checked and the retry predicate consulted; the error of the
// final attempt, or the first non-retryable error, is returned unchanged.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := options{
		shouldRetry: func(error, int) bool { return true },
		rand:        rand.Float64,
		sleep:       sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(err, ctxErr) {
				return zero, err
			}
			return zero, fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}

		if attempt >= attempts || !o.shouldRetry(err, attempt) {
			return zero, err
		}

		wait := Jittered(Delay(cfg, attempt), cfg.JitterMin, cfg.JitterMax, o.rand)
		if o.beforeRetry != nil {
			o.beforeRetry(err, attempt, wait)
		}

		if err := o.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// Func is an operation that can be retried with [Func.Retry].
type Func[T any] func(context.Context) (T, error)

// Retry runs f through [Do].
func (f Func[T]) Retry(ctx context.Context, cfg Config, opts ...Option) (T, error) {
	return Do(ctx, cfg, f, opts...)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
