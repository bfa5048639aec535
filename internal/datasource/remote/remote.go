// Package remote is the typed data source over the feed HTTP API.
package remote

import (
	"context"
	"errors"

	"github.com/joshdurbin/newsfeed/internal/retry"
	"github.com/joshdurbin/newsfeed/internal/transport/client"
)

// Sender is the part of *client.Client the data sources need
type Sender interface {
	Do(ctx context.Context, ep client.Endpoint, body any, out any) error
}

type options struct {
	retry      retry.Config
	statuses   []int
	logRetries bool
	retryHooks []retry.Option
}

// Option configures a data source
type Option func(*options)

// WithRetry sets the operation-level retry schedule
func WithRetry(cfg retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// WithRetryStatusCodes sets which HTTP statuses are retried
func WithRetryStatusCodes(codes []int) Option {
	return func(o *options) { o.statuses = codes }
}

// WithRetryLogging logs every retry
func WithRetryLogging(enabled bool) Option {
	return func(o *options) { o.logRetries = enabled }
}

// WithRetryOptions passes extra options to every retry.Do call
func WithRetryOptions(opts ...retry.Option) Option {
	return func(o *options) { o.retryHooks = append(o.retryHooks, opts...) }
}

func newOptions(opts []Option) options {
	o := options{retry: retry.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// shouldRetry retries transient transport failures only: network errors and
// the configured statuses. Cancellation, client errors and decoding
// failures propagate on the first attempt.
func (o options) shouldRetry(err error, _ int) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, client.ErrCancelled) {
		return false
	}
	return client.IsTransient(err, o.statuses)
}

func (o options) retryOptions(op string) []retry.Option {
	opts := []retry.Option{retry.WithShouldRetry(o.shouldRetry)}
	if o.logRetries {
		opts = append(opts, retry.LogRetries(op))
	}
	return append(opts, o.retryHooks...)
}
