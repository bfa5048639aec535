package client

import (
	"errors"
	"slices"
	"time"

	"github.com/joshdurbin/newsfeed/internal/retry"
)

// RetryPolicy decides whether the failure of a 1-indexed attempt is retried
// and how long to wait first.
type RetryPolicy interface {
	RetryDelay(err error, attempt int) (time.Duration, bool)
}

// ExponentialBackoffPolicy retries network errors and selected statuses
// with min(MaxDelay, BaseDelay*2^(attempt-1)) between attempts.
type ExponentialBackoffPolicy struct {
	MaxRetries         int
	BaseDelay          time.Duration
	MaxDelay           time.Duration
	RetryNetworkErrors bool
	RetryStatusCodes   []int
}

// DefaultRetryPolicy retries twice starting at 500ms, capped at 5s.
func DefaultRetryPolicy() *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		MaxRetries:         2,
		BaseDelay:          500 * time.Millisecond,
		MaxDelay:           5 * time.Second,
		RetryNetworkErrors: true,
		RetryStatusCodes:   slices.Clone(DefaultRetryStatusCodes),
	}
}

func (p *ExponentialBackoffPolicy) RetryDelay(err error, attempt int) (time.Duration, bool) {
	if attempt > p.MaxRetries {
		return 0, false
	}

	delay := retry.Delay(retry.Config{BaseDelay: p.BaseDelay, MaxDelay: p.MaxDelay}, attempt)

	var herr *Error
	if !errors.As(err, &herr) {
		return 0, false
	}
	switch herr.Kind {
	case KindRequestFailed:
		if slices.Contains(p.RetryStatusCodes, herr.StatusCode) {
			return delay, true
		}
	case KindNetwork:
		if p.RetryNetworkErrors {
			return delay, true
		}
	}
	return 0, false
}

var _ RetryPolicy = (*ExponentialBackoffPolicy)(nil)
