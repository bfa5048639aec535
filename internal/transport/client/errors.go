package client

import (
	"errors"
	"fmt"
	"slices"
)

// ErrorKind classifies a transport failure
type ErrorKind int

const (
	KindInvalidURL ErrorKind = iota + 1
	KindInvalidResponse
	KindRequestFailed
	KindDecodingFailed
	KindEncodingFailed
	KindNetwork
	KindCancelled
)

// Sentinels for errors.Is; every *Error matches the sentinel of its kind.
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrInvalidResponse = errors.New("invalid response")
	ErrRequestFailed   = errors.New("request failed")
	ErrDecodingFailed  = errors.New("decoding failed")
	ErrEncodingFailed  = errors.New("encoding failed")
	ErrNetwork         = errors.New("network error")
	ErrCancelled       = errors.New("request cancelled")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidURL:
		return ErrInvalidURL
	case KindInvalidResponse:
		return ErrInvalidResponse
	case KindRequestFailed:
		return ErrRequestFailed
	case KindDecodingFailed:
		return ErrDecodingFailed
	case KindEncodingFailed:
		return ErrEncodingFailed
	case KindNetwork:
		return ErrNetwork
	case KindCancelled:
		return ErrCancelled
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown"
}

// Error is returned by every Client call that fails
type Error struct {
	Kind ErrorKind

	// StatusCode and Body are set for KindRequestFailed
	StatusCode int
	Body       []byte

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRequestFailed:
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of a RequestFailed error
func StatusCode(err error) (int, bool) {
	var herr *Error
	if errors.As(err, &herr) && herr.Kind == KindRequestFailed {
		return herr.StatusCode, true
	}
	return 0, false
}

// DefaultRetryStatusCodes are the statuses treated as transient
var DefaultRetryStatusCodes = []int{429, 500, 502, 503, 504}

// IsTransient reports whether err is worth retrying: network failures and
// RequestFailed with a status in statuses. Cancellation, decoding and
// encoding failures and all other statuses are permanent. A nil statuses
// uses DefaultRetryStatusCodes.
func IsTransient(err error, statuses []int) bool {
	if statuses == nil {
		statuses = DefaultRetryStatusCodes
	}
	var herr *Error
	if !errors.As(err, &herr) {
		return false
	}
	switch herr.Kind {
	case KindNetwork:
		return true
	case KindRequestFailed:
		return slices.Contains(statuses, herr.StatusCode)
	}
	return false
}
