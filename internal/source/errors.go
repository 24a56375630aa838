// Package source fetches raw articles from the news search API for a
// bounded time window.
package source

import (
	"errors"
	"fmt"
	"time"
)

// TransientError marks a fetch failure that is worth retrying: 5xx,
// timeouts, connection resets, and rate limiting. RetryAfter carries the
// server's hint when one was supplied, zero otherwise.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient source error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a fetch failure that retrying cannot fix: bad
// credentials, rejected parameters, and other 4xx responses. The current
// tick's fetch phase aborts; the process does not.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal source error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
