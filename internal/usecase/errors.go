package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrRateLimited           = errors.New("rate limited")
	ErrConcurrencyExhausted  = errors.New("concurrency retries exhausted")
)

// RateLimitError is returned when the provider answers 429. It matches ErrRateLimited.
type RateLimitError struct {
	Provider   string
	StatusCode int
	// RetryAfter is zero when the provider sent no usable Retry-After header.
	RetryAfter time.Duration
	Remaining  int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e == nil {
		return ErrRateLimited.Error()
	}
	msg := fmt.Sprintf("%s: provider=%s status=%d", ErrRateLimited, e.Provider, e.StatusCode)
	if e.RetryAfter > 0 {
		msg += " retry_after=" + e.RetryAfter.String()
	}
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	return msg
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func AsRateLimitError(err error) (*RateLimitError, bool) {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) && rateErr != nil {
		return rateErr, true
	}
	return nil, false
}
