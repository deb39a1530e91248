package fetcher

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMaxRetries is the default attempt budget per call.
	DefaultMaxRetries = 5
	// DefaultInitialDelay is the wait after the first failed attempt.
	DefaultInitialDelay = 2 * time.Second
	// BackoffFactor multiplies the delay after every failed attempt.
	BackoffFactor = 3
	// MaxJitter bounds the random pause taken before each retry.
	MaxJitter = 500 * time.Millisecond
)

// Policy bounds how long a single call may keep retrying.
type Policy struct {
	// MaxRetries is the total number of attempts, not the number of retries after the first.
	MaxRetries int
	// InitialDelay is the base backoff; attempt n waits InitialDelay * 3^n unless Retry-After says otherwise.
	InitialDelay time.Duration
}

// DefaultPolicy returns 5 attempts starting at a 2s backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	return p
}

// BackoffAfter returns the computed wait after the given zero-based attempt,
// ignoring any Retry-After hint.
func (p Policy) BackoffAfter(attempt int) time.Duration {
	d := p.normalize().InitialDelay
	for i := 0; i < attempt; i++ {
		d = grow(d)
	}
	return d
}

// grow multiplies d by BackoffFactor, saturating instead of overflowing.
func grow(d time.Duration) time.Duration {
	if d > math.MaxInt64/BackoffFactor {
		return math.MaxInt64
	}
	return d * BackoffFactor
}

// retryAfter reads a Retry-After header expressed in whole seconds.
// HTTP-date values and negatives are ignored; oversized values saturate.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseUint(v, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64, true
	}
	if err != nil {
		return 0, false
	}
	if secs > math.MaxInt64/uint64(time.Second) {
		return math.MaxInt64, true
	}
	return time.Duration(secs) * time.Second, true
}
