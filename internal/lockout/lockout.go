// Package lockout counts failed admin passkey attempts per client and locks a
// client out once it exceeds the allowed failures within a fixed window.
package lockout

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts is the number of failures tolerated per window.
	DefaultMaxAttempts = 5
	// DefaultWindow is how long failures are remembered, measured from the first one.
	DefaultWindow = 15 * time.Minute
)

// Store keeps a failure counter per key that expires one window after its first increment.
type Store interface {
	// Get returns the current count and its remaining lifetime (zero when absent).
	Get(ctx context.Context, key string) (int, time.Duration, error)
	// Incr adds one failure, starting the window if the key is new.
	Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
	// Reset forgets key.
	Reset(ctx context.Context, key string) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Status describes a client's standing after a check or failure.
type Status struct {
	Locked     bool
	Remaining  int
	RetryAfter time.Duration
}

// Guard applies the lockout policy on top of a Store.
type Guard struct {
	store       Store
	maxAttempts int
	window      time.Duration
}

// NewGuard creates a Guard; non-positive limits fall back to the defaults.
func NewGuard(store Store, maxAttempts int, window time.Duration) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, maxAttempts: maxAttempts, window: window}
}

// MaxAttempts returns the failures tolerated per window.
func (g *Guard) MaxAttempts() int {
	return g.maxAttempts
}

// Check reports key's standing without consuming an attempt.
func (g *Guard) Check(ctx context.Context, key string) (Status, error) {
	n, ttl, err := g.store.Get(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("lockout check %s: %w", key, err)
	}
	return g.status(n, ttl), nil
}

// Reserve consumes one attempt before the passkey is compared, so concurrent
// requests cannot all slip past a read-only check. A Locked status means the
// attempt was refused. Otherwise Remaining is the attempts left should this
// one fail; zero means a failure now locks the client for RetryAfter.
func (g *Guard) Reserve(ctx context.Context, key string) (Status, error) {
	n, ttl, err := g.store.Incr(ctx, key, g.window)
	if err != nil {
		return Status{}, fmt.Errorf("lockout reserve %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = g.window
	}
	if n > g.maxAttempts {
		return Status{Locked: true, RetryAfter: ttl}, nil
	}
	return Status{Remaining: g.maxAttempts - n, RetryAfter: ttl}, nil
}

// Succeed clears key's failures.
func (g *Guard) Succeed(ctx context.Context, key string) error {
	if err := g.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("lockout reset %s: %w", key, err)
	}
	return nil
}

func (g *Guard) status(n int, ttl time.Duration) Status {
	if n >= g.maxAttempts {
		if ttl <= 0 {
			ttl = g.window
		}
		return Status{Locked: true, RetryAfter: ttl}
	}
	return Status{Remaining: g.maxAttempts - n}
}
