// Package ratelimit implements a fixed-window counter limiter. The window
// starts at a key's first increment and expires a fixed duration later, so
// windows are wall-clock-relative to first use rather than aligned to ticks.
package ratelimit

import (
	"context"
	"fmt"
	"log"
)

// keyPrefix namespaces limiter counters in the shared key-value store.
const keyPrefix = "ratelimit:"

// Store is the counter backend: a single-key atomic increment plus expiry.
type Store interface {
	// Incr atomically increments the counter for key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the key's time-to-live in seconds.
	Expire(ctx context.Context, key string, seconds int) error
}

// Result reports the outcome of a limiter check.
type Result struct {
	Admitted  bool
	Limit     int
	Remaining int
	Count     int64
}

// Limiter admits or rejects calls against fixed-window counters.
// A nil store means rate limiting is unconfigured and every call is admitted;
// the limiter is a best-effort guard, not a correctness requirement.
type Limiter struct {
	store Store
}

// New creates a Limiter over the given counter store. store may be nil.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check increments the counter for key and reports whether the call is
// admitted. The request that brings the count to exactly limit is still
// admitted; the limit+1-th in the window is the first rejected.
// Store failures fail open: the call is admitted and the error logged.
func (l *Limiter) Check(ctx context.Context, key string, limit, windowSeconds int) Result {
	if l.store == nil {
		return Result{Admitted: true, Limit: limit, Remaining: limit}
	}

	fullKey := keyPrefix + key
	count, err := l.store.Incr(ctx, fullKey)
	if err != nil {
		log.Printf("ratelimit: incr %s: %v (admitting)", fullKey, err)
		return Result{Admitted: true, Limit: limit, Remaining: limit}
	}

	if count == 1 {
		if err := l.store.Expire(ctx, fullKey, windowSeconds); err != nil {
			log.Printf("ratelimit: expire %s: %v", fullKey, err)
		}
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Admitted:  count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		Count:     count,
	}
}

// String implements fmt.Stringer for log lines.
func (r Result) String() string {
	return fmt.Sprintf("admitted=%t count=%d limit=%d remaining=%d", r.Admitted, r.Count, r.Limit, r.Remaining)
}
