package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("ratelimit: invalid argument")
	ErrStoreFailure    = errors.New("ratelimit: store failure")
)

const MessageExceeded = "Rate limit exceeded. Please try again later."

// Record is the per-key counter. The record expires at WindowStart+window;
// there is no separate sweep.
type Record struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Entry is a live record as seen by administrative listings.
type Entry struct {
	Key         string    `json:"key"`
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Decision is the outcome of one CheckAndIncrement call.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
	Message string `json:"message,omitempty"`
}

// Status is a read-only view of the limiter state for one IP.
type Status struct {
	Count     int       `json:"count"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// Store persists records. Increment must be atomic per key: it creates the
// record when absent or expired, otherwise bumps Count, never past ceiling.
// The expiry is fixed at WindowStart+window and is not extended by increments.
type Store interface {
	Increment(ctx context.Context, key string, now time.Time, window time.Duration, ceiling int) (Record, error)
	Get(ctx context.Context, key string, now time.Time) (Record, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeleteAll(ctx context.Context) (int, error)
	List(ctx context.Context, now time.Time, window time.Duration) ([]Entry, error)
}
